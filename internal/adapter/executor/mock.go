package executor

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/stretchr/testify/mock"

	"galera-cd/pkg/constants"
	pkgErrors "galera-cd/pkg/errors"
)

// MockExecutor testify mock, 供测试按调用编排返回值
type MockExecutor struct {
	mock.Mock
}

func (m *MockExecutor) Trigger(ctx context.Context, job string, params map[string]string) (string, error) {
	args := m.Called(ctx, job, params)
	return args.String(0), args.Error(1)
}

func (m *MockExecutor) QueryQueued(ctx context.Context, token string) (QueueState, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(QueueState), args.Error(1)
}

func (m *MockExecutor) Dequeue(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockExecutor) QueryExecution(ctx context.Context, job string, id int64) (ExecutionState, error) {
	args := m.Called(ctx, job, id)
	return args.Get(0).(ExecutionState), args.Error(1)
}

func (m *MockExecutor) Stop(ctx context.Context, job string, id int64) error {
	args := m.Called(ctx, job, id)
	return args.Error(0)
}

func (m *MockExecutor) FetchLog(ctx context.Context, job string, id int64) (string, error) {
	args := m.Called(ctx, job, id)
	return args.String(0), args.Error(1)
}

type simBuild struct {
	job       string
	params    map[string]string
	queuePoll int
	execID    int64
	execPoll  int
	stopped   bool
	cancelled bool
}

// Simulator 内存执行器, 用于本地开发 (executor.driver=mock).
// 每个构建排队 QueuePolls 次后分配执行号, 再经过 RunPolls 次查询后以 FinalResult 结束
type Simulator struct {
	mu sync.Mutex

	QueuePolls  int
	RunPolls    int
	FinalResult string
	TriggerErr  error
	StopErr     error

	nextToken int64
	nextExec  int64
	builds    map[string]*simBuild
	byExec    map[string]*simBuild
}

// NewSimulator 创建模拟执行器
func NewSimulator() *Simulator {
	return &Simulator{
		QueuePolls:  1,
		RunPolls:    2,
		FinalResult: constants.ExecutorResultSuccess,
		builds:      make(map[string]*simBuild),
		byExec:      make(map[string]*simBuild),
	}
}

// === 配置方法 ===

func (s *Simulator) SetFinalResult(result string) *Simulator {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FinalResult = result
	return s
}

func (s *Simulator) SetTriggerError(err error) *Simulator {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TriggerErr = err
	return s
}

// SetStopError 之后的 Stop 调用都返回 err
func (s *Simulator) SetStopError(err error) *Simulator {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StopErr = err
	return s
}

// === 接口实现 ===

func (s *Simulator) Trigger(ctx context.Context, job string, params map[string]string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.TriggerErr != nil {
		return "", s.TriggerErr
	}

	s.nextToken++
	token := strconv.FormatInt(s.nextToken, 10)
	copied := make(map[string]string, len(params))
	for k, v := range params {
		copied[k] = v
	}
	s.builds[token] = &simBuild{job: job, params: copied}
	return token, nil
}

func (s *Simulator) QueryQueued(ctx context.Context, token string) (QueueState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.builds[token]
	if !ok {
		return QueueState{Phase: QueueNotFound}, nil
	}
	if b.cancelled {
		return QueueState{Phase: QueueCancelled}, nil
	}
	if b.execID > 0 {
		return QueueState{Phase: QueueAssigned, ExecutionID: b.execID}, nil
	}

	b.queuePoll++
	if b.queuePoll < s.QueuePolls {
		return QueueState{Phase: QueuePending}, nil
	}

	s.nextExec++
	b.execID = s.nextExec
	s.byExec[execKey(b.job, b.execID)] = b
	return QueueState{Phase: QueueAssigned, ExecutionID: b.execID}, nil
}

func (s *Simulator) QueryExecution(ctx context.Context, job string, id int64) (ExecutionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.byExec[execKey(job, id)]
	if !ok {
		return ExecutionState{Phase: ExecutionNotFound}, nil
	}
	if b.stopped {
		return ExecutionState{Phase: ExecutionFinished, Result: constants.ExecutorResultAborted}, nil
	}

	b.execPoll++
	if b.execPoll < s.RunPolls {
		return ExecutionState{Phase: ExecutionInProgress}, nil
	}
	return ExecutionState{Phase: ExecutionFinished, Result: s.FinalResult}, nil
}

func (s *Simulator) Dequeue(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.builds[token]
	if !ok {
		return pkgErrors.Executor(fmt.Sprintf("排队项 %s 不存在", token), nil)
	}
	if b.execID == 0 {
		b.cancelled = true
	}
	return nil
}

func (s *Simulator) Stop(ctx context.Context, job string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.StopErr != nil {
		return s.StopErr
	}

	b, ok := s.byExec[execKey(job, id)]
	if !ok {
		return pkgErrors.Executor(fmt.Sprintf("构建 %s#%d 不存在", job, id), nil)
	}
	b.stopped = true
	return nil
}

func (s *Simulator) FetchLog(ctx context.Context, job string, id int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.byExec[execKey(job, id)]
	if !ok {
		return "", pkgErrors.NotFound("构建 %s#%d 日志不存在", job, id)
	}
	return fmt.Sprintf("[simulator] %s #%d hosts=%s\n", job, id, b.params["TARGET_HOSTS"]), nil
}

// CancelQueued 模拟在执行器侧取消排队项
func (s *Simulator) CancelQueued(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.builds[token]; ok {
		b.cancelled = true
	}
}

// Expire 模拟排队项过期被执行器清理
func (s *Simulator) Expire(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.builds, token)
}

// Forget 模拟构建记录被执行器清理
func (s *Simulator) Forget(job string, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byExec, execKey(job, id))
}

// Params 返回某次触发的参数
func (s *Simulator) Params(token string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.builds[token]; ok {
		return b.params
	}
	return nil
}

func execKey(job string, id int64) string {
	return job + "#" + strconv.FormatInt(id, 10)
}
