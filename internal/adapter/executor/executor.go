package executor

import (
	"context"
	"fmt"

	"galera-cd/internal/pkg/config"
)

// QueuePhase 排队项状态
type QueuePhase string

const (
	QueuePending   QueuePhase = "pending"
	QueueAssigned  QueuePhase = "assigned"
	QueueCancelled QueuePhase = "cancelled"
	// QueueNotFound 排队项已被执行器清理, 无法再得知执行号
	QueueNotFound QueuePhase = "not_found"
)

// QueueState 排队查询结果, Assigned 时 ExecutionID 有值
type QueueState struct {
	Phase       QueuePhase
	ExecutionID int64
}

// ExecutionPhase 构建执行状态
type ExecutionPhase string

const (
	ExecutionInProgress ExecutionPhase = "in_progress"
	ExecutionFinished   ExecutionPhase = "finished"
	ExecutionNotFound   ExecutionPhase = "not_found"
)

// ExecutionState 构建查询结果, Finished 时 Result 为执行器上报的结果, 可能为空
type ExecutionState struct {
	Phase  ExecutionPhase
	Result string
}

// Executor 构建执行器适配器接口.
// 网络错误/超时/5xx 返回 CodeExecutorError, 调用方视为暂时性失败
type Executor interface {

	// Trigger 触发 job, 返回排队 token
	Trigger(ctx context.Context, job string, params map[string]string) (string, error)

	// QueryQueued 查询排队项
	QueryQueued(ctx context.Context, token string) (QueueState, error)

	// Dequeue 取消尚未开始的排队项
	Dequeue(ctx context.Context, token string) error

	// QueryExecution 查询构建
	QueryExecution(ctx context.Context, job string, id int64) (ExecutionState, error)

	// Stop 停止构建
	Stop(ctx context.Context, job string, id int64) error

	// FetchLog 拉取构建日志
	FetchLog(ctx context.Context, job string, id int64) (string, error)
}

// New 按配置创建执行器, 自动附带指标
func New(cfg *config.ExecutorConfig) (Executor, error) {
	var (
		e   Executor
		err error
	)
	switch cfg.Driver {
	case "", "jenkins":
		e, err = NewJenkins(cfg)
	case "mock":
		e = NewSimulator()
	default:
		return nil, fmt.Errorf("不支持的执行器类型: %s", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return WithMetrics(e), nil
}
