package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"galera-cd/internal/core/deployment"
	"galera-cd/internal/pkg/metrics"
	"galera-cd/internal/repository"
	"galera-cd/pkg/constants"
	pkgErrors "galera-cd/pkg/errors"
)

type monitorTask struct {
	cancel context.CancelFunc
}

// Monitor 构建监控器: 每个被跟踪的部署一个 goroutine, 定时轮询执行器直到终态
type Monitor struct {
	repo     repository.DeploymentRepository
	sm       *deployment.StateMachine
	interval time.Duration
	sem      *semaphore.Weighted
	logger   *zap.Logger

	mu     sync.Mutex
	tasks  map[int64]*monitorTask
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor 创建监控器, maxActive 限制同时轮询的部署数
func NewMonitor(repo repository.DeploymentRepository, sm *deployment.StateMachine, interval time.Duration, maxActive int64, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if maxActive <= 0 {
		maxActive = 64
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		repo:     repo,
		sm:       sm,
		interval: interval,
		sem:      semaphore.NewWeighted(maxActive),
		logger:   logger,
		tasks:    make(map[int64]*monitorTask, 16),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Track 开始跟踪部署, 已在跟踪或监控器已停止时返回 false
func (m *Monitor) Track(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}
	if _, exists := m.tasks[id]; exists {
		return false
	}

	ctx, cancel := context.WithCancel(m.ctx)
	task := &monitorTask{cancel: cancel}
	m.tasks[id] = task

	m.wg.Add(1)
	go m.work(ctx, id, task)
	return true
}

// Untrack 停止跟踪
func (m *Monitor) Untrack(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if task, exists := m.tasks[id]; exists {
		task.cancel()
		delete(m.tasks, id)
	}
}

// Tracking 是否正在跟踪
func (m *Monitor) Tracking(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.tasks[id]
	return exists
}

// Active 正在跟踪的部署数
func (m *Monitor) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Stop 停止所有任务并等待退出
func (m *Monitor) Stop() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
}

func (m *Monitor) remove(id int64, task *monitorTask) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.tasks[id] == task {
		delete(m.tasks, id)
	}
	task.cancel()
}

func (m *Monitor) work(ctx context.Context, id int64, task *monitorTask) {
	defer m.wg.Done()
	defer m.remove(id, task)

	if err := m.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer m.sem.Release(1)

	metrics.MonitorStarted()
	defer metrics.MonitorStopped()

	log := m.logger.With(zap.Int64("deployment_id", id)).Sugar()
	log.Debugf("[Monitor] 开始跟踪部署 %d", id)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			if done := m.poll(ctx, id); done {
				log.Debugf("[Monitor] 部署 %d 已结束跟踪", id)
				return
			}
		}
	}
}

// poll 每次重新读取部署记录, 返回是否结束跟踪
func (m *Monitor) poll(ctx context.Context, id int64) bool {
	log := m.logger.With(zap.Int64("deployment_id", id)).Sugar()

	dep, err := m.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, pkgErrors.ErrRecordNotFound) {
			log.Warnf("[Monitor] 部署 %d 不存在, 停止跟踪", id)
			return true
		}
		log.Errorf("[Monitor] 查询部署失败: %v", err)
		return false
	}

	if constants.IsDeploymentTerminal(dep.Status) {
		return true
	}
	if dep.Status != constants.DeploymentStatusQueued && dep.Status != constants.DeploymentStatusRunning {
		log.Warnf("[Monitor] 部署 %d 状态为 %s, 无需跟踪", id, dep.Status)
		return true
	}

	status, err := m.sm.Process(ctx, dep)
	if err != nil {
		if ctx.Err() == nil {
			log.Warnf("[Monitor] 轮询失败, 稍后重试: %v", err)
		}
		return false
	}
	return constants.IsDeploymentTerminal(status)
}
