package core

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"galera-cd/internal/adapter/executor"
	"galera-cd/internal/adapter/notification"
	"galera-cd/internal/core/deployment"
	"galera-cd/internal/pkg/config"
	"galera-cd/internal/repository"
	"galera-cd/pkg/constants"
)

// CoreEngine 部署编排引擎: 持有构建监控器和对账器
type CoreEngine struct {
	repo       repository.DeploymentRepository
	sm         *deployment.StateMachine
	monitor    *Monitor
	reconciler *Reconciler
	cfg        *config.CoreConfig
	logger     *zap.Logger

	mu      sync.Mutex
	running bool
}

// NewCoreEngine 创建核心引擎
func NewCoreEngine(repo repository.DeploymentRepository, exec executor.Executor, notifier notification.Notifier, cfg *config.CoreConfig, logger *zap.Logger) *CoreEngine {
	sm := deployment.NewDeploymentStateMachine(repo, exec, notifier, logger.Named("deployment"))

	return &CoreEngine{
		repo:       repo,
		sm:         sm,
		monitor:    NewMonitor(repo, sm, cfg.PollIntervalDuration(), cfg.MaxMonitors, logger.Named("monitor")),
		reconciler: NewReconciler(repo, sm, cfg.ReconcileConcurrency, logger.Named("reconciler")),
		cfg:        cfg,
		logger:     logger,
	}
}

// Start 启动核心引擎: 可选先对账, 再恢复 QUEUED/RUNNING 部署的监控
func (e *CoreEngine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		e.logger.Warn("核心引擎已在运行中")
		return nil
	}
	e.running = true
	e.mu.Unlock()

	e.logger.Info("CoreEngine starting...",
		zap.Duration("poll_interval", e.cfg.PollIntervalDuration()),
		zap.Int64("max_monitors", e.cfg.MaxMonitors))

	if e.cfg.ReconcileOnStart {
		if _, err := e.reconciler.Sweep(ctx); err != nil {
			e.logger.Error("启动对账失败", zap.Error(err))
		}
	}

	resumed, err := e.Resume(ctx)
	if err != nil {
		return err
	}
	e.logger.Info("CoreEngine started", zap.Int("resumed", resumed))
	return nil
}

// Resume 恢复跟踪持有执行器引用的未结束部署
func (e *CoreEngine) Resume(ctx context.Context) (int, error) {
	deps, err := e.repo.ListByStatus(ctx, constants.DeploymentActiveStatuses...)
	if err != nil {
		return 0, err
	}

	resumed := 0
	for _, dep := range deps {
		if dep.TrackingToken == nil && dep.ExecutionID == nil {
			e.logger.Warn("部署没有执行器引用, 跳过跟踪", zap.Int64("deployment_id", dep.ID), zap.String("status", dep.Status))
			continue
		}
		if e.monitor.Track(dep.ID) {
			resumed++
		}
	}
	return resumed, nil
}

// Stop 停止核心引擎
func (e *CoreEngine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.mu.Unlock()

	e.logger.Info("正在停止核心引擎...")
	e.monitor.Stop()
	e.logger.Info("核心引擎已停止")
}

// Track 交给监控器跟踪
func (e *CoreEngine) Track(id int64) bool {
	return e.monitor.Track(id)
}

// Sweep 手动触发一次对账
func (e *CoreEngine) Sweep(ctx context.Context) (*ReconcileReport, error) {
	return e.reconciler.Sweep(ctx)
}

// StateMachine 供服务层做取消等直接流转
func (e *CoreEngine) StateMachine() *deployment.StateMachine {
	return e.sm
}

// Monitor 构建监控器
func (e *CoreEngine) Monitor() *Monitor {
	return e.monitor
}
