package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"galera-cd/internal/core"
)

// DefaultReconcileCron 每 10 分钟对账一次 (秒 分 时 日 月 周)
const DefaultReconcileCron = "0 */10 * * * *"

// Sweeper 对账入口
type Sweeper interface {
	Sweep(ctx context.Context) (*core.ReconcileReport, error)
}

// Scheduler 调度器
type Scheduler struct {
	cron          *cron.Cron
	logger        *zap.Logger
	sweeper       Sweeper
	timeout       time.Duration
	cronSchedules map[string]cron.EntryID
}

// NewScheduler 创建调度器
func NewScheduler(sweeper Sweeper, logger *zap.Logger) *Scheduler {
	// 带秒级支持, 上一次对账未结束时跳过本次
	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	return &Scheduler{
		cron:          c,
		logger:        logger,
		sweeper:       sweeper,
		timeout:       5 * time.Minute,
		cronSchedules: make(map[string]cron.EntryID),
	}
}

// Start 注册对账任务并启动
func (s *Scheduler) Start(cronExpr string) error {
	log := s.logger.Sugar()

	if cronExpr == "" {
		cronExpr = DefaultReconcileCron
		log.Warnf("未配置 core.reconcile_cron, 使用默认值 %s", cronExpr)
	}

	entryID, err := s.cron.AddFunc(cronExpr, func() {
		if _, err := s.TriggerReconcile(); err != nil {
			log.Errorf("对账任务执行失败: %v", err)
		}
	})
	if err != nil {
		log.Errorf("注册对账任务 %s 失败: %v", cronExpr, err)
		return err
	}

	s.cronSchedules["reconcile"] = entryID
	log.Infof("对账任务已注册: %s entry_id=%d", cronExpr, entryID)

	s.cron.Start()
	log.Info("定时任务调度器启动成功")
	return nil
}

// Stop 停止调度器, 等待正在执行的任务完成
func (s *Scheduler) Stop() {
	s.logger.Info("正在停止定时任务调度器...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("定时任务调度器已停止")
}

// TriggerReconcile 立即执行一次对账
func (s *Scheduler) TriggerReconcile() (*core.ReconcileReport, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	report, err := s.sweeper.Sweep(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("对账完成",
		zap.Int("scanned", report.Scanned),
		zap.Int("changed", report.Changed),
		zap.Int("errors", report.Errors))
	return report, nil
}

// Entries 已注册的任务
func (s *Scheduler) Entries() map[string]cron.EntryID {
	return s.cronSchedules
}
