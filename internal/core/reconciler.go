package core

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"galera-cd/internal/core/deployment"
	"galera-cd/internal/pkg/metrics"
	"galera-cd/internal/repository"
	"galera-cd/pkg/constants"
)

// ReconcileItem 单个部署的对账结果
type ReconcileItem struct {
	DeploymentID int64  `json:"deployment_id" yaml:"deployment_id"`
	ClusterName  string `json:"cluster_name" yaml:"cluster_name"`
	From         string `json:"from" yaml:"from"`
	To           string `json:"to" yaml:"to"`
	Note         string `json:"note,omitempty" yaml:"note,omitempty"`
}

// ReconcileReport 一次对账的汇总
type ReconcileReport struct {
	StartedAt time.Time       `json:"started_at" yaml:"started_at"`
	Duration  string          `json:"duration" yaml:"duration"`
	Scanned   int             `json:"scanned" yaml:"scanned"`
	Changed   int             `json:"changed" yaml:"changed"`
	Errors    int             `json:"errors" yaml:"errors"`
	Items     []ReconcileItem `json:"items" yaml:"items"`
}

// Reconciler 对账: 核对所有 QUEUED/RUNNING 部署在执行器中的真实状态, 用于进程重启后恢复
type Reconciler struct {
	repo        repository.DeploymentRepository
	sm          *deployment.StateMachine
	concurrency int
	logger      *zap.Logger
}

func NewReconciler(repo repository.DeploymentRepository, sm *deployment.StateMachine, concurrency int, logger *zap.Logger) *Reconciler {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Reconciler{repo: repo, sm: sm, concurrency: concurrency, logger: logger}
}

// Sweep 执行一次对账
func (r *Reconciler) Sweep(ctx context.Context) (*ReconcileReport, error) {
	started := time.Now()

	deps, err := r.repo.ListByStatus(ctx, constants.DeploymentActiveStatuses...)
	if err != nil {
		return nil, err
	}

	items := make([]ReconcileItem, len(deps))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, dep := range deps {
		i, dep := i, dep
		g.Go(func() error {
			item := ReconcileItem{DeploymentID: dep.ID, ClusterName: dep.ClusterName, From: dep.Status}
			to, err := r.sm.Process(gctx, dep)
			item.To = to
			if err != nil {
				item.Note = err.Error()
			}
			items[i] = item
			return nil
		})
	}
	_ = g.Wait()

	report := &ReconcileReport{
		StartedAt: started,
		Scanned:   len(deps),
		Items:     items,
	}
	for _, item := range items {
		switch {
		case item.Note != "":
			report.Errors++
			metrics.RecordReconcile("error")
		case item.From != item.To:
			report.Changed++
			metrics.RecordReconcile("fixed")
		default:
			metrics.RecordReconcile("unchanged")
		}
	}
	report.Duration = time.Since(started).Round(time.Millisecond).String()

	r.logger.Sugar().Infof("[Reconciler] 对账完成: 扫描 %d, 修正 %d, 失败 %d", report.Scanned, report.Changed, report.Errors)
	return report, nil
}
