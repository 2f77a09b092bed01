package deployment

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"galera-cd/internal/adapter/executor"
	"galera-cd/internal/adapter/notification"
	"galera-cd/internal/model"
	"galera-cd/internal/pkg/metrics"
	"galera-cd/internal/repository"
	"galera-cd/pkg/constants"
)

// StateMachine 根据执行器状态推进部署记录
type StateMachine struct {
	repo     repository.DeploymentRepository
	executor executor.Executor
	notifier notification.Notifier
	logger   *zap.Logger
	handlers map[string]Handler
}

func NewDeploymentStateMachine(repo repository.DeploymentRepository, exec executor.Executor, notifier notification.Notifier, logger *zap.Logger) *StateMachine {
	sm := &StateMachine{
		repo:     repo,
		executor: exec,
		notifier: notifier,
		logger:   logger,
		handlers: make(map[string]Handler),
	}
	sm.registerHandlers()
	return sm
}

// Process 对部署执行一次推进, 返回处理后的状态.
// 执行器暂时性错误原样返回, 状态不变
func (sm *StateMachine) Process(ctx context.Context, dep *model.Deployment) (string, error) {
	handler, ok := sm.handlers[dep.Status]
	if !ok {
		return dep.Status, nil
	}

	nextStatus, fields, err := handler.Handle(ctx, dep)
	if err != nil {
		metrics.RecordPoll("transient")
		return dep.Status, fmt.Errorf("deployment %d: %w", dep.ID, err)
	}

	if nextStatus == "" || (nextStatus == dep.Status && len(fields) == 0) {
		metrics.RecordPoll("unchanged")
		return dep.Status, nil
	}

	if _, err := sm.Apply(ctx, dep, nextStatus, fields); err != nil {
		return dep.Status, err
	}
	metrics.RecordPoll("changed")
	return dep.Status, nil
}

// Apply 以当前状态为条件更新, 条件不满足时不做任何修改(终态优先).
// 更新成功后同步 dep 的状态字段
func (sm *StateMachine) Apply(ctx context.Context, dep *model.Deployment, to string, fields map[string]interface{}) (bool, error) {
	log := sm.logger.With(zap.Int64("deployment_id", dep.ID), zap.String("cluster", dep.ClusterName)).Sugar()

	if fields == nil {
		fields = make(map[string]interface{})
	}
	if constants.IsDeploymentTerminal(to) {
		if _, ok := fields["finished_at"]; !ok {
			fields["finished_at"] = time.Now()
		}
	}

	from := dep.Status
	applied, err := sm.repo.Transition(ctx, dep.ID, []string{from}, to, fields)
	if err != nil {
		log.Errorf("[Deployment SM] 状态更新失败 %s -> %s: %v", from, to, err)
		return false, err
	}
	if !applied {
		log.Debugf("[Deployment SM] 状态已被其他流程修改, 忽略 %s -> %s", from, to)
		return false, nil
	}

	dep.Status = to
	if from != to {
		metrics.RecordTransition(from, to)
		log.Infof("[Deployment SM] Deployment:%d 状态变更成功: %s -> %s", dep.ID, from, to)
	}

	if constants.IsDeploymentTerminal(to) && from != to {
		sm.notifyFinished(ctx, dep, fields)
	}
	return true, nil
}

func (sm *StateMachine) notifyFinished(ctx context.Context, dep *model.Deployment, fields map[string]interface{}) {
	if sm.notifier == nil {
		return
	}

	notifyType := notification.NotifyDeployFailed
	switch dep.Status {
	case constants.DeploymentStatusSuccess:
		notifyType = notification.NotifyDeploySuccess
	case constants.DeploymentStatusCancelled:
		notifyType = notification.NotifyDeployCancelled
	case constants.DeploymentStatusRejected:
		notifyType = notification.NotifyDeployRejected
	}

	message, _ := fields["error_message"].(string)
	if err := sm.notifier.SendDeploymentNotification(ctx, dep, notifyType, message); err != nil {
		sm.logger.Warn("发送部署通知失败", zap.Int64("deployment_id", dep.ID), zap.Error(err))
	}
}
