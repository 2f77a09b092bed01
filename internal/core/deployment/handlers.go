package deployment

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"galera-cd/internal/adapter/executor"
	"galera-cd/internal/model"
	"galera-cd/pkg/constants"
)

// Handler 返回目标状态和需要一起写入的字段, 目标状态为空表示继续等待
type Handler interface {
	Handle(ctx context.Context, dep *model.Deployment) (status string, fields map[string]interface{}, err error)
}

type HandlerFunc func(ctx context.Context, dep *model.Deployment) (string, map[string]interface{}, error)

func (h HandlerFunc) Handle(ctx context.Context, dep *model.Deployment) (string, map[string]interface{}, error) {
	return h(ctx, dep)
}

func (sm *StateMachine) registerHandlers() {
	sm.handlers[constants.DeploymentStatusQueued] = HandlerFunc(sm.HandleQueued)
	sm.handlers[constants.DeploymentStatusRunning] = HandlerFunc(sm.HandleRunning)
}

// handlers

// HandleQueued handle Queued -> Running / Cancelled / Aborted
func (sm *StateMachine) HandleQueued(ctx context.Context, dep *model.Deployment) (string, map[string]interface{}, error) {
	if dep.ExecutionID != nil {
		// 执行号已绑定, 直接按执行中处理
		return constants.DeploymentStatusRunning, nil, nil
	}
	if dep.TrackingToken == nil || *dep.TrackingToken == "" {
		return "", nil, nil
	}

	state, err := sm.executor.QueryQueued(ctx, *dep.TrackingToken)
	if err != nil {
		return "", nil, err
	}

	switch state.Phase {
	case executor.QueueCancelled:
		return constants.DeploymentStatusCancelled, map[string]interface{}{
			"error_message": "构建在执行器队列中被取消",
		}, nil
	case executor.QueueNotFound:
		return constants.DeploymentStatusAborted, map[string]interface{}{
			"error_message": fmt.Sprintf("执行器中找不到排队项 %s, 可能已过期被清理", *dep.TrackingToken),
		}, nil
	case executor.QueueAssigned:
		return constants.DeploymentStatusRunning, map[string]interface{}{
			"execution_id": state.ExecutionID,
			"started_at":   time.Now(),
		}, nil
	default:
		return "", nil, nil // 继续排队
	}
}

// HandleRunning handle Running -> Success / Failure / Aborted / NotBuilt
func (sm *StateMachine) HandleRunning(ctx context.Context, dep *model.Deployment) (string, map[string]interface{}, error) {
	log := sm.logger.With(zap.Int64("deployment_id", dep.ID)).Sugar()

	if dep.ExecutionID == nil {
		return constants.DeploymentStatusAborted, map[string]interface{}{
			"error_message": "部署处于执行中但没有执行号",
		}, nil
	}

	state, err := sm.executor.QueryExecution(ctx, dep.JobName, *dep.ExecutionID)
	if err != nil {
		return "", nil, err
	}

	switch state.Phase {
	case executor.ExecutionNotFound:
		return constants.DeploymentStatusAborted, map[string]interface{}{
			"error_message": fmt.Sprintf("执行器中找不到构建 %s#%d", dep.JobName, *dep.ExecutionID),
		}, nil
	case executor.ExecutionFinished:
		status := MapResult(state.Result)
		fields := map[string]interface{}{}
		if status != constants.DeploymentStatusSuccess {
			fields["error_message"] = resultMessage(state.Result)
		}
		return status, fields, nil
	default:
		log.Debugf("[Deployment SM: %d] 构建进行中: %s#%d", dep.ID, dep.JobName, *dep.ExecutionID)
		return "", nil, nil // 继续等待
	}
}

// MapResult 执行器结果映射为部署终态, 未知结果按失败处理
func MapResult(result string) string {
	switch result {
	case constants.ExecutorResultSuccess:
		return constants.DeploymentStatusSuccess
	case constants.ExecutorResultAborted:
		return constants.DeploymentStatusAborted
	case constants.ExecutorResultNotBuilt:
		return constants.DeploymentStatusNotBuilt
	default:
		return constants.DeploymentStatusFailure
	}
}

func resultMessage(result string) string {
	if result == "" {
		return "构建结束但执行器未返回结果"
	}
	return fmt.Sprintf("构建结果: %s", result)
}
