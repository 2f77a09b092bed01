package service

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"galera-cd/internal/adapter/executor"
	"galera-cd/internal/adapter/notification"
	"galera-cd/internal/core/approval"
	"galera-cd/internal/core/capacity"
	"galera-cd/internal/core/params"
	"galera-cd/internal/dto"
	"galera-cd/internal/model"
	"galera-cd/internal/pkg/auth"
	"galera-cd/internal/pkg/crypto"
	"galera-cd/internal/repository"
	"galera-cd/pkg/constants"
	pkgErrors "galera-cd/pkg/errors"
	"galera-cd/pkg/utils"
)

// cancelAttempts 取消时与监控器并发修改状态的重试次数
const cancelAttempts = 3

// Transitioner 以当前状态为条件推进部署状态, 由 deployment.StateMachine 实现
type Transitioner interface {
	Apply(ctx context.Context, dep *model.Deployment, to string, fields map[string]interface{}) (bool, error)
}

// DeploymentService 部署申请、审批与历史
type DeploymentService interface {
	Submit(ctx context.Context, req *dto.SubmitDeploymentRequest, principal auth.Principal) (*dto.SubmitDeploymentResponse, error)
	Approve(ctx context.Context, id int64, principal auth.Principal) (*dto.ApproveDeploymentResponse, error)
	Reject(ctx context.Context, id int64, principal auth.Principal) error
	Cancel(ctx context.Context, id int64, principal auth.Principal) error
	ListHistory(ctx context.Context) ([]*dto.DeploymentResponse, error)
	Get(ctx context.Context, id int64) (*dto.DeploymentResponse, error)
	FetchLog(ctx context.Context, id int64) (*dto.BuildLogResponse, error)
}

// DeploymentDeps 部署服务依赖
type DeploymentDeps struct {
	DB          *gorm.DB
	Deployments repository.DeploymentRepository
	Preflights  repository.PreflightRepository
	Templates   repository.TemplateRepository
	Executor    executor.Executor
	Transitions Transitioner
	Tracker     Tracker
	Notifier    notification.Notifier
	Sealer      *crypto.Sealer
	Resolver    *capacity.Resolver
	JobName     string
	Logger      *zap.Logger
}

type deploymentService struct {
	DeploymentDeps
}

// NewDeploymentService 创建部署服务
func NewDeploymentService(deps DeploymentDeps) DeploymentService {
	if deps.Resolver == nil {
		deps.Resolver = capacity.NewResolver(0)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &deploymentService{DeploymentDeps: deps}
}

// Submit 校验请求, 计算磁盘分配, 冻结参数快照并登记部署.
// 特权用户直接触发执行器, 普通用户等待同行审批
func (s *deploymentService) Submit(ctx context.Context, req *dto.SubmitDeploymentRequest, principal auth.Principal) (*dto.SubmitDeploymentResponse, error) {
	// 1. 请求格式
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	if err := validateTopology(req.Hosts, req.AsyncNodeIP); err != nil {
		return nil, err
	}

	// 2. 预检
	check, err := s.Preflights.FindByID(ctx, req.PreflightID)
	if err != nil {
		if errors.Is(err, pkgErrors.ErrNotFound) {
			return nil, pkgErrors.NotFound("预检 %d 不存在, 请先执行预检", req.PreflightID)
		}
		return nil, err
	}
	if check.Status != constants.PreflightStatusSuccess {
		return nil, pkgErrors.Conflict("预检状态为 %s, 预检通过后才能部署", check.Status)
	}
	if check.ConsumedBy != nil {
		return nil, pkgErrors.ErrAlreadyUsed
	}
	if !sameHostSet(check.Hosts(), req.Hosts) || strings.TrimSpace(check.AsyncNode) != strings.TrimSpace(req.AsyncNodeIP) {
		return nil, pkgErrors.Validation("目标主机与预检记录不一致, 请重新预检")
	}

	// 3. 模板
	var tpl *model.Template
	if req.TemplateID != nil {
		tpl, err = s.Templates.FindByID(ctx, *req.TemplateID)
		if err != nil {
			if errors.Is(err, pkgErrors.ErrNotFound) {
				return nil, pkgErrors.NotFound("模板 %d 不存在", *req.TemplateID)
			}
			return nil, err
		}
		if tpl.Status != constants.TemplateStatusActive {
			return nil, pkgErrors.Validation("模板 %s 当前状态为 %s, 不能用于部署", tpl.Name, tpl.Status)
		}
	}

	req.ApplyDefaults(tpl)

	// 4. 磁盘分配
	capReq := capacity.Request{Nodes: check.Results}
	if tpl != nil {
		capReq.Fixed = &capacity.FixedSizes{LogsGB: tpl.LogsGB, TmpGB: tpl.TmpGB, GcacheGB: tpl.GcacheGB}
	} else {
		pct := req.DiskAllocationPct.ToPercent()
		capReq.Percent = &pct
	}
	if req.DataGB != nil {
		capReq.DataGB = *req.DataGB
	}
	plan, err := s.Resolver.Resolve(capReq)
	if err != nil {
		return nil, err
	}

	// 5. 冻结参数快照, 敏感字段加密落库
	in := params.Input{
		ClusterName:    req.ClusterName,
		Hosts:          req.Hosts,
		AsyncHost:      req.AsyncNodeIP,
		DBRootPass:     req.DBRootPass,
		AppUser:        req.AppUser,
		AppPass:        req.AppPass,
		BufferPool:     req.BufferPool,
		MaxConnections: req.MaxConnections,
		CustomParams:   req.CustomParams,
		Plan:           plan,
	}
	if tpl != nil {
		in.TemplateParams = tpl.CustomParams
	}
	snapshot, err := params.Build(in)
	if err != nil {
		return nil, pkgErrors.Wrap(pkgErrors.CodeInternalError, "生成部署参数失败", err)
	}
	sealed, err := s.Sealer.SealKeys(snapshot, params.SecretKeys...)
	if err != nil {
		return nil, pkgErrors.Wrap(pkgErrors.CodeInternalError, "加密部署参数失败", err)
	}

	status := constants.DeploymentStatusPendingApproval
	if principal.IsPrivileged() {
		status = constants.DeploymentStatusQueued
	}

	dep := &model.Deployment{
		ClusterName:    req.ClusterName,
		TargetHosts:    strings.Join(req.Hosts, ","),
		AsyncNode:      req.AsyncNodeIP,
		Status:         status,
		RequesterEmail: principal.Email,
		JobName:        s.JobName,
		Config:         model.StringMap(sealed),
		PreflightID:    check.ID,
		MinVGSizeGB:    plan.MinCapacityGB,
		LogsGB:         plan.LogsGB,
		TmpGB:          plan.TmpGB,
		GcacheGB:       plan.GcacheGB,
		DataGB:         plan.DataGB,
		ForceWipe:      plan.ForceWipe,
	}
	if tpl != nil {
		dep.TemplateID = &tpl.ID
		dep.TemplateName = lo.ToPtr(tpl.Name)
	}

	// 6. 登记部署并消费预检, 同一事务内完成
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.Deployments.WithTx(tx).Create(ctx, dep); err != nil {
			return err
		}
		consumed, err := s.Preflights.WithTx(tx).TryConsume(ctx, check.ID, dep.ID)
		if err != nil {
			return err
		}
		if !consumed {
			return pkgErrors.ErrAlreadyUsed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := s.Logger.With(zap.Int64("deployment_id", dep.ID), zap.String("cluster", dep.ClusterName)).Sugar()
	log.Infof("部署已登记: status=%s requester=%s min_vg=%.2fGB logs=%.1f tmp=%.1f gcache=%.1f data=%s force_wipe=%v",
		dep.Status, dep.RequesterEmail, plan.MinCapacityGB, plan.LogsGB, plan.TmpGB, plan.GcacheGB, plan.LVDataSize(), plan.ForceWipe)

	// 7. 普通用户等待审批
	if !principal.IsPrivileged() {
		s.notify(ctx, dep, notification.NotifyApprovalRequested, "")
		return &dto.SubmitDeploymentResponse{
			Message:      "Request sent for peer approval.",
			DeploymentID: dep.ID,
			Status:       dep.Status,
		}, nil
	}

	// 8. 特权用户直接触发, 失败则记为 NOT_BUILT
	token, err := s.trigger(ctx, dep)
	if err != nil {
		log.Errorf("触发部署失败: %v", err)
		if _, applyErr := s.Transitions.Apply(ctx, dep, constants.DeploymentStatusNotBuilt, map[string]interface{}{
			"error_message": "Failed to trigger executor: " + err.Error(),
		}); applyErr != nil {
			log.Errorf("记录 NOT_BUILT 失败: %v", applyErr)
		}
		return nil, pkgErrors.Executor("触发部署失败", err)
	}

	if err := s.bindToken(ctx, dep, token); err != nil {
		return nil, err
	}
	return &dto.SubmitDeploymentResponse{
		Message:      "Deployment Started!",
		DeploymentID: dep.ID,
		Status:       dep.Status,
	}, nil
}

// Approve 同行审批通过, 用冻结的快照原样触发执行器.
// 先抢占 PENDING_APPROVAL -> QUEUED, 触发失败时回退到 PENDING_APPROVAL
func (s *deploymentService) Approve(ctx context.Context, id int64, principal auth.Principal) (*dto.ApproveDeploymentResponse, error) {
	dep, err := s.Deployments.FindByID(ctx, id)
	if err := approval.Authorize(dep, err, principal.Email); err != nil {
		return nil, err
	}

	applied, err := s.Transitions.Apply(ctx, dep, constants.DeploymentStatusQueued, map[string]interface{}{
		"approver_email": principal.Email,
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, pkgErrors.ErrStateConflict
	}
	dep.ApproverEmail = lo.ToPtr(principal.Email)

	log := s.Logger.With(zap.Int64("deployment_id", dep.ID), zap.String("approver", principal.Email)).Sugar()

	token, err := s.trigger(ctx, dep)
	if err != nil {
		log.Errorf("审批后触发部署失败: %v", err)
		if _, revertErr := s.Deployments.Transition(ctx, dep.ID,
			[]string{constants.DeploymentStatusQueued}, constants.DeploymentStatusPendingApproval,
			map[string]interface{}{"approver_email": nil}); revertErr != nil {
			log.Errorf("回退审批状态失败: %v", revertErr)
		}
		return nil, pkgErrors.Executor("触发部署失败", err)
	}

	if err := s.bindToken(ctx, dep, token); err != nil {
		return nil, err
	}
	s.notify(ctx, dep, notification.NotifyDeployApproved, "")

	return &dto.ApproveDeploymentResponse{
		Message:       "Approved & Deployed!",
		TrackingToken: token,
	}, nil
}

// Reject 同行驳回
func (s *deploymentService) Reject(ctx context.Context, id int64, principal auth.Principal) error {
	dep, err := s.Deployments.FindByID(ctx, id)
	if err := approval.Authorize(dep, err, principal.Email); err != nil {
		return err
	}

	applied, err := s.Transitions.Apply(ctx, dep, constants.DeploymentStatusRejected, map[string]interface{}{
		"approver_email": principal.Email,
	})
	if err != nil {
		return err
	}
	if !applied {
		return pkgErrors.ErrStateConflict
	}
	return nil
}

// Cancel 特权用户取消 QUEUED/RUNNING 部署, 停止构建失败不影响取消
func (s *deploymentService) Cancel(ctx context.Context, id int64, principal auth.Principal) error {
	if err := requirePermission(principal, auth.PermDeploymentCancel); err != nil {
		return err
	}

	var (
		stopped  int64
		dequeued bool
	)
	for attempt := 0; attempt < cancelAttempts; attempt++ {
		dep, err := s.Deployments.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, pkgErrors.ErrNotFound) {
				return pkgErrors.NotFound("部署 %d 不存在", id)
			}
			return err
		}
		if !lo.Contains(constants.DeploymentActiveStatuses, dep.Status) {
			return pkgErrors.Conflict("部署当前状态为 %s, 只能取消 QUEUED 或 RUNNING 状态的部署", dep.Status)
		}

		log := s.Logger.With(zap.Int64("deployment_id", dep.ID), zap.String("operator", principal.Email)).Sugar()

		if dep.ExecutionID != nil && *dep.ExecutionID != stopped {
			if err := s.Executor.Stop(ctx, dep.JobName, *dep.ExecutionID); err != nil {
				log.Warnf("停止构建 #%d 失败, 继续取消: %v", *dep.ExecutionID, err)
			} else {
				log.Infof("构建 #%d 已停止", *dep.ExecutionID)
			}
			stopped = *dep.ExecutionID
		} else if dep.ExecutionID == nil && dep.TrackingToken != nil && !dequeued {
			if err := s.Executor.Dequeue(ctx, *dep.TrackingToken); err != nil {
				log.Warnf("撤回排队项 %s 失败, 继续取消: %v", *dep.TrackingToken, err)
			}
			dequeued = true
		}

		applied, err := s.Transitions.Apply(ctx, dep, constants.DeploymentStatusCancelled, map[string]interface{}{
			"approver_email": principal.Email,
		})
		if err != nil {
			return err
		}
		if applied {
			log.Infof("部署已取消")
			return nil
		}
	}
	return pkgErrors.ErrStateConflict
}

// ListHistory 最近的部署记录, 按 id 倒序
func (s *deploymentService) ListHistory(ctx context.Context) ([]*dto.DeploymentResponse, error) {
	deps, err := s.Deployments.ListRecent(ctx, constants.HistoryLimit)
	if err != nil {
		return nil, err
	}
	return lo.Map(deps, func(d *model.Deployment, _ int) *dto.DeploymentResponse {
		return dto.NewDeploymentResponse(d)
	}), nil
}

// Get 部署详情
func (s *deploymentService) Get(ctx context.Context, id int64) (*dto.DeploymentResponse, error) {
	dep, err := s.Deployments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, pkgErrors.ErrNotFound) {
			return nil, pkgErrors.NotFound("部署 %d 不存在", id)
		}
		return nil, err
	}
	return dto.NewDeploymentResponse(dep), nil
}

// FetchLog 通过只读账号拉取构建日志
func (s *deploymentService) FetchLog(ctx context.Context, id int64) (*dto.BuildLogResponse, error) {
	dep, err := s.Deployments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, pkgErrors.ErrNotFound) {
			return nil, pkgErrors.NotFound("部署 %d 不存在", id)
		}
		return nil, err
	}
	if dep.ExecutionID == nil {
		return nil, pkgErrors.NotFound("部署 %d 尚未开始构建", id)
	}

	logs, err := s.Executor.FetchLog(ctx, dep.JobName, *dep.ExecutionID)
	if err != nil {
		return nil, err
	}
	return &dto.BuildLogResponse{Logs: logs, ExecutionID: *dep.ExecutionID}, nil
}

// trigger 解密快照并触发执行器
func (s *deploymentService) trigger(ctx context.Context, dep *model.Deployment) (string, error) {
	opened, err := s.Sealer.OpenKeys(dep.Config, params.SecretKeys...)
	if err != nil {
		return "", pkgErrors.Wrap(pkgErrors.CodeInternalError, "解密部署参数失败", err)
	}
	return s.Executor.Trigger(ctx, dep.JobName, opened)
}

// bindToken 记录排队 token 并交给监控器
func (s *deploymentService) bindToken(ctx context.Context, dep *model.Deployment, token string) error {
	applied, err := s.Deployments.Transition(ctx, dep.ID,
		[]string{constants.DeploymentStatusQueued}, constants.DeploymentStatusQueued,
		map[string]interface{}{"tracking_token": token})
	if err != nil {
		return err
	}
	dep.TrackingToken = &token
	if !applied {
		// 触发期间部署已被取消, 撤回刚排队的构建
		log := s.Logger.With(zap.Int64("deployment_id", dep.ID), zap.String("token", token))
		if err := s.Executor.Dequeue(ctx, token); err != nil {
			log.Warn("部署状态已变化, 撤回排队项失败, 需人工确认执行器中的构建", zap.Error(err))
		} else {
			log.Warn("部署状态已变化, 已撤回排队项")
		}
		return nil
	}
	if s.Tracker != nil && !s.Tracker.Track(dep.ID) {
		s.Logger.Debug("部署已在跟踪中", zap.Int64("deployment_id", dep.ID))
	}
	return nil
}

func (s *deploymentService) notify(ctx context.Context, dep *model.Deployment, notifyType notification.NotificationType, message string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendDeploymentNotification(ctx, dep, notifyType, message); err != nil {
		s.Logger.Warn("发送部署通知失败", zap.Int64("deployment_id", dep.ID), zap.Error(err))
	}
}
