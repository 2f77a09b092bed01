package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"galera-cd/internal/adapter/notification"
	"galera-cd/internal/core/approval"
	"galera-cd/internal/dto"
	"galera-cd/internal/model"
	"galera-cd/internal/pkg/auth"
	"galera-cd/internal/repository"
	"galera-cd/pkg/constants"
	pkgErrors "galera-cd/pkg/errors"
	"galera-cd/pkg/utils"
)

// TemplateService 模板版本管理.
// 普通用户的新建和修改都需要同行审批, 特权用户直接生效
type TemplateService interface {
	List(ctx context.Context, principal auth.Principal) ([]*dto.TemplateResponse, error)
	Get(ctx context.Context, id int64) (*dto.TemplateResponse, error)
	Create(ctx context.Context, req *dto.TemplateRequest, principal auth.Principal) (*dto.TemplateActionResponse, error)
	Update(ctx context.Context, id int64, req *dto.TemplateRequest, principal auth.Principal) (*dto.TemplateActionResponse, error)
	Delete(ctx context.Context, id int64, principal auth.Principal) error
	Duplicate(ctx context.Context, id int64, principal auth.Principal) (*dto.TemplateActionResponse, error)
	Approve(ctx context.Context, id int64, principal auth.Principal) (*dto.TemplateActionResponse, error)
	Reject(ctx context.Context, id int64, principal auth.Principal) (*dto.TemplateActionResponse, error)
}

type templateService struct {
	repo     repository.TemplateRepository
	notifier notification.Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewTemplateService 创建模板服务
func NewTemplateService(repo repository.TemplateRepository, notifier notification.Notifier, logger *zap.Logger) TemplateService {
	return &templateService{
		repo:     repo,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *templateService) List(ctx context.Context, principal auth.Principal) ([]*dto.TemplateResponse, error) {
	var statuses []string
	if !principal.IsPrivileged() {
		statuses = []string{constants.TemplateStatusActive, constants.TemplateStatusPendingApproval}
	}
	tpls, err := s.repo.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return lo.Map(tpls, func(t *model.Template, _ int) *dto.TemplateResponse {
		return dto.NewTemplateResponse(t)
	}), nil
}

func (s *templateService) Get(ctx context.Context, id int64) (*dto.TemplateResponse, error) {
	tpl, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewTemplateResponse(tpl), nil
}

// Create 新建模板
func (s *templateService) Create(ctx context.Context, req *dto.TemplateRequest, principal auth.Principal) (*dto.TemplateActionResponse, error) {
	tpl, err := s.fromRequest(req)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNameFree(ctx, tpl.Name); err != nil {
		return nil, err
	}
	tpl.CreatedBy = principal.Email
	s.applyAuthorStatus(tpl, principal)

	if err := s.repo.Create(ctx, tpl); err != nil {
		if pkgErrors.CodeOf(err) == pkgErrors.CodeConflict {
			return nil, pkgErrors.Conflict("模板 %s 已存在", tpl.Name)
		}
		return nil, err
	}

	message := "Template created and activated successfully"
	if tpl.Status == constants.TemplateStatusPendingApproval {
		message = "Template created. Awaiting peer approval."
		s.notify(ctx, tpl, notification.NotifyTemplatePending)
	}
	return &dto.TemplateActionResponse{Message: message, Template: dto.NewTemplateResponse(tpl)}, nil
}

// Update 特权用户直接修改; 普通用户生成待审批的修改副本, 原模板保持不变
func (s *templateService) Update(ctx context.Context, id int64, req *dto.TemplateRequest, principal auth.Principal) (*dto.TemplateActionResponse, error) {
	changes, err := s.fromRequest(req)
	if err != nil {
		return nil, err
	}

	original, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if original.IsShadow() {
		return nil, pkgErrors.Conflict("模板 %s 是待审批的修改, 不能再次修改", original.Name)
	}

	if principal.IsPrivileged() {
		if changes.Name != original.Name {
			if err := s.ensureNameFree(ctx, changes.Name); err != nil {
				return nil, err
			}
		}
		err := s.repo.Update(ctx, id, map[string]interface{}{
			"name":            changes.Name,
			"description":     changes.Description,
			"buffer_pool":     changes.BufferPool,
			"max_connections": changes.MaxConnections,
			"custom_params":   changes.CustomParams,
			"logs_gb":         changes.LogsGB,
			"tmp_gb":          changes.TmpGB,
			"gcache_gb":       changes.GcacheGB,
		})
		if err != nil {
			if pkgErrors.CodeOf(err) == pkgErrors.CodeConflict {
				return nil, pkgErrors.Conflict("模板 %s 已存在", changes.Name)
			}
			return nil, err
		}
		updated, err := s.find(ctx, id)
		if err != nil {
			return nil, err
		}
		return &dto.TemplateActionResponse{Message: "Template updated successfully", Template: dto.NewTemplateResponse(updated)}, nil
	}

	changes.CreatedBy = principal.Email
	changes.Status = constants.TemplateStatusPendingApproval
	changes.ParentTemplateID = &original.ID

	base := changes.Name
	if err := s.createUnique(ctx, changes, base+constants.TemplatePendingEditSuffix, func(ts int64) string {
		return fmt.Sprintf("%s (Pending Edit %d)", base, ts)
	}); err != nil {
		return nil, err
	}

	s.notify(ctx, changes, notification.NotifyTemplatePending)
	return &dto.TemplateActionResponse{
		Message:  "Edit submitted for approval. Original template remains active.",
		Template: dto.NewTemplateResponse(changes),
	}, nil
}

// Delete 仅特权用户可删除
func (s *templateService) Delete(ctx context.Context, id int64, principal auth.Principal) error {
	if err := requirePermission(principal, auth.PermTemplateDelete); err != nil {
		return err
	}
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return pkgErrors.NotFound("模板 %d 不存在", id)
	}
	s.logger.Info("模板已删除", zap.Int64("template_id", id), zap.String("operator", principal.Email))
	return nil
}

// Duplicate 复制为 "<name> (Copy)", 状态按操作人角色决定
func (s *templateService) Duplicate(ctx context.Context, id int64, principal auth.Principal) (*dto.TemplateActionResponse, error) {
	src, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	dup := &model.Template{
		Description:    src.Description,
		BufferPool:     src.BufferPool,
		MaxConnections: src.MaxConnections,
		CustomParams:   src.CustomParams.Clone(),
		LogsGB:         orDefaultGB(src.LogsGB),
		TmpGB:          orDefaultGB(src.TmpGB),
		GcacheGB:       orDefaultGB(src.GcacheGB),
		CreatedBy:      principal.Email,
	}
	s.applyAuthorStatus(dup, principal)

	if err := s.createUnique(ctx, dup, src.Name+constants.TemplateCopySuffix, func(ts int64) string {
		return fmt.Sprintf("%s (Copy %d)", src.Name, ts)
	}); err != nil {
		return nil, err
	}

	if dup.Status == constants.TemplateStatusPendingApproval {
		s.notify(ctx, dup, notification.NotifyTemplatePending)
	}
	return &dto.TemplateActionResponse{Message: "Template duplicated successfully", Template: dto.NewTemplateResponse(dup)}, nil
}

// Approve 修改副本合入父模板; 新模板直接生效
func (s *templateService) Approve(ctx context.Context, id int64, principal auth.Principal) (*dto.TemplateActionResponse, error) {
	tpl, err := s.repo.FindByID(ctx, id)
	if err := approval.Authorize(tpl, err, principal.Email); err != nil {
		return nil, err
	}

	if tpl.IsShadow() {
		if err := s.repo.MergeShadow(ctx, tpl, principal.Email); err != nil {
			return nil, err
		}
		parent, err := s.find(ctx, *tpl.ParentTemplateID)
		if err != nil {
			return nil, err
		}
		s.notify(ctx, parent, notification.NotifyTemplateApproved)
		return &dto.TemplateActionResponse{Message: "Template edit approved and applied!", Template: dto.NewTemplateResponse(parent)}, nil
	}

	applied, err := s.repo.Transition(ctx, tpl.ID, constants.TemplateStatusPendingApproval, constants.TemplateStatusActive,
		map[string]interface{}{"approved_by": principal.Email})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, pkgErrors.ErrStateConflict
	}
	tpl.Status = constants.TemplateStatusActive
	tpl.ApprovedBy = lo.ToPtr(principal.Email)

	s.notify(ctx, tpl, notification.NotifyTemplateApproved)
	return &dto.TemplateActionResponse{Message: "Template approved and activated!", Template: dto.NewTemplateResponse(tpl)}, nil
}

// Reject 修改副本直接删除; 新模板标记为 REJECTED 保留
func (s *templateService) Reject(ctx context.Context, id int64, principal auth.Principal) (*dto.TemplateActionResponse, error) {
	tpl, err := s.repo.FindByID(ctx, id)
	if err := approval.Authorize(tpl, err, principal.Email); err != nil {
		return nil, err
	}

	if tpl.IsShadow() {
		deleted, err := s.repo.DeletePending(ctx, tpl.ID)
		if err != nil {
			return nil, err
		}
		if !deleted {
			return nil, pkgErrors.ErrStateConflict
		}
		s.notify(ctx, tpl, notification.NotifyTemplateRejected)
		return &dto.TemplateActionResponse{Message: "Template edit rejected. Original remains active."}, nil
	}

	applied, err := s.repo.Transition(ctx, tpl.ID, constants.TemplateStatusPendingApproval, constants.TemplateStatusRejected,
		map[string]interface{}{"approved_by": principal.Email})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, pkgErrors.ErrStateConflict
	}
	tpl.Status = constants.TemplateStatusRejected
	tpl.ApprovedBy = lo.ToPtr(principal.Email)

	s.notify(ctx, tpl, notification.NotifyTemplateRejected)
	return &dto.TemplateActionResponse{Message: "Template rejected", Template: dto.NewTemplateResponse(tpl)}, nil
}

func (s *templateService) find(ctx context.Context, id int64) (*model.Template, error) {
	tpl, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, pkgErrors.ErrNotFound) {
			return nil, pkgErrors.NotFound("模板 %d 不存在", id)
		}
		return nil, err
	}
	return tpl, nil
}

// fromRequest 校验请求并补齐默认值
func (s *templateService) fromRequest(req *dto.TemplateRequest) (*model.Template, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, pkgErrors.Validation("模板名称不能为空")
	}

	tpl := &model.Template{
		Name:           name,
		Description:    req.Description,
		BufferPool:     lo.CoalesceOrEmpty(req.BufferPool, constants.DefaultBufferPool),
		MaxConnections: lo.CoalesceOrEmpty(req.MaxConnections, constants.DefaultMaxConnections),
		CustomParams:   model.StringMap(lo.Assign(map[string]string{}, req.CustomParams)),
		LogsGB:         orDefaultGB(lo.FromPtr(req.LogsGB)),
		TmpGB:          orDefaultGB(lo.FromPtr(req.TmpGB)),
		GcacheGB:       orDefaultGB(lo.FromPtr(req.GcacheGB)),
	}
	return tpl, nil
}

func (s *templateService) ensureNameFree(ctx context.Context, name string) error {
	exists, err := s.repo.ExistsByName(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return pkgErrors.Conflict("模板 %s 已存在", name)
	}
	return nil
}

func (s *templateService) applyAuthorStatus(tpl *model.Template, principal auth.Principal) {
	if principal.IsPrivileged() {
		tpl.Status = constants.TemplateStatusActive
		tpl.ApprovedBy = lo.ToPtr(principal.Email)
		return
	}
	tpl.Status = constants.TemplateStatusPendingApproval
}

// createUnique 优先使用 name, 重名时追加毫秒时间戳
func (s *templateService) createUnique(ctx context.Context, tpl *model.Template, name string, fallback func(ts int64) string) error {
	exists, err := s.repo.ExistsByName(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		tpl.Name = name
		err = s.repo.Create(ctx, tpl)
		if err == nil || pkgErrors.CodeOf(err) != pkgErrors.CodeConflict {
			return err
		}
	}

	tpl.ID = 0
	tpl.Name = fallback(s.now().UnixMilli())
	return s.repo.Create(ctx, tpl)
}

func (s *templateService) notify(ctx context.Context, tpl *model.Template, notifyType notification.NotificationType) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.SendTemplateNotification(ctx, tpl, notifyType, ""); err != nil {
		s.logger.Warn("发送模板通知失败", zap.Int64("template_id", tpl.ID), zap.Error(err))
	}
}

func orDefaultGB(v float64) float64 {
	if v <= 0 {
		return constants.DefaultTemplatePartitionGB
	}
	return v
}
