package repository

import (
	"context"

	"gorm.io/gorm"

	"galera-cd/internal/model"
	"galera-cd/pkg/constants"
	pkgErrors "galera-cd/pkg/errors"
)

// TemplateRepository 配置模板仓储接口
type TemplateRepository interface {
	Create(ctx context.Context, tpl *model.Template) error
	FindByID(ctx context.Context, id int64) (*model.Template, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	List(ctx context.Context, statuses ...string) ([]*model.Template, error)
	Update(ctx context.Context, id int64, fields map[string]interface{}) error
	Delete(ctx context.Context, id int64) (bool, error)
	Transition(ctx context.Context, id int64, from, to string, fields map[string]interface{}) (bool, error)
	MergeShadow(ctx context.Context, shadow *model.Template, approver string) error
	DeletePending(ctx context.Context, id int64) (bool, error)
}

type templateRepository struct {
	db *gorm.DB
}

// NewTemplateRepository 创建模板仓储实例
func NewTemplateRepository(db *gorm.DB) TemplateRepository {
	return &templateRepository{db: db}
}

func (r *templateRepository) Create(ctx context.Context, tpl *model.Template) error {
	if err := r.db.WithContext(ctx).Create(tpl).Error; err != nil {
		return translate(err, "创建模板失败")
	}
	return nil
}

func (r *templateRepository) FindByID(ctx context.Context, id int64) (*model.Template, error) {
	var tpl model.Template
	if err := r.db.WithContext(ctx).First(&tpl, id).Error; err != nil {
		return nil, translate(err, "查询模板失败")
	}
	return &tpl, nil
}

func (r *templateRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Template{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return false, pkgErrors.Wrap(pkgErrors.CodeDatabaseError, "查询模板名称失败", err)
	}
	return count > 0, nil
}

// List 按状态过滤, 不传状态时返回全部
func (r *templateRepository) List(ctx context.Context, statuses ...string) ([]*model.Template, error) {
	query := r.db.WithContext(ctx).Model(&model.Template{})
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}

	var tpls []*model.Template
	if err := query.Order("created_at DESC, id DESC").Find(&tpls).Error; err != nil {
		return nil, pkgErrors.Wrap(pkgErrors.CodeDatabaseError, "查询模板列表失败", err)
	}
	return tpls, nil
}

func (r *templateRepository) Update(ctx context.Context, id int64, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&model.Template{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return translate(res.Error, "更新模板失败")
	}
	if res.RowsAffected == 0 {
		return pkgErrors.ErrRecordNotFound
	}
	return nil
}

// Delete 删除模板及其待审批的修改副本
func (r *templateRepository) Delete(ctx context.Context, id int64) (bool, error) {
	deleted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&model.Template{}, id)
		if res.Error != nil {
			return pkgErrors.Wrap(pkgErrors.CodeDatabaseError, "删除模板失败", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		deleted = true
		if err := tx.Where("parent_template_id = ?", id).Delete(&model.Template{}).Error; err != nil {
			return pkgErrors.Wrap(pkgErrors.CodeDatabaseError, "删除模板修改副本失败", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// Transition 条件更新模板状态
func (r *templateRepository) Transition(ctx context.Context, id int64, from, to string, fields map[string]interface{}) (bool, error) {
	updates := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["status"] = to

	res := r.db.WithContext(ctx).Model(&model.Template{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, translate(res.Error, "更新模板状态失败")
	}
	return res.RowsAffected == 1, nil
}

// MergeShadow 把影子副本的内容合入父模板并记录审批人, 然后删除影子副本
func (r *templateRepository) MergeShadow(ctx context.Context, shadow *model.Template, approver string) error {
	if shadow.ParentTemplateID == nil {
		return pkgErrors.Conflict("模板 %d 不是待审批的修改", shadow.ID)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 先删影子, 释放唯一名称并确认仍处于待审批
		res := tx.Where("id = ? AND status = ?", shadow.ID, constants.TemplateStatusPendingApproval).Delete(&model.Template{})
		if res.Error != nil {
			return pkgErrors.Wrap(pkgErrors.CodeDatabaseError, "删除影子模板失败", res.Error)
		}
		if res.RowsAffected == 0 {
			return pkgErrors.ErrStateConflict
		}

		res = tx.Model(&model.Template{}).Where("id = ?", *shadow.ParentTemplateID).Updates(map[string]interface{}{
			"name":            shadow.BaseName(),
			"description":     shadow.Description,
			"buffer_pool":     shadow.BufferPool,
			"max_connections": shadow.MaxConnections,
			"custom_params":   shadow.CustomParams,
			"logs_gb":         shadow.LogsGB,
			"tmp_gb":          shadow.TmpGB,
			"gcache_gb":       shadow.GcacheGB,
			"approved_by":     approver,
		})
		if res.Error != nil {
			return translate(res.Error, "合并模板修改失败")
		}
		if res.RowsAffected == 0 {
			return pkgErrors.NotFound("原模板 %d 不存在", *shadow.ParentTemplateID)
		}
		return nil
	})
}

// DeletePending 删除仍处于待审批状态的模板
func (r *templateRepository) DeletePending(ctx context.Context, id int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, constants.TemplateStatusPendingApproval).
		Delete(&model.Template{})
	if res.Error != nil {
		return false, pkgErrors.Wrap(pkgErrors.CodeDatabaseError, "删除模板失败", res.Error)
	}
	return res.RowsAffected == 1, nil
}
