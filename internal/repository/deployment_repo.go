package repository

import (
	"context"

	"gorm.io/gorm"

	"galera-cd/internal/model"
	pkgErrors "galera-cd/pkg/errors"
)

// DeploymentRepository 部署记录仓储接口
type DeploymentRepository interface {
	Create(ctx context.Context, dep *model.Deployment) error
	FindByID(ctx context.Context, id int64) (*model.Deployment, error)
	ListRecent(ctx context.Context, limit int) ([]*model.Deployment, error)
	ListByStatus(ctx context.Context, statuses ...string) ([]*model.Deployment, error)
	Transition(ctx context.Context, id int64, from []string, to string, fields map[string]interface{}) (bool, error)
	WithTx(tx *gorm.DB) DeploymentRepository
}

type deploymentRepository struct {
	db *gorm.DB
}

// NewDeploymentRepository 创建部署仓储实例
func NewDeploymentRepository(db *gorm.DB) DeploymentRepository {
	return &deploymentRepository{db: db}
}

func (r *deploymentRepository) WithTx(tx *gorm.DB) DeploymentRepository {
	return &deploymentRepository{db: tx}
}

func (r *deploymentRepository) Create(ctx context.Context, dep *model.Deployment) error {
	if err := r.db.WithContext(ctx).Create(dep).Error; err != nil {
		return pkgErrors.Wrap(pkgErrors.CodeDatabaseError, "创建部署记录失败", err)
	}
	return nil
}

func (r *deploymentRepository) FindByID(ctx context.Context, id int64) (*model.Deployment, error) {
	var dep model.Deployment
	if err := r.db.WithContext(ctx).First(&dep, id).Error; err != nil {
		return nil, translate(err, "查询部署记录失败")
	}
	return &dep, nil
}

// ListRecent 按 id 倒序取最近 limit 条
func (r *deploymentRepository) ListRecent(ctx context.Context, limit int) ([]*model.Deployment, error) {
	var deps []*model.Deployment
	if err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&deps).Error; err != nil {
		return nil, pkgErrors.Wrap(pkgErrors.CodeDatabaseError, "查询部署历史失败", err)
	}
	return deps, nil
}

func (r *deploymentRepository) ListByStatus(ctx context.Context, statuses ...string) ([]*model.Deployment, error) {
	var deps []*model.Deployment
	if err := r.db.WithContext(ctx).Where("status IN ?", statuses).Order("id").Find(&deps).Error; err != nil {
		return nil, pkgErrors.Wrap(pkgErrors.CodeDatabaseError, "按状态查询部署失败", err)
	}
	return deps, nil
}

// Transition 条件更新: 仅当当前状态属于 from 时生效, 返回是否命中.
// 状态检查和写入在同一条 UPDATE 中完成, 并发写入只有一方成功
func (r *deploymentRepository) Transition(ctx context.Context, id int64, from []string, to string, fields map[string]interface{}) (bool, error) {
	updates := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["status"] = to

	res := r.db.WithContext(ctx).Model(&model.Deployment{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, pkgErrors.Wrap(pkgErrors.CodeDatabaseError, "更新部署状态失败", res.Error)
	}
	return res.RowsAffected == 1, nil
}
