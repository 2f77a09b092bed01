package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"galera-cd/internal/model"
	"galera-cd/pkg/constants"
	pkgErrors "galera-cd/pkg/errors"
)

// PreflightRepository 预检记录仓储接口
type PreflightRepository interface {
	Create(ctx context.Context, check *model.PreflightCheck) error
	FindByID(ctx context.Context, id int64) (*model.PreflightCheck, error)
	SetTrackingToken(ctx context.Context, id int64, token string) error
	MarkFailed(ctx context.Context, id int64, reason string) (bool, error)
	Complete(ctx context.Context, id int64, status string, results []model.NodeResult, errorMessage *string) (bool, error)
	TryConsume(ctx context.Context, id, deploymentID int64) (bool, error)
	WithTx(tx *gorm.DB) PreflightRepository
}

type preflightRepository struct {
	db *gorm.DB
}

// NewPreflightRepository 创建预检仓储实例
func NewPreflightRepository(db *gorm.DB) PreflightRepository {
	return &preflightRepository{db: db}
}

func (r *preflightRepository) WithTx(tx *gorm.DB) PreflightRepository {
	return &preflightRepository{db: tx}
}

func (r *preflightRepository) Create(ctx context.Context, check *model.PreflightCheck) error {
	if err := r.db.WithContext(ctx).Create(check).Error; err != nil {
		return pkgErrors.Wrap(pkgErrors.CodeDatabaseError, "创建预检记录失败", err)
	}
	return nil
}

func (r *preflightRepository) FindByID(ctx context.Context, id int64) (*model.PreflightCheck, error) {
	var check model.PreflightCheck
	if err := r.db.WithContext(ctx).First(&check, id).Error; err != nil {
		return nil, translate(err, "查询预检记录失败")
	}
	return &check, nil
}

// SetTrackingToken 记录执行器排队 token
func (r *preflightRepository) SetTrackingToken(ctx context.Context, id int64, token string) error {
	err := r.db.WithContext(ctx).Model(&model.PreflightCheck{}).
		Where("id = ?", id).
		Update("tracking_token", token).Error
	if err != nil {
		return pkgErrors.Wrap(pkgErrors.CodeDatabaseError, "更新预检 token 失败", err)
	}
	return nil
}

// MarkFailed RUNNING -> FAILED
func (r *preflightRepository) MarkFailed(ctx context.Context, id int64, reason string) (bool, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&model.PreflightCheck{}).
		Where("id = ? AND status = ?", id, constants.PreflightStatusRunning).
		Updates(map[string]interface{}{
			"status":        constants.PreflightStatusFailed,
			"error_message": reason,
			"completed_at":  now,
		})
	if res.Error != nil {
		return false, pkgErrors.Wrap(pkgErrors.CodeDatabaseError, "更新预检状态失败", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Complete 写入回调结果, 已被消费的记录不会被覆盖
func (r *preflightRepository) Complete(ctx context.Context, id int64, status string, results []model.NodeResult, errorMessage *string) (bool, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&model.PreflightCheck{}).
		Where("id = ? AND consumed_by IS NULL", id).
		Updates(map[string]interface{}{
			"status":        status,
			"results":       datatypes.JSONSlice[model.NodeResult](results),
			"error_message": errorMessage,
			"completed_at":  now,
		})
	if res.Error != nil {
		return false, pkgErrors.Wrap(pkgErrors.CodeDatabaseError, "保存预检结果失败", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// TryConsume 原子地标记预检已被部署使用(CAS)
func (r *preflightRepository) TryConsume(ctx context.Context, id, deploymentID int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.PreflightCheck{}).
		Where("id = ? AND consumed_by IS NULL AND status = ?", id, constants.PreflightStatusSuccess).
		Update("consumed_by", deploymentID)
	if res.Error != nil {
		return false, pkgErrors.Wrap(pkgErrors.CodeDatabaseError, "标记预检已使用失败", res.Error)
	}
	return res.RowsAffected == 1, nil
}
