package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"galera-cd/internal/model"
	pkgErrors "galera-cd/pkg/errors"
)

// UserRepository 用户仓储接口
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	Upsert(ctx context.Context, user *model.User) error
	List(ctx context.Context) ([]*model.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建用户仓储实例
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translate(err, "查询用户失败")
	}
	return &user, nil
}

// Upsert 按邮箱写入, 已存在时更新名称和角色
func (r *userRepository) Upsert(ctx context.Context, user *model.User) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "role", "updated_at"}),
	}).Create(user).Error
	if err != nil {
		return pkgErrors.Wrap(pkgErrors.CodeDatabaseError, "保存用户失败", err)
	}
	return nil
}

func (r *userRepository) List(ctx context.Context) ([]*model.User, error) {
	var users []*model.User
	if err := r.db.WithContext(ctx).Order("email").Find(&users).Error; err != nil {
		return nil, pkgErrors.Wrap(pkgErrors.CodeDatabaseError, "查询用户列表失败", err)
	}
	return users, nil
}
