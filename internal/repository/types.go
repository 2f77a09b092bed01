package repository

import (
	"errors"

	"gorm.io/gorm"

	pkgErrors "galera-cd/pkg/errors"
)

// translate 统一转换 gorm 错误
func translate(err error, message string) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return pkgErrors.ErrRecordNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return pkgErrors.Wrap(pkgErrors.CodeConflict, "记录已存在", err)
	default:
		return pkgErrors.Wrap(pkgErrors.CodeDatabaseError, message, err)
	}
}
