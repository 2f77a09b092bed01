// Package approval 同行评审校验: 部署申请和模板变更都不能由提交人自己审批
package approval

import (
	"errors"
	"strings"

	"galera-cd/internal/model"
	pkgErrors "galera-cd/pkg/errors"
)

// PendingStatus 可被审批的状态
const PendingStatus = "PENDING_APPROVAL"

// Authorize 校验 actor 是否可以审批 entity.
// lookupErr 为加载实体时的错误, 记录不存在映射为 NotFound, 其他错误原样返回
func Authorize[T model.Reviewable](entity T, lookupErr error, actor string) error {
	if lookupErr != nil {
		if errors.Is(lookupErr, pkgErrors.ErrNotFound) {
			return pkgErrors.NotFound("待审批的记录不存在")
		}
		return lookupErr
	}
	if isNil(entity) {
		return pkgErrors.NotFound("待审批的记录不存在")
	}

	if entity.ReviewStatus() != PendingStatus {
		return pkgErrors.Conflict("当前状态为 %s, 只能审批 %s 状态的记录", entity.ReviewStatus(), PendingStatus)
	}

	if strings.EqualFold(strings.TrimSpace(entity.ReviewRequester()), strings.TrimSpace(actor)) {
		return pkgErrors.ErrSelfReview
	}
	return nil
}

func isNil(v model.Reviewable) bool {
	switch e := v.(type) {
	case nil:
		return true
	case *model.Deployment:
		return e == nil
	case *model.Template:
		return e == nil
	}
	return false
}
