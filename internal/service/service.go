// Package service 编排业务流程: 预检登记、部署申请与审批、模板版本管理
package service

import (
	"strings"

	"github.com/samber/lo"

	"galera-cd/internal/pkg/auth"
	pkgErrors "galera-cd/pkg/errors"
)

// Tracker 接收需要跟踪构建进度的部署, 由 core.CoreEngine 实现
type Tracker interface {
	Track(id int64) bool
}

// validateTopology 集群节点与异步节点不能重复
func validateTopology(hosts []string, asyncNode string) error {
	trimmed := lo.Map(hosts, func(h string, _ int) string { return strings.TrimSpace(h) })
	if dup := lo.FindDuplicates(trimmed); len(dup) > 0 {
		return pkgErrors.Validation("集群节点重复: %s", strings.Join(dup, ", "))
	}
	if lo.Contains(trimmed, strings.TrimSpace(asyncNode)) {
		return pkgErrors.Validation("异步节点 %s 不能同时作为集群节点", asyncNode)
	}
	return nil
}

// sameHostSet 比较两组主机, 与顺序无关
func sameHostSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	left := lo.Map(a, func(h string, _ int) string { return strings.TrimSpace(h) })
	right := lo.Map(b, func(h string, _ int) string { return strings.TrimSpace(h) })
	return len(lo.Without(left, right...)) == 0 && len(lo.Without(right, left...)) == 0
}

func requirePermission(p auth.Principal, need auth.Permission) error {
	if !p.Can(need) {
		return pkgErrors.Wrap(pkgErrors.CodeForbidden, "权限不足", nil)
	}
	return nil
}
