package auth

import "strings"

// Role 内置角色
type Role string

const (
	RoleSuperUser Role = "super_user"
	RoleUser      Role = "user"
)

// Permission 内置权限
type Permission string

const (
	PermPreflightCreate Permission = "preflight:create"
	PermPreflightView   Permission = "preflight:view"

	PermDeploymentCreate  Permission = "deployment:create"
	PermDeploymentView    Permission = "deployment:view"
	PermDeploymentApprove Permission = "deployment:approve"
	PermDeploymentCancel  Permission = "deployment:cancel"

	PermTemplateView    Permission = "template:view"
	PermTemplateWrite   Permission = "template:write"
	PermTemplateApprove Permission = "template:approve"
	PermTemplateDelete  Permission = "template:delete"

	PermReconcileRun Permission = "reconcile:run"
)

// RolePermissions 每个角色拥有的权限集合.
// 审批权限对普通用户也开放, 由同行评审规则约束
var RolePermissions = map[Role][]Permission{
	RoleSuperUser: {
		"*",
	},
	RoleUser: {
		"preflight:*",
		"deployment:create",
		"deployment:view",
		"deployment:approve",
		"template:view",
		"template:write",
		"template:approve",
	},
}

// ValidRole 是否为内置角色
func ValidRole(role string) bool {
	_, ok := RolePermissions[Role(role)]
	return ok
}

// Principal 已认证的调用方
type Principal struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// IsPrivileged 特权用户可直接执行部署, 直接修改模板
func (p Principal) IsPrivileged() bool {
	return Role(p.Role) == RoleSuperUser
}

// Can 判断是否拥有权限
func (p Principal) Can(need Permission) bool {
	return Allow([]string{p.Role}, need)
}

// Allow 判断一组角色是否包含所需权限，支持通配符
func Allow(roles []string, need Permission) bool {
	permissions := collectPermissions(roles)

	return len(permissions) > 0 && allow(permissions, need)
}

func collectPermissions(roles []string) []Permission {
	perms := make([]Permission, 0)
	for _, r := range roles {
		if ps, ok := RolePermissions[Role(r)]; ok {
			perms = append(perms, ps...)
		}
	}
	return perms
}

func allow(have []Permission, need Permission) bool {
	for _, p := range have {
		if match(p, need) {
			return true
		}
	}
	return false
}

// match 单条权限匹配, "*" 段匹配剩余所有段
func match(p, need Permission) bool {
	if p == need || p == "*" {
		return true
	}

	allParts := strings.Split(string(p), ":")
	reqParts := strings.Split(string(need), ":")

	for i, part := range allParts {
		if part == "*" {
			return true
		}
		if i >= len(reqParts) || part != reqParts[i] {
			return false
		}
	}
	return len(allParts) == len(reqParts)
}
