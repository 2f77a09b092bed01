package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllow(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		need  Permission
		want  bool
	}{
		{"super user wildcard", []string{"super_user"}, PermDeploymentCancel, true},
		{"user prefix wildcard", []string{"user"}, PermPreflightCreate, true},
		{"user exact", []string{"user"}, PermDeploymentApprove, true},
		{"user cannot cancel", []string{"user"}, PermDeploymentCancel, false},
		{"user cannot delete template", []string{"user"}, PermTemplateDelete, false},
		{"user cannot reconcile", []string{"user"}, PermReconcileRun, false},
		{"unknown role", []string{"guest"}, PermTemplateView, false},
		{"no roles", nil, PermTemplateView, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Allow(tt.roles, tt.need))
		})
	}
}

func TestMatch(t *testing.T) {
	assert.True(t, match("deployment:*", "deployment:view"))
	assert.True(t, match("deployment:*", "deployment:log:view"))
	assert.False(t, match("deployment:view", "deployment:view:all"))
	assert.False(t, match("deployment:view:all", "deployment:view"))
	assert.False(t, match("template:*", "deployment:view"))
}

func TestPrincipal(t *testing.T) {
	admin := Principal{Email: "a@x.io", Role: "super_user"}
	user := Principal{Email: "u@x.io", Role: "user"}

	assert.True(t, admin.IsPrivileged())
	assert.False(t, user.IsPrivileged())
	assert.True(t, user.Can(PermTemplateWrite))
	assert.False(t, user.Can(PermDeploymentCancel))
	assert.True(t, ValidRole("user"))
	assert.False(t, ValidRole("root"))
}
