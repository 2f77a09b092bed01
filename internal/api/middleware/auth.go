package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"galera-cd/internal/pkg/auth"
	"galera-cd/internal/pkg/jwt"
	"galera-cd/pkg/constants"
	pkgErrors "galera-cd/pkg/errors"
	"galera-cd/pkg/utils"
)

// PrincipalResolver 按 users 表修正令牌中的角色
type PrincipalResolver interface {
	Resolve(ctx context.Context, p auth.Principal) (auth.Principal, error)
}

// AuthMiddleware JWT认证中间件
func AuthMiddleware(resolver PrincipalResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(constants.HeaderAuthorization)
		if authHeader == "" {
			utils.ErrorWithCode(c, pkgErrors.CodeUnauthorized, "缺少Authorization Header")
			c.Abort()
			return
		}

		if !strings.HasPrefix(authHeader, constants.HeaderBearerPrefix) {
			utils.ErrorWithCode(c, pkgErrors.CodeUnauthorized, "Authorization格式错误")
			c.Abort()
			return
		}

		claims, err := jwt.ValidateAccessToken(strings.TrimPrefix(authHeader, constants.HeaderBearerPrefix))
		if err != nil {
			utils.Error(c, err)
			c.Abort()
			return
		}

		principal := auth.Principal{Email: strings.ToLower(claims.Email), Name: claims.Name, Role: claims.Role}
		if resolver != nil {
			principal, err = resolver.Resolve(c.Request.Context(), principal)
			if err != nil {
				utils.Error(c, err)
				c.Abort()
				return
			}
		}

		c.Set(constants.JWTContextKey, principal)
		c.Next()
	}
}

// RequirePermission 校验当前用户的角色权限
func RequirePermission(need auth.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := CurrentPrincipal(c)
		if !ok {
			utils.ErrorWithCode(c, pkgErrors.CodeUnauthorized, "未登录")
			c.Abort()
			return
		}
		if !principal.Can(need) {
			utils.ErrorWithDetail(c, pkgErrors.CodeForbidden, "权限不足", string(need))
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentPrincipal 取出认证中间件写入的调用方
func CurrentPrincipal(c *gin.Context) (auth.Principal, bool) {
	v, exists := c.Get(constants.JWTContextKey)
	if !exists {
		return auth.Principal{}, false
	}
	p, ok := v.(auth.Principal)
	return p, ok
}
