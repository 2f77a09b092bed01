package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"galera-cd/pkg/constants"
	pkgErrors "galera-cd/pkg/errors"
	"galera-cd/pkg/utils"
)

// CallbackToken 执行器回调校验共享 token, token 为空时不校验
func CallbackToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		got := c.GetHeader(constants.HeaderCallbackToken)
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			utils.ErrorWithCode(c, pkgErrors.CodeUnauthorized, "回调 token 无效")
			c.Abort()
			return
		}
		c.Next()
	}
}
