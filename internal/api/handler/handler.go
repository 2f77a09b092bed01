package handler

import (
	"github.com/gin-gonic/gin"

	"galera-cd/internal/api/middleware"
	"galera-cd/internal/dto"
	"galera-cd/internal/pkg/auth"
	pkgErrors "galera-cd/pkg/errors"
	"galera-cd/pkg/utils"
)

// bindID 解析路径中的 :id, 失败时已写入响应
func bindID(c *gin.Context) (int64, bool) {
	var param dto.IDParam
	if err := c.ShouldBindUri(&param); err != nil {
		utils.ErrorWithDetail(c, pkgErrors.CodeBadRequest, "无效的ID", c.Param("id"))
		return 0, false
	}
	return param.ID, true
}

// bindJSON 只负责解码, 字段校验交给服务层
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		utils.ErrorWithDetail(c, pkgErrors.CodeBadRequest, "请求参数错误", utils.FormatValidationError(err))
		return false
	}
	return true
}

func currentPrincipal(c *gin.Context) (auth.Principal, bool) {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		utils.ErrorWithCode(c, pkgErrors.CodeUnauthorized, "未登录")
	}
	return p, ok
}
