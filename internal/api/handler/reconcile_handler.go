package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"galera-cd/internal/core"
	"galera-cd/internal/pkg/logger"
	"galera-cd/pkg/utils"
)

// Sweeper 对账入口
type Sweeper interface {
	Sweep(ctx context.Context) (*core.ReconcileReport, error)
}

// ReconcileHandler 对账处理器
type ReconcileHandler struct {
	sweeper Sweeper
}

func NewReconcileHandler(sweeper Sweeper) *ReconcileHandler {
	return &ReconcileHandler{sweeper: sweeper}
}

// Run 立即执行一次对账
// @Summary 执行对账
// @Description 核对所有 RUNNING 部署在执行器中的真实状态
// @Tags 运维
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} utils.Response{data=core.ReconcileReport}
// @Router /api/v1/admin/reconcile [post]
func (h *ReconcileHandler) Run(c *gin.Context) {
	report, err := h.sweeper.Sweep(c.Request.Context())
	if err != nil {
		logger.Error("手动对账失败", zap.Error(err))
		utils.Error(c, err)
		return
	}
	utils.Success(c, report)
}
