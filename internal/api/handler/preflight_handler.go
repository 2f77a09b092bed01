package handler

import (
	"github.com/gin-gonic/gin"

	"galera-cd/internal/dto"
	"galera-cd/internal/service"
	"galera-cd/pkg/utils"
)

// PreflightHandler 预检处理器
type PreflightHandler struct {
	preflightService service.PreflightService
}

func NewPreflightHandler(preflightService service.PreflightService) *PreflightHandler {
	return &PreflightHandler{preflightService: preflightService}
}

// Start 发起预检
// @Summary 发起预检
// @Description 校验拓扑后触发预检 job, 返回预检ID
// @Tags 预检
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body dto.StartPreflightRequest true "预检请求"
// @Success 200 {object} utils.Response{data=dto.StartPreflightResponse}
// @Router /api/v1/preflight [post]
func (h *PreflightHandler) Start(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	var req dto.StartPreflightRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.preflightService.Start(c.Request.Context(), &req, principal)
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, resp)
}

// Get 预检状态
// @Summary 获取预检状态
// @Tags 预检
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "预检ID"
// @Success 200 {object} utils.Response{data=dto.PreflightResponse}
// @Router /api/v1/preflight/{id} [get]
func (h *PreflightHandler) Get(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}

	resp, err := h.preflightService.Get(c.Request.Context(), id)
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, resp)
}

// Complete 执行器回调上报预检结果
// @Summary 上报预检结果
// @Description 由预检 job 回调, 配置了 callback.token 时需携带 X-Callback-Token
// @Tags 预检
// @Accept json
// @Produce json
// @Param id path int true "预检ID"
// @Param X-Callback-Token header string false "回调 token"
// @Param request body dto.CompletePreflightRequest true "预检结果"
// @Success 200 {object} utils.Response{data=dto.MessageResponse}
// @Router /api/v1/preflight/{id}/complete [post]
func (h *PreflightHandler) Complete(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}
	var req dto.CompletePreflightRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.preflightService.Complete(c.Request.Context(), id, &req); err != nil {
		utils.Error(c, err)
		return
	}
	utils.SuccessWithMessage(c, "Preflight result recorded", dto.MessageResponse{Message: "Preflight result recorded"})
}
