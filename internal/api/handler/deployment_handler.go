package handler

import (
	"github.com/gin-gonic/gin"

	"galera-cd/internal/dto"
	"galera-cd/internal/service"
	"galera-cd/pkg/utils"
)

// DeploymentHandler 部署处理器
type DeploymentHandler struct {
	deploymentService service.DeploymentService
}

func NewDeploymentHandler(deploymentService service.DeploymentService) *DeploymentHandler {
	return &DeploymentHandler{deploymentService: deploymentService}
}

// Submit 提交部署
// @Summary 提交部署申请
// @Description 特权用户直接触发部署, 普通用户进入待审批
// @Tags 部署
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body dto.SubmitDeploymentRequest true "部署请求"
// @Success 200 {object} utils.Response{data=dto.SubmitDeploymentResponse}
// @Router /api/v1/deployments [post]
func (h *DeploymentHandler) Submit(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	var req dto.SubmitDeploymentRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.deploymentService.Submit(c.Request.Context(), &req, principal)
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, resp)
}

// History 部署历史
// @Summary 部署历史(最近50条)
// @Tags 部署
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} utils.Response{data=[]dto.DeploymentResponse}
// @Router /api/v1/deployments [get]
func (h *DeploymentHandler) History(c *gin.Context) {
	resp, err := h.deploymentService.ListHistory(c.Request.Context())
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, resp)
}

// Get 部署详情
// @Summary 部署详情
// @Tags 部署
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "部署ID"
// @Success 200 {object} utils.Response{data=dto.DeploymentResponse}
// @Router /api/v1/deployments/{id} [get]
func (h *DeploymentHandler) Get(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}

	resp, err := h.deploymentService.Get(c.Request.Context(), id)
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, resp)
}

// Approve 审批通过
// @Summary 审批通过并触发部署
// @Description 不能审批自己提交的部署
// @Tags 部署
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "部署ID"
// @Success 200 {object} utils.Response{data=dto.ApproveDeploymentResponse}
// @Router /api/v1/deployments/{id}/approve [post]
func (h *DeploymentHandler) Approve(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := bindID(c)
	if !ok {
		return
	}

	resp, err := h.deploymentService.Approve(c.Request.Context(), id, principal)
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, resp)
}

// Reject 驳回
// @Summary 驳回部署申请
// @Tags 部署
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "部署ID"
// @Success 200 {object} utils.Response{data=dto.MessageResponse}
// @Router /api/v1/deployments/{id}/reject [post]
func (h *DeploymentHandler) Reject(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := bindID(c)
	if !ok {
		return
	}

	if err := h.deploymentService.Reject(c.Request.Context(), id, principal); err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, dto.MessageResponse{Message: "Deployment rejected"})
}

// Cancel 取消
// @Summary 取消排队中或运行中的部署
// @Tags 部署
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "部署ID"
// @Success 200 {object} utils.Response{data=dto.MessageResponse}
// @Router /api/v1/deployments/{id}/cancel [post]
func (h *DeploymentHandler) Cancel(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := bindID(c)
	if !ok {
		return
	}

	if err := h.deploymentService.Cancel(c.Request.Context(), id, principal); err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, dto.MessageResponse{Message: "Deployment cancelled"})
}

// Logs 构建日志
// @Summary 获取构建控制台日志
// @Tags 部署
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "部署ID"
// @Success 200 {object} utils.Response{data=dto.BuildLogResponse}
// @Router /api/v1/deployments/{id}/logs [get]
func (h *DeploymentHandler) Logs(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}

	resp, err := h.deploymentService.FetchLog(c.Request.Context(), id)
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, resp)
}
