package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"galera-cd/internal/dto"
	"galera-cd/internal/pkg/auth"
	"galera-cd/internal/service"
	"galera-cd/pkg/utils"
)

// TemplateHandler 模板处理器
type TemplateHandler struct {
	templateService service.TemplateService
}

func NewTemplateHandler(templateService service.TemplateService) *TemplateHandler {
	return &TemplateHandler{templateService: templateService}
}

// List 模板列表
// @Summary 模板列表
// @Description 普通用户只能看到 ACTIVE 和 PENDING_APPROVAL
// @Tags 模板
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} utils.Response{data=[]dto.TemplateResponse}
// @Router /api/v1/templates [get]
func (h *TemplateHandler) List(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}

	resp, err := h.templateService.List(c.Request.Context(), principal)
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, resp)
}

// Get 模板详情
// @Summary 模板详情
// @Tags 模板
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "模板ID"
// @Success 200 {object} utils.Response{data=dto.TemplateResponse}
// @Router /api/v1/templates/{id} [get]
func (h *TemplateHandler) Get(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}

	resp, err := h.templateService.Get(c.Request.Context(), id)
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, resp)
}

// Create 新建模板
// @Summary 新建模板
// @Tags 模板
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body dto.TemplateRequest true "模板"
// @Success 200 {object} utils.Response{data=dto.TemplateActionResponse}
// @Router /api/v1/templates [post]
func (h *TemplateHandler) Create(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	var req dto.TemplateRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.templateService.Create(c.Request.Context(), &req, principal)
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, resp)
}

// Update 修改模板
// @Summary 修改模板
// @Description 普通用户的修改生成待审批副本, 原模板不变
// @Tags 模板
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "模板ID"
// @Param request body dto.TemplateRequest true "模板"
// @Success 200 {object} utils.Response{data=dto.TemplateActionResponse}
// @Router /api/v1/templates/{id} [put]
func (h *TemplateHandler) Update(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := bindID(c)
	if !ok {
		return
	}
	var req dto.TemplateRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.templateService.Update(c.Request.Context(), id, &req, principal)
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, resp)
}

// Delete 删除模板
// @Summary 删除模板(仅特权用户)
// @Tags 模板
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "模板ID"
// @Success 200 {object} utils.Response{data=dto.MessageResponse}
// @Router /api/v1/templates/{id} [delete]
func (h *TemplateHandler) Delete(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := bindID(c)
	if !ok {
		return
	}

	if err := h.templateService.Delete(c.Request.Context(), id, principal); err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, dto.MessageResponse{Message: "Template deleted"})
}

// Duplicate 复制模板
// @Summary 复制模板
// @Tags 模板
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "模板ID"
// @Success 200 {object} utils.Response{data=dto.TemplateActionResponse}
// @Router /api/v1/templates/{id}/duplicate [post]
func (h *TemplateHandler) Duplicate(c *gin.Context) {
	h.act(c, h.templateService.Duplicate)
}

// Approve 审批模板
// @Summary 审批模板或模板修改
// @Tags 模板
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "模板ID"
// @Success 200 {object} utils.Response{data=dto.TemplateActionResponse}
// @Router /api/v1/templates/{id}/approve [post]
func (h *TemplateHandler) Approve(c *gin.Context) {
	h.act(c, h.templateService.Approve)
}

// Reject 驳回模板
// @Summary 驳回模板或模板修改
// @Tags 模板
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "模板ID"
// @Success 200 {object} utils.Response{data=dto.TemplateActionResponse}
// @Router /api/v1/templates/{id}/reject [post]
func (h *TemplateHandler) Reject(c *gin.Context) {
	h.act(c, h.templateService.Reject)
}

func (h *TemplateHandler) act(c *gin.Context, fn func(ctx context.Context, id int64, principal auth.Principal) (*dto.TemplateActionResponse, error)) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := bindID(c)
	if !ok {
		return
	}

	resp, err := fn(c.Request.Context(), id, principal)
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, resp)
}
