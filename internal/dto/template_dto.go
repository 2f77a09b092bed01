package dto

import (
	"time"

	"galera-cd/internal/model"
)

// TemplateRequest 创建/修改模板
type TemplateRequest struct {
	Name           string            `json:"name" validate:"required,min=1,max=120"`
	Description    string            `json:"description" validate:"omitempty,max=2000"`
	BufferPool     string            `json:"buffer_pool" validate:"omitempty,bufsize"`
	MaxConnections int               `json:"max_connections" validate:"omitempty,min=10,max=5000"`
	CustomParams   map[string]string `json:"custom_params" validate:"omitempty,dive,keys,ident,endkeys,nosemi"`
	LogsGB         *float64          `json:"logs_gb" validate:"omitempty,gte=0.5"` // 默认 3.0
	TmpGB          *float64          `json:"tmp_gb" validate:"omitempty,gte=0.5"`
	GcacheGB       *float64          `json:"gcache_gb" validate:"omitempty,gte=0.5"`
}

// TemplateResponse 模板详情
type TemplateResponse struct {
	ID               int64             `json:"id"`
	Name             string            `json:"name"`
	Description      string            `json:"description"`
	BufferPool       string            `json:"buffer_pool"`
	MaxConnections   int               `json:"max_connections"`
	CustomParams     map[string]string `json:"custom_params"`
	LogsGB           float64           `json:"logs_gb"`
	TmpGB            float64           `json:"tmp_gb"`
	GcacheGB         float64           `json:"gcache_gb"`
	Status           string            `json:"status"`
	CreatedBy        string            `json:"created_by"`
	ApprovedBy       *string           `json:"approved_by"`
	ParentTemplateID *int64            `json:"parent_template_id"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// NewTemplateResponse 转换为响应
func NewTemplateResponse(t *model.Template) *TemplateResponse {
	return &TemplateResponse{
		ID:               t.ID,
		Name:             t.Name,
		Description:      t.Description,
		BufferPool:       t.BufferPool,
		MaxConnections:   t.MaxConnections,
		CustomParams:     t.CustomParams,
		LogsGB:           t.LogsGB,
		TmpGB:            t.TmpGB,
		GcacheGB:         t.GcacheGB,
		Status:           t.Status,
		CreatedBy:        t.CreatedBy,
		ApprovedBy:       t.ApprovedBy,
		ParentTemplateID: t.ParentTemplateID,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}

// TemplateActionResponse 模板操作结果
type TemplateActionResponse struct {
	Message  string            `json:"message"`
	Template *TemplateResponse `json:"template,omitempty"`
}
