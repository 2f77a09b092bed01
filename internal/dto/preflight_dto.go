package dto

import (
	"time"

	"galera-cd/internal/model"
)

// StartPreflightRequest 发起预检
type StartPreflightRequest struct {
	Hosts       []string `json:"hosts" validate:"required,len=3,unique,dive,ip"` // 3 个集群节点
	AsyncNodeIP string   `json:"async_node_ip" validate:"required,ip"`           // 异步复制节点
}

// StartPreflightResponse 预检已启动
type StartPreflightResponse struct {
	Message     string `json:"message"`
	PreflightID int64  `json:"preflight_id"`
	Status      string `json:"status"`
}

// CompletePreflightRequest 执行器回调上报预检结果
type CompletePreflightRequest struct {
	Status       string             `json:"status" validate:"required,oneof=SUCCESS FAILED"`
	Results      []model.NodeResult `json:"results"`
	ErrorMessage *string            `json:"error_message"`
}

// PreflightResponse 预检详情
type PreflightResponse struct {
	ID             int64              `json:"id"`
	TargetHosts    string             `json:"target_hosts"`
	AsyncNode      string             `json:"async_node"`
	Status         string             `json:"status"`
	Results        []model.NodeResult `json:"results"`
	ErrorMessage   *string            `json:"error_message"`
	RequesterEmail string             `json:"requester_email"`
	ConsumedBy     *int64             `json:"consumed_by"`
	CreatedAt      time.Time          `json:"created_at"`
	CompletedAt    *time.Time         `json:"completed_at"`
}

// NewPreflightResponse 转换为响应
func NewPreflightResponse(p *model.PreflightCheck) *PreflightResponse {
	return &PreflightResponse{
		ID:             p.ID,
		TargetHosts:    p.TargetHosts,
		AsyncNode:      p.AsyncNode,
		Status:         p.Status,
		Results:        p.Results,
		ErrorMessage:   p.ErrorMessage,
		RequesterEmail: p.RequesterEmail,
		ConsumedBy:     p.ConsumedBy,
		CreatedAt:      p.CreatedAt,
		CompletedAt:    p.CompletedAt,
	}
}
