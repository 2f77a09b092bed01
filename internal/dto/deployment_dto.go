package dto

import (
	"time"

	"galera-cd/internal/core/capacity"
	"galera-cd/internal/model"
	"galera-cd/pkg/constants"
)

// DiskAllocationPct 按百分比划分 VG, 未传的项使用默认值
type DiskAllocationPct struct {
	Data   *float64 `json:"data" validate:"omitempty,gte=0,lte=100"`
	Logs   *float64 `json:"logs" validate:"omitempty,gte=0,lte=100"`
	Tmp    *float64 `json:"tmp" validate:"omitempty,gte=0,lte=100"`
	Gcache *float64 `json:"gcache" validate:"omitempty,gte=0,lte=100"`
}

// ToPercent 补齐默认值
func (d *DiskAllocationPct) ToPercent() capacity.Percent {
	p := capacity.DefaultPercent
	if d == nil {
		return p
	}
	if d.Data != nil {
		p.Data = *d.Data
	}
	if d.Logs != nil {
		p.Logs = *d.Logs
	}
	if d.Tmp != nil {
		p.Tmp = *d.Tmp
	}
	if d.Gcache != nil {
		p.Gcache = *d.Gcache
	}
	return p
}

// SubmitDeploymentRequest 提交部署申请
type SubmitDeploymentRequest struct {
	Hosts       []string `json:"hosts" validate:"required,len=3,unique,dive,ip"`
	AsyncNodeIP string   `json:"async_node_ip" validate:"required,ip"`
	ClusterName string   `json:"cluster_name" validate:"required,min=3,max=30,ident"`

	DBRootPass string `json:"db_root_pass" validate:"required,max=128"`
	AppUser    string `json:"app_user" validate:"omitempty,max=32,ident"` // 默认 app_user
	AppPass    string `json:"app_pass" validate:"required,max=128"`

	BufferPool     string `json:"buffer_pool" validate:"omitempty,bufsize"`             // 默认取模板, 否则 1G
	MaxConnections int    `json:"max_connections" validate:"omitempty,min=10,max=5000"` // 默认取模板, 否则 100

	DiskAllocationPct *DiskAllocationPct `json:"disk_allocation_pct" validate:"omitempty"`
	DataGB            *float64           `json:"data_gb" validate:"omitempty,gte=0"`

	PreflightID int64  `json:"preflight_id" validate:"required,gt=0"`
	TemplateID  *int64 `json:"template_id" validate:"omitempty,gt=0"`

	CustomParams map[string]string `json:"custom_params" validate:"omitempty,dive,keys,ident,endkeys,nosemi"`
}

// ApplyDefaults 填充默认值, 优先级: 请求 > 模板 > 系统默认
func (r *SubmitDeploymentRequest) ApplyDefaults(tpl *model.Template) {
	if r.AppUser == "" {
		r.AppUser = constants.DefaultAppUser
	}
	if tpl != nil {
		if r.BufferPool == "" {
			r.BufferPool = tpl.BufferPool
		}
		if r.MaxConnections == 0 {
			r.MaxConnections = tpl.MaxConnections
		}
	}
	if r.BufferPool == "" {
		r.BufferPool = constants.DefaultBufferPool
	}
	if r.MaxConnections == 0 {
		r.MaxConnections = constants.DefaultMaxConnections
	}
}

// SubmitDeploymentResponse 提交结果
type SubmitDeploymentResponse struct {
	Message      string `json:"message"`
	DeploymentID int64  `json:"deployment_id"`
	Status       string `json:"status"`
}

// ApproveDeploymentResponse 审批通过
type ApproveDeploymentResponse struct {
	Message       string `json:"message"`
	TrackingToken string `json:"tracking_token"`
}

// DeploymentResponse 部署记录(不含参数快照)
type DeploymentResponse struct {
	ID             int64      `json:"id"`
	ClusterName    string     `json:"cluster_name"`
	TargetHosts    string     `json:"target_hosts"`
	AsyncNode      string     `json:"async_node"`
	Status         string     `json:"status"`
	RequesterEmail string     `json:"requester_email"`
	ApproverEmail  *string    `json:"approver_email"`
	TrackingToken  *string    `json:"tracking_token"`
	ExecutionID    *int64     `json:"execution_id"`
	PreflightID    int64      `json:"preflight_id"`
	TemplateID     *int64     `json:"template_id"`
	TemplateName   *string    `json:"template_name"`
	MinVGSizeGB    float64    `json:"min_vg_size_gb"`
	LogsSize       string     `json:"logs_size"`
	TmpSize        string     `json:"tmp_size"`
	GcacheSize     string     `json:"gcache_size"`
	DataSize       string     `json:"data_size"`
	ForceWipe      bool       `json:"force_wipe"`
	ErrorMessage   *string    `json:"error_message"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at"`
}

// NewDeploymentResponse 转换为响应
func NewDeploymentResponse(d *model.Deployment) *DeploymentResponse {
	dataSize := constants.DataSizeUseRemaining
	if d.DataGB != nil {
		dataSize = capacity.FormatGB(*d.DataGB)
	}
	return &DeploymentResponse{
		ID:             d.ID,
		ClusterName:    d.ClusterName,
		TargetHosts:    d.TargetHosts,
		AsyncNode:      d.AsyncNode,
		Status:         d.Status,
		RequesterEmail: d.RequesterEmail,
		ApproverEmail:  d.ApproverEmail,
		TrackingToken:  d.TrackingToken,
		ExecutionID:    d.ExecutionID,
		PreflightID:    d.PreflightID,
		TemplateID:     d.TemplateID,
		TemplateName:   d.TemplateName,
		MinVGSizeGB:    d.MinVGSizeGB,
		LogsSize:       capacity.FormatGB(d.LogsGB),
		TmpSize:        capacity.FormatGB(d.TmpGB),
		GcacheSize:     capacity.FormatGB(d.GcacheGB),
		DataSize:       dataSize,
		ForceWipe:      d.ForceWipe,
		ErrorMessage:   d.ErrorMessage,
		CreatedAt:      d.CreatedAt,
		StartedAt:      d.StartedAt,
		FinishedAt:     d.FinishedAt,
	}
}

// BuildLogResponse 构建日志
type BuildLogResponse struct {
	Logs        string `json:"logs"`
	ExecutionID int64  `json:"execution_id"`
}
