package model

import (
	"time"
)

const DeploymentTableName = "deployments"

// Deployment 集群部署记录
type Deployment struct {
	BaseModel

	ClusterName string `gorm:"size:64;not null;index" json:"cluster_name"`
	TargetHosts string `gorm:"size:255;not null" json:"target_hosts"` // 逗号分隔
	AsyncNode   string `gorm:"size:64;not null" json:"async_node"`

	// 状态追踪
	Status         string  `gorm:"size:20;not null;index" json:"status"`
	RequesterEmail string  `gorm:"size:100;not null;index" json:"requester_email"`
	ApproverEmail  *string `gorm:"size:100" json:"approver_email"` // 审批人, 取消时为取消人

	// 冻结的执行参数, 写入后不再修改; 敏感字段已加密
	JobName string    `gorm:"size:128;not null" json:"job_name"`
	Config  StringMap `gorm:"column:deployment_config;type:text" json:"-"`

	// 执行器引用: 先拿到排队 token, 开始执行后绑定执行号
	TrackingToken *string `gorm:"size:64;index" json:"tracking_token"`
	ExecutionID   *int64  `json:"execution_id"`

	PreflightID  int64   `gorm:"not null;index" json:"preflight_id"`
	TemplateID   *int64  `json:"template_id"`
	TemplateName *string `gorm:"size:150" json:"template_name"`

	// 磁盘分配
	MinVGSizeGB float64  `json:"min_vg_size_gb"`
	LogsGB      float64  `json:"logs_gb"`
	TmpGB       float64  `json:"tmp_gb"`
	GcacheGB    float64  `json:"gcache_gb"`
	DataGB      *float64 `json:"data_gb"` // 为空表示使用剩余全部空间
	ForceWipe   bool     `json:"force_wipe"`

	ErrorMessage *string    `gorm:"type:text" json:"error_message"`
	StartedAt    *time.Time `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at"`
}

// TableName 指定表名
func (Deployment) TableName() string {
	return DeploymentTableName
}

func (d *Deployment) ReviewStatus() string    { return d.Status }
func (d *Deployment) ReviewRequester() string { return d.RequesterEmail }

// Hosts 集群节点列表
func (d *Deployment) Hosts() []string {
	return SplitHosts(d.TargetHosts)
}
