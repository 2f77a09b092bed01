package model

import (
	"time"

	"gorm.io/datatypes"
)

const PreflightTableName = "preflight_checks"

// NodeResult 单个节点的预检结果(由执行器回调上报)
type NodeResult struct {
	IP               string    `json:"ip"`
	Hostname         string    `json:"hostname"`
	Status           string    `json:"status"`
	RAMMB            FlexFloat `json:"ram_mb"`
	AvailableDiskGB  FlexFloat `json:"available_disk_gb"`
	DiskCount        int       `json:"disk_count"`
	ExistingVGSize   FlexFloat `json:"existing_vg_size"`
	ExpectedVGGB     FlexFloat `json:"expected_vg_gb"` // 可用于建 VG 的容量
	HasExistingMySQL bool      `json:"has_existing_mysql"`
	Errors           []string  `json:"errors,omitempty"`
}

// PreflightCheck 连通性/容量预检记录
type PreflightCheck struct {
	BaseModel

	TargetHosts    string                          `gorm:"size:255;not null" json:"target_hosts"` // 逗号分隔
	AsyncNode      string                          `gorm:"size:64;not null" json:"async_node"`
	Status         string                          `gorm:"size:20;not null;index" json:"status"`
	Results        datatypes.JSONSlice[NodeResult] `gorm:"column:results" json:"results"`
	ErrorMessage   *string                         `gorm:"type:text" json:"error_message"`
	TrackingToken  *string                         `gorm:"size:64" json:"tracking_token"`
	RequesterEmail string                          `gorm:"size:100;not null;index" json:"requester_email"`
	CompletedAt    *time.Time                      `json:"completed_at"`

	// 至多被一个部署消费
	ConsumedBy *int64 `gorm:"column:consumed_by;index" json:"consumed_by"`
}

// TableName 指定表名
func (PreflightCheck) TableName() string {
	return PreflightTableName
}

// Hosts 集群节点列表
func (p *PreflightCheck) Hosts() []string {
	return SplitHosts(p.TargetHosts)
}
