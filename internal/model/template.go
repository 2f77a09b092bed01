package model

import (
	"regexp"
	"strings"
)

const TemplateTableName = "templates"

var pendingEditSuffix = regexp.MustCompile(` \(Pending Edit( \d+)?\)$`)

// Template 集群配置模板
type Template struct {
	BaseModel

	Name           string    `gorm:"size:150;not null;uniqueIndex" json:"name"`
	Description    string    `gorm:"type:text" json:"description"`
	BufferPool     string    `gorm:"size:16;not null" json:"buffer_pool"`
	MaxConnections int       `gorm:"not null" json:"max_connections"`
	CustomParams   StringMap `gorm:"type:text" json:"custom_params"`

	// 三个预留分区的固定大小(GB)
	LogsGB   float64 `gorm:"not null" json:"logs_gb"`
	TmpGB    float64 `gorm:"not null" json:"tmp_gb"`
	GcacheGB float64 `gorm:"not null" json:"gcache_gb"`

	Status     string  `gorm:"size:20;not null;index" json:"status"`
	CreatedBy  string  `gorm:"size:100;not null" json:"created_by"`
	ApprovedBy *string `gorm:"size:100" json:"approved_by"`

	// 仅影子副本(待审批的修改)有值
	ParentTemplateID *int64 `gorm:"index" json:"parent_template_id"`
}

// TableName 指定表名
func (Template) TableName() string {
	return TemplateTableName
}

func (t *Template) ReviewStatus() string    { return t.Status }
func (t *Template) ReviewRequester() string { return t.CreatedBy }

// IsShadow 是否为待审批的修改副本
func (t *Template) IsShadow() bool {
	return t.ParentTemplateID != nil
}

// BaseName 去掉 " (Pending Edit)" / " (Pending Edit 123)" 后缀
func (t *Template) BaseName() string {
	return strings.TrimSpace(pendingEditSuffix.ReplaceAllString(t.Name, ""))
}

// ReservedGB 预留分区总和
func (t *Template) ReservedGB() float64 {
	return t.LogsGB + t.TmpGB + t.GcacheGB
}
