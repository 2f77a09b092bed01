package model

// User 用户及角色, 角色只能通过管理命令修改
type User struct {
	BaseModel
	Email string `gorm:"size:100;not null;uniqueIndex" json:"email"`
	Name  string `gorm:"size:100" json:"name"`
	Role  string `gorm:"size:20;not null;default:user" json:"role"` // super_user / user
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}
