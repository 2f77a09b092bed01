package dto

// UserInfo 当前登录用户
type UserInfo struct {
	Email string `json:"email" yaml:"email"`
	Name  string `json:"name" yaml:"name"`
	Role  string `json:"role" yaml:"role"`
}

// IssueTokenResponse 签发的令牌
type IssueTokenResponse struct {
	AccessToken  string    `json:"access_token" yaml:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty" yaml:"refresh_token,omitempty"`
	ExpiresIn    int       `json:"expires_in" yaml:"expires_in"`
	User         *UserInfo `json:"user" yaml:"user"`
}

// RefreshTokenRequest 刷新Token请求
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// SetRoleRequest 修改用户角色(仅管理命令使用)
type SetRoleRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"omitempty,max=100"`
	Role  string `json:"role" validate:"required,oneof=super_user user"`
}
