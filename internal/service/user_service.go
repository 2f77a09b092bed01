package service

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"galera-cd/internal/dto"
	"galera-cd/internal/model"
	"galera-cd/internal/pkg/auth"
	"galera-cd/internal/pkg/config"
	"galera-cd/internal/pkg/jwt"
	"galera-cd/internal/repository"
	pkgErrors "galera-cd/pkg/errors"
	"galera-cd/pkg/utils"
)

// UserService 用户角色与令牌.
// users 表中有记录时以表中角色为准, 否则使用令牌中的角色
type UserService interface {
	Resolve(ctx context.Context, p auth.Principal) (auth.Principal, error)
	SetRole(ctx context.Context, req *dto.SetRoleRequest) error
	List(ctx context.Context) ([]*dto.UserInfo, error)
	IssueToken(ctx context.Context, email, name string, withRefresh bool) (*dto.IssueTokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*dto.IssueTokenResponse, error)
}

type userService struct {
	repo   repository.UserRepository
	logger *zap.Logger
}

func NewUserService(repo repository.UserRepository, logger *zap.Logger) UserService {
	return &userService{repo: repo, logger: logger}
}

func (s *userService) Resolve(ctx context.Context, p auth.Principal) (auth.Principal, error) {
	user, err := s.repo.FindByEmail(ctx, strings.ToLower(p.Email))
	if err != nil {
		if errors.Is(err, pkgErrors.ErrNotFound) {
			if !auth.ValidRole(p.Role) {
				p.Role = string(auth.RoleUser)
			}
			return p, nil
		}
		return p, err
	}
	p.Role = user.Role
	if p.Name == "" {
		p.Name = user.Name
	}
	return p, nil
}

// SetRole 管理命令: 写入或更新用户角色
func (s *userService) SetRole(ctx context.Context, req *dto.SetRoleRequest) error {
	if err := utils.ValidateStruct(req); err != nil {
		return err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	name := req.Name
	if name == "" {
		if existing, err := s.repo.FindByEmail(ctx, email); err == nil {
			name = existing.Name
		}
	}

	if err := s.repo.Upsert(ctx, &model.User{Email: email, Name: name, Role: req.Role}); err != nil {
		return err
	}
	s.logger.Info("用户角色已更新", zap.String("email", email), zap.String("role", req.Role))
	return nil
}

func (s *userService) List(ctx context.Context) ([]*dto.UserInfo, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Map(users, func(u *model.User, _ int) *dto.UserInfo {
		return &dto.UserInfo{Email: u.Email, Name: u.Name, Role: u.Role}
	}), nil
}

// IssueToken 按 users 表中的角色签发令牌
func (s *userService) IssueToken(ctx context.Context, email, name string, withRefresh bool) (*dto.IssueTokenResponse, error) {
	p, err := s.Resolve(ctx, auth.Principal{Email: strings.ToLower(strings.TrimSpace(email)), Name: name})
	if err != nil {
		return nil, err
	}
	if p.Email == "" {
		return nil, pkgErrors.Validation("email 不能为空")
	}

	access, err := jwt.GenerateAccessToken(p.Email, p.Name, p.Role)
	if err != nil {
		return nil, err
	}
	resp := &dto.IssueTokenResponse{
		AccessToken: access,
		ExpiresIn:   config.GlobalConfig.Auth.JWT.AccessTokenExpire,
		User:        &dto.UserInfo{Email: p.Email, Name: p.Name, Role: p.Role},
	}
	if withRefresh {
		refresh, err := jwt.GenerateRefreshToken(p.Email, p.Name, p.Role)
		if err != nil {
			return nil, err
		}
		resp.RefreshToken = refresh
	}
	return resp, nil
}

// Refresh 用刷新令牌换新的访问令牌, 角色重新从 users 表读取
func (s *userService) Refresh(ctx context.Context, refreshToken string) (*dto.IssueTokenResponse, error) {
	claims, err := jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}
	return s.IssueToken(ctx, claims.Email, claims.Name, true)
}
