package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"galera-cd/internal/dto"
	"galera-cd/internal/pkg/auth"
	"galera-cd/internal/pkg/logger"
	"galera-cd/internal/repository"
	"galera-cd/internal/service"
)

// reconcileCmd 一次性对账, 以 YAML 输出报告
func reconcileCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "核对所有 RUNNING 部署在执行器中的真实状态",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			report, err := a.engine.Sweep(ctx)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(report)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "对账超时时间")
	return cmd
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "用户角色管理",
	}
	cmd.AddCommand(userSetRoleCmd())
	cmd.AddCommand(userListCmd())
	return cmd
}

func userSetRoleCmd() *cobra.Command {
	var req dto.SetRoleRequest

	cmd := &cobra.Command{
		Use:   "set-role",
		Short: "设置用户角色 (super_user / user)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeFn, err := newUserService()
			if err != nil {
				return err
			}
			defer closeFn()

			if err := svc.SetRole(cmd.Context(), &req); err != nil {
				return err
			}
			fmt.Printf("%s -> %s\n", req.Email, req.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "用户邮箱")
	cmd.Flags().StringVar(&req.Name, "name", "", "显示名称")
	cmd.Flags().StringVar(&req.Role, "role", string(auth.RoleUser), "角色")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func userListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "列出用户及角色",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeFn, err := newUserService()
			if err != nil {
				return err
			}
			defer closeFn()

			users, err := svc.List(cmd.Context())
			if err != nil {
				return err
			}
			return yaml.NewEncoder(os.Stdout).Encode(users)
		},
	}
}

// tokenCmd 为用户签发访问令牌, 角色取自 users 表
func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "令牌管理",
	}

	var (
		email       string
		name        string
		withRefresh bool
	)
	issue := &cobra.Command{
		Use:   "issue",
		Short: "签发访问令牌",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeFn, err := newUserService()
			if err != nil {
				return err
			}
			defer closeFn()

			resp, err := svc.IssueToken(cmd.Context(), email, name, withRefresh)
			if err != nil {
				return err
			}
			return yaml.NewEncoder(os.Stdout).Encode(resp)
		},
	}
	issue.Flags().StringVar(&email, "email", "", "用户邮箱")
	issue.Flags().StringVar(&name, "name", "", "显示名称")
	issue.Flags().BoolVar(&withRefresh, "refresh", false, "同时签发刷新令牌")
	_ = issue.MarkFlagRequired("email")

	cmd.AddCommand(issue)
	return cmd
}

// newUserService 管理命令只需要配置和数据库
func newUserService() (service.UserService, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := openDB(cfg)
	if err != nil {
		return nil, nil, err
	}
	a := &app{cfg: cfg, db: db}
	return service.NewUserService(repository.NewUserRepository(db), logger.Named("user")), a.close, nil
}
