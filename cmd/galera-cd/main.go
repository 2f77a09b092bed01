package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "galera-cd/docs" // Swagger docs
)

// @title Galera CD API
// @version 1.0
// @description Galera 集群部署编排服务 API 文档
// @description 提供预检、部署审批、构建跟踪、配置模板管理等功能

// @contact.name API Support
// @contact.email support@example.com

// @host localhost:8080
// @BasePath /

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

const appName = "galera-cd"

var (
	appVersion = "dev"
	commit     = "none"

	configFile string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Galera cluster deployment orchestration service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "配置文件路径 (例如: --config=configs/config.yaml)")

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(reconcileCmd())
	cmd.AddCommand(userCmd())
	cmd.AddCommand(tokenCmd())
	cmd.AddCommand(versionCmd())
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "显示版本信息",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("%s version %s (commit %s)\n", appName, appVersion, commit)
		},
	}
}
