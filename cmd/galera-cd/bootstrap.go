package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"galera-cd/internal/adapter/executor"
	"galera-cd/internal/adapter/notification"
	"galera-cd/internal/core"
	"galera-cd/internal/pkg/config"
	"galera-cd/internal/pkg/crypto"
	"galera-cd/internal/pkg/database"
	"galera-cd/internal/pkg/logger"
	"galera-cd/internal/repository"
)

// app 进程级依赖
type app struct {
	cfg      *config.Config
	db       *gorm.DB
	exec     executor.Executor
	notifier notification.Notifier
	sealer   *crypto.Sealer
	engine   *core.CoreEngine
}

// loadConfig 初始化配置和日志
func loadConfig() (*config.Config, error) {
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w\n使用 --config 或环境变量 CONFIG_FILE 指定配置文件", err)
	}
	if err := logger.Init(&cfg.Log); err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	logger.Info(fmt.Sprintf("Load config file: %s of %s", configPath, getConfigSource()))
	return cfg, nil
}

// openDB 初始化数据库
func openDB(cfg *config.Config) (*gorm.DB, error) {
	if err := database.Init(&cfg.Database); err != nil {
		return nil, fmt.Errorf("初始化数据库失败: %w", err)
	}
	logger.Info(fmt.Sprintf("数据库连接成功 %s:%v", cfg.Database.Host, cfg.Database.Port),
		zap.String("driver", cfg.Database.Driver),
		zap.String("database", cfg.Database.Database))
	return database.GetDB(), nil
}

// newApp 组装执行器、通知、加密和核心引擎
func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	exec, err := executor.New(&cfg.Executor)
	if err != nil {
		return nil, err
	}
	sealer, err := crypto.NewSealer(cfg.Crypto.AESKey)
	if err != nil {
		return nil, fmt.Errorf("初始化密钥失败: %w", err)
	}
	notifier := notification.New(&cfg.Core.Notification, logger.Named("notification"))

	engine := core.NewCoreEngine(repository.NewDeploymentRepository(db), exec, notifier, &cfg.Core, logger.Named("core"))

	return &app{
		cfg:      cfg,
		db:       db,
		exec:     exec,
		notifier: notifier,
		sealer:   sealer,
		engine:   engine,
	}, nil
}

func (a *app) close() {
	_ = database.Close()
	_ = logger.Close()
}

// getConfigPath 获取配置文件路径
// 优先级: 命令行参数 > 环境变量 > 默认路径
func getConfigPath() string {
	if configFile != "" {
		return configFile
	}
	if envConfig := os.Getenv("CONFIG_FILE"); envConfig != "" {
		return envConfig
	}
	return "configs/config.yaml"
}

// getConfigSource 获取配置来源说明
func getConfigSource() string {
	if configFile != "" {
		return "命令行参数"
	}
	if os.Getenv("CONFIG_FILE") != "" {
		return "环境变量"
	}
	return "默认配置"
}
