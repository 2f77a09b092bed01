package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var GlobalConfig *Config

// Config 全局配置
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Crypto   CryptoConfig   `mapstructure:"crypto"`
	Log      LogConfig      `mapstructure:"log"`
	Core     CoreConfig     `mapstructure:"core"`
	Executor ExecutorConfig `mapstructure:"executor"`
	Callback CallbackConfig `mapstructure:"callback"`
	CORS     CORSConfig     `mapstructure:"cors"`
}

// ServerConfig 服务配置
type ServerConfig struct {
	Name string `mapstructure:"name"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"` // mysql, postgres, sqlite
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Database        string `mapstructure:"database"` // sqlite 时为文件路径
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"` // postgres
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 秒
	LogLevel        string `mapstructure:"log_level"`         // SQL日志级别: silent/error/warn/info
	AutoMigrate     bool   `mapstructure:"auto_migrate"`
}

// AuthConfig 认证配置
type AuthConfig struct {
	JWT JWTConfig `mapstructure:"jwt"`
}

// JWTConfig JWT配置
type JWTConfig struct {
	Secret             string `mapstructure:"secret"`
	AccessTokenExpire  int    `mapstructure:"access_token_expire"`  // 秒
	RefreshTokenExpire int    `mapstructure:"refresh_token_expire"` // 秒
}

// CryptoConfig 加密配置
type CryptoConfig struct {
	AESKey string `mapstructure:"aes_key"` // 任意长度, 经 HKDF 派生为 32 字节
}

// LogConfig 日志配置
type LogConfig struct {
	Level    string `mapstructure:"level"`  // debug, info, warn, error
	Format   string `mapstructure:"format"` // json, console
	Output   string `mapstructure:"output"` // stdout, file
	FilePath string `mapstructure:"file_path"`
}

// CoreConfig Core模块配置
type CoreConfig struct {
	PollInterval         string             `mapstructure:"poll_interval"`          // 构建轮询间隔
	MaxMonitors          int64              `mapstructure:"max_monitors"`           // 同时轮询的部署上限
	CapacityFloorGB      float64            `mapstructure:"capacity_floor_gb"`      // VG 最小容量
	ReconcileCron        string             `mapstructure:"reconcile_cron"`         // 对账任务 cron
	ReconcileOnStart     bool               `mapstructure:"reconcile_on_start"`     // 启动时先对账
	ReconcileConcurrency int                `mapstructure:"reconcile_concurrency"`  // 对账并发
	Notification         NotificationConfig `mapstructure:"notification"`
}

// NotificationConfig 通知配置
type NotificationConfig struct {
	Enabled     bool   `mapstructure:"enabled"`      // 是否启用
	Provider    string `mapstructure:"provider"`     // 通知渠道: lark, log
	LarkWebhook string `mapstructure:"lark_webhook"` // Lark Webhook
}

// ExecutorConfig 构建执行器(Jenkins)配置
type ExecutorConfig struct {
	Driver       string  `mapstructure:"driver"` // jenkins, mock
	BaseURL      string  `mapstructure:"base_url"`
	User         string  `mapstructure:"user"`
	Token        string  `mapstructure:"token"`
	ViewerUser   string  `mapstructure:"viewer_user"`  // 只读账号, 用于拉取日志
	ViewerToken  string  `mapstructure:"viewer_token"` // 只读账号 token
	DeployJob    string  `mapstructure:"deploy_job"`
	PreflightJob string  `mapstructure:"preflight_job"`
	Timeout      string  `mapstructure:"timeout"`
	RateLimit    float64 `mapstructure:"rate_limit"` // 每秒请求数
	Burst        int     `mapstructure:"burst"`
}

// CallbackConfig 预检回调配置
type CallbackConfig struct {
	Token string `mapstructure:"token"` // 为空表示不校验
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "galera-cd")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.conn_max_lifetime", 3600)
	v.SetDefault("database.log_level", "silent")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("auth.jwt.access_token_expire", 86400)
	v.SetDefault("auth.jwt.refresh_token_expire", 604800)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("core.poll_interval", "5s")
	v.SetDefault("core.max_monitors", 64)
	v.SetDefault("core.capacity_floor_gb", 7)
	v.SetDefault("core.reconcile_cron", "0 */10 * * * *")
	v.SetDefault("core.reconcile_on_start", true)
	v.SetDefault("core.reconcile_concurrency", 4)
	v.SetDefault("core.notification.provider", "log")

	v.SetDefault("executor.driver", "jenkins")
	v.SetDefault("executor.deploy_job", "galera-deploy")
	v.SetDefault("executor.preflight_job", "galera-preflight")
	v.SetDefault("executor.timeout", "15s")
	v.SetDefault("executor.rate_limit", 5)
	v.SetDefault("executor.burst", 10)

	v.SetDefault("cors.allow_origins", []string{"http://localhost:3001"})
}

// Load 加载配置
func Load(configPath string) (*Config, error) {
	// .env 可选, 不存在时忽略
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("读取 .env 失败: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	// 设置配置文件路径
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// 读取环境变量, executor.token -> EXECUTOR_TOKEN
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 解析配置
	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// 设置全局配置
	GlobalConfig = config

	return config, nil
}

// GetDSN 获取数据库DSN
func (c *DatabaseConfig) GetDSN() string {
	switch c.Driver {
	case "postgres":
		sslMode := c.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=Local",
			c.Host, c.Port, c.Username, c.Password, c.Database, sslMode)
	case "sqlite":
		return c.Database
	default:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			c.Username,
			c.Password,
			c.Host,
			c.Port,
			c.Database,
		)
	}
}

// PollIntervalDuration 解析轮询间隔, 非法时回退到 5s
func (c *CoreConfig) PollIntervalDuration() time.Duration {
	return parseDuration(c.PollInterval, 5*time.Second)
}

// TimeoutDuration 执行器请求超时
func (c *ExecutorConfig) TimeoutDuration() time.Duration {
	return parseDuration(c.Timeout, 15*time.Second)
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
