package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// EnvConfigPath 指定配置文件路径的环境变量。
const EnvConfigPath = "TYPEDSIGN_CONFIG"

// DefaultConfigPath 为未设置环境变量时使用的配置文件。
const DefaultConfigPath = "configs/typedsign.json"

// Config 描述了 TypedSign 守护进程启动时需要加载的全部配置。
type Config struct {
	Server    ServerConfig    `json:"server"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Queue     QueueConfig     `json:"queue"`
	Processor ProcessorConfig `json:"processor"`
	Domains   DomainsConfig   `json:"domains"`
	Alerting  AlertingConfig  `json:"alerting"`
	Auth      AuthConfig      `json:"auth"`
	Keys      []KeyConfig     `json:"keys"`
}

// ServerConfig 控制 API 服务与指标服务的监听地址。
type ServerConfig struct {
	Address         string   `json:"address"`
	MetricsAddress  string   `json:"metrics_address"`
	ShutdownTimeout Duration `json:"shutdown_timeout"`
}

// LoggingConfig 对应 pkg/logger 的配置项。
type LoggingConfig struct {
	Level       string   `json:"level"`
	Format      string   `json:"format"`
	OutputPaths []string `json:"output_paths"`
	AddSource   bool     `json:"add_source"`
	AuditPath   string   `json:"audit_path"`
	MaxSizeMB   int      `json:"audit_max_size_mb"`
	MaxBackups  int      `json:"audit_max_backups"`
	MaxAgeDays  int      `json:"audit_max_age_days"`
}

// StorageConfig 描述签名任务的持久化方式，支持 memory 与 mysql。
type StorageConfig struct {
	Driver          string   `json:"driver"`
	DSN             string   `json:"dsn"`
	MaxOpenConns    int      `json:"max_open_conns"`
	MaxIdleConns    int      `json:"max_idle_conns"`
	ConnMaxLifetime Duration `json:"conn_max_lifetime"`
}

// QueueConfig 描述任务队列，支持 memory、redis 与 rabbitmq。
type QueueConfig struct {
	Driver   string         `json:"driver"`
	Buffer   int            `json:"buffer"`
	Redis    RedisConfig    `json:"redis"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq"`
}

// RedisConfig 为 Redis 队列的连接参数。
type RedisConfig struct {
	Address  string   `json:"address"`
	Password string   `json:"password"`
	DB       int      `json:"db"`
	Key      string   `json:"key"`
	Block    Duration `json:"block"`
}

// RabbitMQConfig 为 RabbitMQ 队列的连接参数。
type RabbitMQConfig struct {
	URL      string `json:"url"`
	Queue    string `json:"queue"`
	Prefetch int    `json:"prefetch"`
}

// ProcessorConfig 控制后台签名处理器。
type ProcessorConfig struct {
	Workers    int `json:"workers"`
	MaxRetries int `json:"max_retries"`
}

// DomainsConfig 指向 YAML 格式的域目录。
type DomainsConfig struct {
	CatalogPath  string `json:"catalog_path"`
	VerifyChains bool   `json:"verify_chains"`
}

// AlertingConfig 控制签名失败告警的投递渠道，日志渠道始终开启。
type AlertingConfig struct {
	WebhookURL string `json:"webhook_url"`
}

// AuthConfig 控制 API 访问令牌校验，mode 为 disabled 或 token。
type AuthConfig struct {
	Mode   string        `json:"mode"`
	Tokens []TokenConfig `json:"tokens"`
}

// TokenConfig 描述一个静态访问令牌及其权限，Token 与 Env 二选一。
type TokenConfig struct {
	Name        string   `json:"name"`
	Token       string   `json:"token"`
	Env         string   `json:"env"`
	Permissions []string `json:"permissions"`
	Disabled    bool     `json:"disabled"`
}

// KeyConfig 描述一把签名私钥，Hex 与 Env 二选一。
type KeyConfig struct {
	Name string `json:"name"`
	Hex  string `json:"hex"`
	Env  string `json:"env"`
}

// Duration 允许在 JSON 中使用 "5s" 这样的字符串表示时长。
type Duration struct {
	time.Duration
}

// UnmarshalJSON 支持字符串与纳秒整数两种写法。
func (d *Duration) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		d.Duration = time.Duration(v)
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("解析时长失败: %w", err)
		}
		d.Duration = parsed
	case nil:
		d.Duration = 0
	default:
		return fmt.Errorf("无效的时长: %s", string(b))
	}
	return nil
}

// MarshalJSON 以字符串形式输出时长。
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// PathFromEnv 返回环境变量指定的配置路径，缺省时使用默认路径。
func PathFromEnv() string {
	if path := strings.TrimSpace(os.Getenv(EnvConfigPath)); path != "" {
		return path
	}
	return DefaultConfigPath
}

// Load 负责解析指定路径的 JSON 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.ShutdownTimeout.Duration <= 0 {
		c.Server.ShutdownTimeout.Duration = 10 * time.Second
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.AuditPath != "" && !filepath.IsAbs(c.Logging.AuditPath) {
		c.Logging.AuditPath = filepath.Join(baseDir, c.Logging.AuditPath)
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Storage.MaxOpenConns <= 0 {
		c.Storage.MaxOpenConns = 10
	}
	if c.Storage.MaxIdleConns <= 0 {
		c.Storage.MaxIdleConns = 5
	}
	if c.Storage.ConnMaxLifetime.Duration <= 0 {
		c.Storage.ConnMaxLifetime.Duration = 30 * time.Minute
	}

	if c.Queue.Driver == "" {
		c.Queue.Driver = "memory"
	}
	if c.Queue.Buffer <= 0 {
		c.Queue.Buffer = 128
	}
	if c.Queue.Redis.Key == "" {
		c.Queue.Redis.Key = "typedsign:signatures"
	}
	if c.Queue.Redis.Block.Duration <= 0 {
		c.Queue.Redis.Block.Duration = 5 * time.Second
	}
	if c.Queue.RabbitMQ.Queue == "" {
		c.Queue.RabbitMQ.Queue = "typedsign.signatures"
	}
	if c.Queue.RabbitMQ.Prefetch <= 0 {
		c.Queue.RabbitMQ.Prefetch = 16
	}

	if c.Auth.Mode == "" {
		c.Auth.Mode = "disabled"
	}

	if c.Processor.Workers <= 0 {
		c.Processor.Workers = 4
	}
	if c.Processor.MaxRetries <= 0 {
		c.Processor.MaxRetries = 3
	}

	if c.Domains.CatalogPath == "" {
		c.Domains.CatalogPath = filepath.Join(baseDir, "domains.yaml")
	} else if !filepath.IsAbs(c.Domains.CatalogPath) {
		c.Domains.CatalogPath = filepath.Join(baseDir, c.Domains.CatalogPath)
	}
}

// Validate 检查互斥选项与驱动名称。
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory":
	case "mysql":
		if c.Storage.DSN == "" {
			return errors.New("mysql 存储需要配置 dsn")
		}
	default:
		return fmt.Errorf("不支持的存储驱动: %s", c.Storage.Driver)
	}

	switch c.Queue.Driver {
	case "memory":
	case "redis":
		if c.Queue.Redis.Address == "" {
			return errors.New("redis 队列需要配置 address")
		}
	case "rabbitmq":
		if c.Queue.RabbitMQ.URL == "" {
			return errors.New("rabbitmq 队列需要配置 url")
		}
	default:
		return fmt.Errorf("不支持的队列驱动: %s", c.Queue.Driver)
	}

	switch c.Auth.Mode {
	case "disabled":
	case "token":
		if len(c.Auth.Tokens) == 0 {
			return errors.New("token 认证模式需要至少配置一个令牌")
		}
		for _, token := range c.Auth.Tokens {
			if token.Name == "" {
				return errors.New("令牌配置缺少 name")
			}
			if (token.Token == "") == (token.Env == "") {
				return fmt.Errorf("令牌 %s 需要且只能配置 token 或 env 其中之一", token.Name)
			}
		}
	default:
		return fmt.Errorf("不支持的认证模式: %s", c.Auth.Mode)
	}

	seen := make(map[string]struct{}, len(c.Keys))
	for _, key := range c.Keys {
		if key.Name == "" {
			return errors.New("私钥配置缺少 name")
		}
		if _, ok := seen[key.Name]; ok {
			return fmt.Errorf("重复的私钥名称: %s", key.Name)
		}
		seen[key.Name] = struct{}{}
		if (key.Hex == "") == (key.Env == "") {
			return fmt.Errorf("私钥 %s 需要且只能配置 hex 或 env 其中之一", key.Name)
		}
	}
	return nil
}
