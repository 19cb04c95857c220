package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// RedisConfig 定义了 Redis 共享状态存储的连接配置。
type RedisConfig struct {
	Address  string `yaml:"address"`  // Redis 服务器地址 (例如: "localhost:6379")
	Password string `yaml:"password"` // Redis 密码
	DB       int    `yaml:"db"`       // Redis 数据库编号
}

// KafkaConfig 定义了消息 Broker 的连接配置。
// 两个主题分别承载默认与高优先级通道。
type KafkaConfig struct {
	Brokers      []string `yaml:"brokers"`      // Kafka Broker 地址列表
	DefaultTopic string   `yaml:"defaultTopic"` // 默认通道主题 (task.default)
	HighTopic    string   `yaml:"highTopic"`    // 高优先级通道主题 (task.high)
	GroupID      string   `yaml:"groupID"`      // 消费者组 ID 前缀
}

// EtcdConfig 定义了密钥存储协作方的连接配置。
type EtcdConfig struct {
	Endpoints []string `yaml:"endpoints"` // Etcd 节点地址列表
	Username  string   `yaml:"username"`  // 用户名
	Password  string   `yaml:"password"`  // 密码
}

// DatabaseConfigs 包含所有外部服务的连接配置。
type DatabaseConfigs struct {
	Redis RedisConfig `yaml:"redis"` // 共享状态存储配置
	Kafka KafkaConfig `yaml:"kafka"` // 消息 Broker 配置
	Etcd  EtcdConfig  `yaml:"etcd"`  // 密钥存储配置
}

// OrchestratorConfig 定义了编排器的运行配置。
type OrchestratorConfig struct {
	ServerAddress    string `yaml:"serverAddress"`    // HTTP 控制接口监听地址
	DefaultAgentType string `yaml:"defaultAgentType"` // 路由无规则命中时的兜底 Agent 类型
}

// AgentConfig 定义了 Agent 运行时的配置。
type AgentConfig struct {
	HeartbeatIntervalSeconds int `yaml:"heartbeatIntervalSeconds"` // 心跳写入间隔（秒）
	ContextTTLSeconds        int `yaml:"contextTTLSeconds"`        // 任务上下文条目的 TTL（秒），默认 24 小时
	DedupTTLSeconds          int `yaml:"dedupTTLSeconds"`          // 已处理消息标记的 TTL（秒）
}

// AuditConfig 定义了审计日志的落盘位置。
type AuditConfig struct {
	MemoryDir  string `yaml:"memoryDir"`  // 决策/失败/发现日志目录
	MetricsDir string `yaml:"metricsDir"` // 速度指标日志目录
}

// LoggerConfig 定义了日志记录器的配置。
type LoggerConfig struct {
	Level string `yaml:"level"` // 日志级别 (例如: "info", "debug", "warn", "error")
}

// RateLimiterConfig 定义了控制接口限流的配置。
// Algorithm 可选: tokenBucket, leakyBucket, fixedWindowCounter,
// slidingWindowLog, slidingWindowCounter。
type RateLimiterConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Algorithm string  `yaml:"algorithm"`
	Rate      float64 `yaml:"rate"` // 每秒速率
	Capacity  int     `yaml:"capacity"`
}

// CircuitBreakerConfig 定义了密钥存储访问熔断器的配置。
type CircuitBreakerConfig struct {
	Enabled          bool   `yaml:"enabled"`
	FailureThreshold uint32 `yaml:"failureThreshold"`
	SuccessThreshold uint32 `yaml:"successThreshold"`
	Timeout          string `yaml:"timeout"` // 例如: "30s"
}

// MiddlewareConfig 包含所有中间件的配置。
type MiddlewareConfig struct {
	RateLimiter    RateLimiterConfig    `yaml:"rateLimiter"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker"`
}

// AppInfo 对应 'app' 部分，包含应用程序的基本信息。
type AppInfo struct {
	Name        string `yaml:"name"`        // 应用程序名称
	Version     string `yaml:"version"`     // 应用程序版本
	Environment string `yaml:"environment"` // 运行环境 (例如: "development", "production")
}

// AppConfig 是整个 YAML 文件的根结构，包含了应用程序的所有配置。
// 配置在进程启动时构造一次，按引用注入到需要它的组件，没有全局可变状态。
type AppConfig struct {
	App          AppInfo            `yaml:"app"`
	Logger       LoggerConfig       `yaml:"logger"`
	Databases    DatabaseConfigs    `yaml:"databases"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Agent        AgentConfig        `yaml:"agent"`
	Audit        AuditConfig        `yaml:"audit"`
	Middleware   MiddlewareConfig   `yaml:"middleware"`
}

// LoadConfig 从指定路径加载并解析 YAML 配置文件，
// 再用环境变量覆盖连接端点，最后补齐默认值。
func LoadConfig(path string) (*AppConfig, error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("无法读取 YAML 文件 '%s': %w", path, err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(yamlFile, &cfg); err != nil {
		return nil, fmt.Errorf("解析 YAML 文件失败: %w", err)
	}
	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	return &cfg, nil
}

// applyEnvOverrides 用环境变量覆盖连接端点，方便容器化部署。
func (c *AppConfig) applyEnvOverrides() {
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Databases.Redis.Address = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Databases.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Databases.Redis.DB = db
		}
	}
	if v := os.Getenv("KAFKA_BROKER"); v != "" {
		c.Databases.Kafka.Brokers = []string{v}
	}
	if v := os.Getenv("ETCD_ENDPOINT"); v != "" {
		c.Databases.Etcd.Endpoints = []string{v}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logger.Level = v
	}
}

func (c *AppConfig) applyDefaults() {
	if c.Databases.Kafka.DefaultTopic == "" {
		c.Databases.Kafka.DefaultTopic = "task.default"
	}
	if c.Databases.Kafka.HighTopic == "" {
		c.Databases.Kafka.HighTopic = "task.high"
	}
	if c.Databases.Kafka.GroupID == "" {
		c.Databases.Kafka.GroupID = "agentic-stack"
	}
	if c.Orchestrator.DefaultAgentType == "" {
		c.Orchestrator.DefaultAgentType = "coder"
	}
	if c.Agent.HeartbeatIntervalSeconds <= 0 {
		c.Agent.HeartbeatIntervalSeconds = 30
	}
	if c.Agent.ContextTTLSeconds <= 0 {
		c.Agent.ContextTTLSeconds = 86400
	}
	if c.Agent.DedupTTLSeconds <= 0 {
		c.Agent.DedupTTLSeconds = 86400
	}
	if c.Audit.MemoryDir == "" {
		c.Audit.MemoryDir = ".ai/memory"
	}
	if c.Audit.MetricsDir == "" {
		c.Audit.MetricsDir = ".ai/metrics"
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Middleware.RateLimiter.Algorithm == "" {
		c.Middleware.RateLimiter.Algorithm = "tokenBucket"
	}
}
