package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用程序配置结构
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Health  HealthConfig  `mapstructure:"health"`
	Storage StorageConfig `mapstructure:"storage"`
	Etcd    EtcdConfig    `mapstructure:"etcd"`
	Redis   RedisConfig   `mapstructure:"redis"`
	DNS     DNSConfig     `mapstructure:"dns"`
	Events  EventsConfig  `mapstructure:"events"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig 注册中心HTTP服务配置
type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	RateLimit      float64  `mapstructure:"rate_limit"` // 每秒允许的写请求数，0表示不限流
	RateBurst      int      `mapstructure:"rate_burst"`
}

// HealthConfig 健康检查配置
type HealthConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxFailedChecks int           `mapstructure:"max_failed_checks"`
	Path            string        `mapstructure:"path"`
	Concurrency     int           `mapstructure:"concurrency"`
}

// StorageConfig 快照存储配置
type StorageConfig struct {
	Driver     string `mapstructure:"driver"` // "file", "etcd", "redis" 或 "memory"
	Path       string `mapstructure:"path"`
	SyncWrites bool   `mapstructure:"sync_writes"`
}

// EtcdConfig etcd配置
type EtcdConfig struct {
	Endpoints      []string      `mapstructure:"endpoints"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	Key            string        `mapstructure:"key"`
}

// RedisConfig redis配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
}

// DNSConfig DNS服务配置
type DNSConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Addr     string   `mapstructure:"addr"`
	Domain   string   `mapstructure:"domain"`
	TTL      uint32   `mapstructure:"ttl"`
	CacheTTL int      `mapstructure:"cache_ttl"`
	Upstream []string `mapstructure:"upstream"`
}

// EventsConfig 事件总线配置
type EventsConfig struct {
	QueueSize int `mapstructure:"queue_size"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// LoadConfig 从文件和环境变量加载配置
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// 设置默认值
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.ecosystem")
		v.AddConfigPath("/etc/modularity")
	}
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		// 找不到配置文件时使用默认值，其他错误直接返回
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件错误: %w", err)
		}
	}

	// 绑定环境变量
	v.SetEnvPrefix("MODULARITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVariables(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置错误: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults 设置配置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://localhost:8080", "http://127.0.0.1:3000"})
	v.SetDefault("server.rate_limit", 50.0)
	v.SetDefault("server.rate_burst", 100)

	v.SetDefault("health.interval", 30*time.Second)
	v.SetDefault("health.timeout", 5*time.Second)
	v.SetDefault("health.max_failed_checks", 3)
	v.SetDefault("health.path", "/_module/health")
	v.SetDefault("health.concurrency", 8)

	v.SetDefault("storage.driver", "file")
	v.SetDefault("storage.path", "~/.ecosystem/registry.json")
	v.SetDefault("storage.sync_writes", false)

	v.SetDefault("etcd.endpoints", []string{"localhost:2379"})
	v.SetDefault("etcd.dial_timeout", 5*time.Second)
	v.SetDefault("etcd.request_timeout", 5*time.Second)
	v.SetDefault("etcd.username", "")
	v.SetDefault("etcd.password", "")
	v.SetDefault("etcd.key", "/modularity/registry/snapshot")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key", "modularity:registry")

	v.SetDefault("dns.enabled", false)
	v.SetDefault("dns.addr", "127.0.0.1:5353")
	v.SetDefault("dns.domain", "modularity.local")
	v.SetDefault("dns.ttl", 30)
	v.SetDefault("dns.cache_ttl", 10)
	v.SetDefault("dns.upstream", []string{})

	v.SetDefault("events.queue_size", 256)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// bindEnvVariables 绑定特定的环境变量
func bindEnvVariables(v *viper.Viper) {
	// 兼容旧版本注册中心使用的环境变量
	v.BindEnv("server.host", "MODULARITY_SERVER_HOST", "REGISTRY_HOST")
	v.BindEnv("server.port", "MODULARITY_SERVER_PORT", "REGISTRY_PORT")
	v.BindEnv("server.allowed_origins", "MODULARITY_SERVER_ALLOWED_ORIGINS", "ALLOWED_ORIGINS")
	v.BindEnv("etcd.endpoints", "MODULARITY_ETCD_ENDPOINTS", "ETCD_ENDPOINTS")
	v.BindEnv("redis.addr", "MODULARITY_REDIS_ADDR", "REDIS_ADDR")
}

// validateConfig 验证配置有效性
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("服务端口配置无效: %d", config.Server.Port)
	}
	if config.Health.Interval <= 0 {
		return fmt.Errorf("健康检查间隔必须大于0")
	}
	if config.Health.Timeout <= 0 {
		return fmt.Errorf("健康检查超时必须大于0")
	}
	if config.Health.MaxFailedChecks <= 0 {
		return fmt.Errorf("最大失败次数必须大于0")
	}
	switch config.Storage.Driver {
	case "file", "etcd", "redis", "memory":
	default:
		return fmt.Errorf("不支持的存储类型: %s", config.Storage.Driver)
	}
	if config.DNS.Enabled && config.DNS.Domain == "" {
		return fmt.Errorf("DNS域名后缀不能为空")
	}
	return nil
}

// GetDefaultConfigPath 返回默认配置文件路径
func GetDefaultConfigPath() string {
	paths := []string{
		"./config.yaml",
		"./configs/config.yaml",
		os.Getenv("HOME") + "/.ecosystem/config.yaml",
		"/etc/modularity/config.yaml",
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}
