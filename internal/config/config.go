package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/LJTian/InsightHub/internal/domain"
)

const (
	envPathEnv    = "ENV_PATH"
	configPathEnv = "INSIGHTS_CONFIG"
)

// Config 进程启动时构建一次，之后只通过参数传递
type Config struct {
	AppPort string `yaml:"app_port"`

	PostgresDSN string `yaml:"postgres_dsn"`
	RedisAddr   string `yaml:"redis_addr"`

	// CronSpec 为空时不启用进程内定时任务，由外部调度器调用接口
	CronSpec   string        `yaml:"cron_spec"`
	CronSecret string        `yaml:"cron_secret"`
	RunTimeout time.Duration `yaml:"run_timeout"`

	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	Workers      int           `yaml:"workers"`
	UserAgent    string        `yaml:"user_agent"`
	MaxFeedBytes int           `yaml:"max_feed_bytes"`

	LogLevel string `yaml:"log_level"`

	Sources []SourceConfig `yaml:"sources"`
}

// SourceConfig 是配置文件中用于初始化数据源的一项
type SourceConfig struct {
	ID                  string   `yaml:"id"`
	Name                string   `yaml:"name"`
	FeedURL             string   `yaml:"feed_url"`
	Active              *bool    `yaml:"active"`
	DefaultCategory     string   `yaml:"default_category"`
	DefaultImpactWeight *float64 `yaml:"default_impact_weight"`
}

// Domain 未写 active 的数据源视为启用
func (s SourceConfig) Domain() domain.Source {
	active := true
	if s.Active != nil {
		active = *s.Active
	}
	return domain.Source{
		ID:                  s.ID,
		Name:                s.Name,
		FeedURL:             s.FeedURL,
		IsActive:            active,
		DefaultCategory:     s.DefaultCategory,
		DefaultImpactWeight: s.DefaultImpactWeight,
	}
}

func defaults() *Config {
	return &Config{
		AppPort:      "9000",
		PostgresDSN:  "host=localhost user=insights password=insights dbname=insights port=5432 sslmode=disable TimeZone=UTC",
		RedisAddr:    "localhost:6379",
		RunTimeout:   10 * time.Minute,
		FetchTimeout: 15 * time.Second,
		Workers:      4,
		UserAgent:    "InsightHub/1.0 (+feed ingestion)",
		MaxFeedBytes: 10 << 20,
		LogLevel:     "info",
	}
}

// Load 优先级：环境变量 > 配置文件 > 默认值。.env 不存在时忽略。
func Load() (*Config, error) {
	envPath := getEnv(envPathEnv, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Debug("skipping .env", "path", envPath, "error", err)
	}

	cfg := defaults()
	if path := os.Getenv(configPathEnv); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	cfg.AppPort = getEnv("APP_PORT", cfg.AppPort)
	cfg.PostgresDSN = getEnv("POSTGRES_DSN", cfg.PostgresDSN)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.CronSpec = getEnv("CRON_SPEC", cfg.CronSpec)
	cfg.CronSecret = getEnv("CRON_SECRET", cfg.CronSecret)
	cfg.UserAgent = getEnv("FEED_USER_AGENT", cfg.UserAgent)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	var err error
	if cfg.RunTimeout, err = getEnvDuration("RUN_TIMEOUT", cfg.RunTimeout); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = getEnvDuration("FETCH_TIMEOUT", cfg.FetchTimeout); err != nil {
		return nil, err
	}
	if cfg.Workers, err = getEnvInt("INGEST_WORKERS", cfg.Workers); err != nil {
		return nil, err
	}
	if cfg.MaxFeedBytes, err = getEnvInt("MAX_FEED_BYTES", cfg.MaxFeedBytes); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	bs, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(bs, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.RunTimeout <= 0 {
		return fmt.Errorf("run timeout must be positive, got %s", c.RunTimeout)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive, got %s", c.FetchTimeout)
	}
	seen := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		if strings.TrimSpace(s.ID) == "" || strings.TrimSpace(s.FeedURL) == "" {
			return fmt.Errorf("sources[%d]: id and feed_url are required", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("sources[%d]: duplicate id %q", i, s.ID)
		}
		seen[s.ID] = true
		if w := s.DefaultImpactWeight; w != nil && (*w < 0 || *w > 1) {
			return fmt.Errorf("sources[%d]: default_impact_weight %v out of [0,1]", i, *w)
		}
	}
	if c.CronSpec != "" && c.CronSecret == "" {
		slog.Warn("CRON_SECRET is empty, X-Cron-Secret triggers will be rejected")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
