package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ConfigPathEnv  = "CALENDAR_CONFIG"
	redisAddrEnv   = "REDIS_ADDR"
	redisPassEnv   = "REDIS_PASSWORD"
	databaseDSNEnv = "DATABASE_DSN"
	openAIKeyEnv   = "OPENAI_API_KEY"
	openAIModelEnv = "OPENAI_MODEL"
	workflowURLEnv = "WORKFLOW_URL"
	workflowTokEnv = "WORKFLOW_TOKEN"
	logLevelEnv    = "LOG_LEVEL"
)

const (
	StoreRedis    = "redis"
	StorePostgres = "postgres"

	ModeQueue  = "queue"
	ModeDirect = "direct"
)

// Config holds every setting the calendar binaries read.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Store    StoreConfig    `yaml:"store"`
	Badger   BadgerConfig   `yaml:"badger"`
	Workflow WorkflowConfig `yaml:"workflow"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Insights InsightsConfig `yaml:"insights"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StoreConfig picks the record store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver"`
	PostgresDSN string `yaml:"postgresDsn"`
}

// BadgerConfig locates the insight report archive. An empty path keeps it in memory.
type BadgerConfig struct {
	Path string `yaml:"path"`
}

// WorkflowConfig describes how generation jobs reach the article workflow.
type WorkflowConfig struct {
	Mode  string `yaml:"mode"`
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
	Ref   string `yaml:"ref"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"apiKey"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"baseUrl"`
}

type InsightsConfig struct {
	RecentLimit   int           `yaml:"recentLimit"`
	DeclinedLimit int           `yaml:"declinedLimit"`
	ContextURLs   []string      `yaml:"contextUrls"`
	ExcerptChars  int           `yaml:"excerptChars"`
	ScrapeTimeout time.Duration `yaml:"scrapeTimeout"`
}

type ScheduleConfig struct {
	PerDay          int `yaml:"perDay"`
	StartOffsetDays int `yaml:"startOffsetDays"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads the YAML file at path over the defaults and applies environment
// overrides. An empty path falls back to CALENDAR_CONFIG; when that is unset
// too only defaults and environment are used.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(ConfigPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: cannot read %s: %w", path, err)
		}
		// Unmarshal onto the defaults so missing keys keep their default.
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: cannot parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv(redisAddrEnv); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv(redisPassEnv); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Store.PostgresDSN = v
		c.Store.Driver = StorePostgres
	}
	if v := os.Getenv(openAIKeyEnv); v != "" {
		c.OpenAI.APIKey = v
	}
	if v := os.Getenv(openAIModelEnv); v != "" {
		c.OpenAI.Model = v
	}
	if v := os.Getenv(workflowURLEnv); v != "" {
		c.Workflow.URL = v
	}
	if v := os.Getenv(workflowTokEnv); v != "" {
		c.Workflow.Token = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SCHEDULE_PER_DAY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: SCHEDULE_PER_DAY: %w", err)
		}
		c.Schedule.PerDay = n
	}
	return nil
}

func (c Config) Validate() error {
	switch c.Store.Driver {
	case StoreRedis:
	case StorePostgres:
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("config: store.postgresDsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}

	if c.Workflow.Mode != ModeQueue && c.Workflow.Mode != ModeDirect {
		return fmt.Errorf("config: unknown workflow mode %q", c.Workflow.Mode)
	}
	if c.Insights.RecentLimit < 1 || c.Insights.DeclinedLimit < 1 || c.Insights.ExcerptChars < 1 {
		return fmt.Errorf("config: insights limits must be at least 1")
	}
	if c.Schedule.PerDay < 1 {
		return fmt.Errorf("config: schedule.perDay must be at least 1")
	}
	if c.Schedule.StartOffsetDays < 0 {
		return fmt.Errorf("config: schedule.startOffsetDays must not be negative")
	}
	return nil
}

func Default() Config {
	return Config{
		Server:   ServerConfig{Addr: ":8080", ShutdownTimeout: 10 * time.Second},
		Redis:    RedisConfig{Addr: "localhost:6379"},
		Store:    StoreConfig{Driver: StoreRedis},
		Badger:   BadgerConfig{Path: "./badger-data"},
		Workflow: WorkflowConfig{Mode: ModeQueue, Ref: "main"},
		OpenAI:   OpenAIConfig{Model: "gpt-4o-mini"},
		Insights: InsightsConfig{RecentLimit: 50, DeclinedLimit: 50, ExcerptChars: 600, ScrapeTimeout: 30 * time.Second},
		Schedule: ScheduleConfig{PerDay: 1, StartOffsetDays: 1},
		Logging:  LoggingConfig{Level: "info"},
	}
}
