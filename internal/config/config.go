// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"story-ai-billing/internal/domain/model"
	"story-ai-billing/internal/usecase"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port      int    `yaml:"port"`
	JWTSecret string `yaml:"jwt_secret"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type AIConfig struct {
	OpenAIKey    string `yaml:"openai_key"`
	GeminiKey    string `yaml:"gemini_key"`
	DefaultModel string `yaml:"default_model"`
}

type PaymentConfig struct {
	DefaultProvider string `yaml:"default_provider"` // freedompay | stripe

	FreedomPay struct {
		MerchantID string `yaml:"merchant_id"`
		SecretKey  string `yaml:"secret_key"`
		BaseURL    string `yaml:"base_url"`
		CheckURL   string `yaml:"check_url"`
		ResultURL  string `yaml:"result_url"`
		SuccessURL string `yaml:"success_url"`
		FailureURL string `yaml:"failure_url"`
	} `yaml:"freedompay"`

	Stripe struct {
		APIKey        string `yaml:"api_key"`
		WebhookSecret string `yaml:"webhook_secret"`
		SuccessURL    string `yaml:"success_url"`
		CancelURL     string `yaml:"cancel_url"`
	} `yaml:"stripe"`

	// Catalog overrides the built-in product list when non-empty.
	Catalog map[string]model.Product `yaml:"catalog"`
	// Rates overrides the built-in exchange rates per currency code.
	Rates map[string]usecase.Rate `yaml:"rates"`
}

type SchedulerConfig struct {
	RecurringInterval  time.Duration `yaml:"recurring_interval"`
	ReconcileInterval  time.Duration `yaml:"reconcile_interval"`
	PendingExpiryAfter time.Duration `yaml:"pending_expiry_after"`
}

type NotifyConfig struct {
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID int64  `yaml:"telegram_chat_id"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	AI        AIConfig        `yaml:"ai"`
	Payment   PaymentConfig   `yaml:"payment"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Notify    NotifyConfig    `yaml:"notify"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig() (*Config, error) {
	var configPath string
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()

	b, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.Addr == "" {
		return nil, errors.New("redis.addr is required")
	}
	if cfg.Server.JWTSecret == "" {
		return nil, errors.New("server.jwt_secret is required")
	}
	if cfg.Payment.FreedomPay.SecretKey == "" && cfg.Payment.Stripe.APIKey == "" {
		return nil, errors.New("at least one payment provider must be configured")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Payment.DefaultProvider == "" {
		cfg.Payment.DefaultProvider = model.ProviderFreedomPay
	}
	if cfg.AI.DefaultModel == "" {
		cfg.AI.DefaultModel = "gpt-4o-mini"
	}
	if cfg.Scheduler.RecurringInterval <= 0 {
		cfg.Scheduler.RecurringInterval = time.Hour
	}
	if cfg.Scheduler.ReconcileInterval <= 0 {
		cfg.Scheduler.ReconcileInterval = 15 * time.Minute
	}
	if cfg.Scheduler.PendingExpiryAfter <= 0 {
		cfg.Scheduler.PendingExpiryAfter = 24 * time.Hour
	}
}
