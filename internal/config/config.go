package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Env      string `yaml:"env"`
		LogLevel string `yaml:"log_level"`

		// пусто = любой origin
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`

	Database struct {
		DSN          string `yaml:"url"`
		MaxOpenConns int    `yaml:"max_open_conns"`
		MaxIdleConns int    `yaml:"max_idle_conns"`
		AutoMigrate  bool   `yaml:"auto_migrate"`
	} `yaml:"database"`

	Email struct {
		Enabled      bool   `yaml:"enabled"`
		SMTPHost     string `yaml:"smtp_host"`
		SMTPPort     int    `yaml:"smtp_port"`
		SMTPUsername string `yaml:"smtp_user"`
		SMTPPassword string `yaml:"smtp_password"`
		FromEmail    string `yaml:"from_email"`
		FromName     string `yaml:"from_name"`
		UseTLS       bool   `yaml:"use_tls"`
	} `yaml:"email"`

	JWT struct {
		Secret string `yaml:"secret"`
		TTL    int    `yaml:"ttl"`
	} `yaml:"jwt"`

	// Finance - комиссии по планам. Значения - десятичные строки ("0.25"),
	// чтобы не проходить через float.
	Finance struct {
		Currency         string            `yaml:"currency"`
		FeeRates         map[string]string `yaml:"fee_rates"`
		DefaultFeeRate   string            `yaml:"default_fee_rate"`
		FinanceTeamEmail string            `yaml:"finance_team_email"`
	} `yaml:"finance"`

	Stripe struct {
		WebhookSecret      string `yaml:"webhook_secret"`
		SignatureTolerance int    `yaml:"signature_tolerance"` // секунды
		PriceBasic         string `yaml:"price_basic"`
		PriceMedium        string `yaml:"price_medium"`
		PricePremium       string `yaml:"price_premium"`
	} `yaml:"stripe"`

	Redis struct {
		Addr          string `yaml:"addr"`
		Password      string `yaml:"password"`
		DB            int    `yaml:"db"`
		EventClaimTTL int    `yaml:"event_claim_ttl"` // секунды
	} `yaml:"redis"`

	RabbitMQ struct {
		URL      string `yaml:"url"`
		Exchange string `yaml:"exchange"`
	} `yaml:"rabbitmq"`

	// Storage - архив выписок о выплатах; type пустой - архив выключен
	Storage struct {
		Type      string `yaml:"type"` // local | cloudflare_r2
		BasePath  string `yaml:"base_path"`
		BaseURL   string `yaml:"base_url"`
		Bucket    string `yaml:"bucket"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
		Endpoint  string `yaml:"endpoint"`
	} `yaml:"storage"`

	Workers struct {
		OutboxInterval       int `yaml:"outbox_interval"` // секунды
		OutboxBatchSize      int `yaml:"outbox_batch_size"`
		OutboxMaxAttempts    int `yaml:"outbox_max_attempts"`
		SubscriptionInterval int `yaml:"subscription_interval"` // секунды
	} `yaml:"workers"`
}

var AppConfig *Config

// LoadConfig заполняет AppConfig.
// Без DATABASE_URL читается YAML (CONFIG_PATH, по умолчанию config/config.yaml),
// с DATABASE_URL - конфиг собирается из переменных окружения (тесты, контейнеры).
func LoadConfig() {
	if os.Getenv("DATABASE_URL") == "" {
		configPath := os.Getenv("CONFIG_PATH")
		if configPath == "" {
			configPath = "config/config.yaml"
		}

		cfg, err := LoadFile(configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		AppConfig = cfg
		return
	}

	log.Println("Loading configuration from environment variables")
	AppConfig = FromEnv()
}

// LoadFile читает YAML конфиг и применяет значения по умолчанию.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config file at %s: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config file at %s: %w", path, err)
	}

	applySecretsFromEnv(&cfg)
	cfg.applyDefaults()
	return &cfg, nil
}

// FromEnv собирает конфиг из переменных окружения.
func FromEnv() *Config {
	var cfg Config

	cfg.Database.DSN = os.Getenv("DATABASE_URL")
	cfg.Database.AutoMigrate = os.Getenv("DATABASE_AUTO_MIGRATE") == "true"
	cfg.Server.Env = os.Getenv("SERVER_ENV")
	cfg.Server.Port, _ = strconv.Atoi(os.Getenv("SERVER_PORT"))
	cfg.Server.LogLevel = os.Getenv("LOG_LEVEL")
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = strings.Split(v, ",")
	}

	cfg.Email.Enabled = os.Getenv("SMTP_HOST") != ""
	cfg.Email.SMTPHost = os.Getenv("SMTP_HOST")
	cfg.Email.SMTPPort, _ = strconv.Atoi(os.Getenv("SMTP_PORT"))
	cfg.Email.SMTPUsername = os.Getenv("SMTP_USER")
	cfg.Email.FromEmail = os.Getenv("EMAIL_FROM")

	cfg.Finance.FinanceTeamEmail = os.Getenv("FINANCE_TEAM_EMAIL")

	cfg.Stripe.PriceBasic = os.Getenv("STRIPE_PRICE_BASIC")
	cfg.Stripe.PriceMedium = os.Getenv("STRIPE_PRICE_MEDIUM")
	cfg.Stripe.PricePremium = os.Getenv("STRIPE_PRICE_PREMIUM")

	cfg.Redis.Addr = os.Getenv("REDIS_ADDR")
	cfg.RabbitMQ.URL = os.Getenv("RABBITMQ_URL")

	cfg.Storage.Type = os.Getenv("STORAGE_TYPE")
	cfg.Storage.BasePath = os.Getenv("STORAGE_BASE_PATH")
	cfg.Storage.BaseURL = os.Getenv("STORAGE_BASE_URL")
	cfg.Storage.Bucket = os.Getenv("STORAGE_BUCKET")
	cfg.Storage.Endpoint = os.Getenv("STORAGE_ENDPOINT")

	applySecretsFromEnv(&cfg)
	cfg.applyDefaults()
	return &cfg
}

// Секреты никогда не хранятся в YAML в проде, поэтому env имеет приоритет.
func applySecretsFromEnv(cfg *Config) {
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWT.Secret = v
	}
	if v := os.Getenv("STRIPE_WEBHOOK_SECRET"); v != "" {
		cfg.Stripe.WebhookSecret = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.Email.SMTPPassword = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("STORAGE_ACCESS_KEY"); v != "" {
		cfg.Storage.AccessKey = v
	}
	if v := os.Getenv("STORAGE_SECRET_KEY"); v != "" {
		cfg.Storage.SecretKey = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 4000
	}
	if c.Server.Env == "" {
		c.Server.Env = "development"
	}
	if c.JWT.TTL == 0 {
		c.JWT.TTL = 60
	}
	if c.Email.SMTPPort == 0 {
		c.Email.SMTPPort = 587
	}
	if c.Email.FromEmail == "" {
		c.Email.FromEmail = "noreply@thetravelwild.com"
	}
	if c.Email.FromName == "" {
		c.Email.FromName = "The Travel Wild"
	}
	if c.Finance.Currency == "" {
		c.Finance.Currency = "EUR"
	}
	if len(c.Finance.FeeRates) == 0 {
		c.Finance.FeeRates = map[string]string{
			"basic":   "0.25",
			"premium": "0.20",
		}
	}
	if c.Finance.DefaultFeeRate == "" {
		c.Finance.DefaultFeeRate = "0.10"
	}
	if c.Finance.FinanceTeamEmail == "" {
		c.Finance.FinanceTeamEmail = c.Email.FromEmail
	}
	if c.Stripe.SignatureTolerance == 0 {
		c.Stripe.SignatureTolerance = 300
	}
	if c.Redis.EventClaimTTL == 0 {
		c.Redis.EventClaimTTL = 600
	}
	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "travelwild.events"
	}
	if c.Workers.OutboxInterval == 0 {
		c.Workers.OutboxInterval = 60
	}
	if c.Workers.OutboxBatchSize == 0 {
		c.Workers.OutboxBatchSize = 50
	}
	if c.Workers.OutboxMaxAttempts == 0 {
		c.Workers.OutboxMaxAttempts = 5
	}
	if c.Workers.SubscriptionInterval == 0 {
		c.Workers.SubscriptionInterval = 6 * 60 * 60
	}
}

// IsProduction - true для env=production
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func (c *Config) StripeTolerance() time.Duration {
	return time.Duration(c.Stripe.SignatureTolerance) * time.Second
}

func (c *Config) EventClaimTTL() time.Duration {
	return time.Duration(c.Redis.EventClaimTTL) * time.Second
}

// PlanByPriceID ищет план по price id из настроек Stripe.
func (c *Config) PlanByPriceID(priceID string) (string, bool) {
	if priceID == "" {
		return "", false
	}
	switch priceID {
	case c.Stripe.PricePremium:
		return "premium", true
	case c.Stripe.PriceMedium:
		return "medium", true
	case c.Stripe.PriceBasic:
		return "basic", true
	}
	return "", false
}

func GetConfig() *Config {
	if AppConfig == nil {
		LoadConfig()
	}
	return AppConfig
}
