package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	defaultJWTSecret     = "change-me-jwt-secret"
	defaultWebhookSecret = "change-me-webhook-secret"
)

type Config struct {
	Server struct {
		Env         string   `envconfig:"ENV" default:"dev"`
		Port        string   `envconfig:"PORT" default:"8080"`
		LogLevel    string   `envconfig:"LOG_LEVEL" default:"info"`
		Timezone    string   `envconfig:"TIMEZONE" default:"Asia/Kolkata"`
		CORSOrigins []string `envconfig:"CORS_ORIGINS"`
	} `envconfig:"SERVER"`

	DB struct {
		URL string `envconfig:"URL" default:"criczz.db"`
	} `envconfig:"DB"`

	Auth struct {
		JWTSecret string        `envconfig:"JWT_SECRET" default:"change-me-jwt-secret"`
		JWTTTL    time.Duration `envconfig:"JWT_TTL" default:"24h"`
	} `envconfig:"AUTH"`

	Gateway struct {
		KeyID         string        `envconfig:"KEY_ID"`
		KeySecret     string        `envconfig:"KEY_SECRET"`
		WebhookSecret string        `envconfig:"WEBHOOK_SECRET" default:"change-me-webhook-secret"`
		BaseURL       string        `envconfig:"BASE_URL" default:"https://api.razorpay.com/v1"`
		Timeout       time.Duration `envconfig:"TIMEOUT" default:"10s"`
		Currency      string        `envconfig:"CURRENCY" default:"INR"`
	} `envconfig:"GATEWAY"`

	Business struct {
		CommissionPercent  float64       `envconfig:"COMMISSION_PERCENT" default:"10"`
		TaxPercent         float64       `envconfig:"TAX_PERCENT" default:"0"`
		HoldTTL            time.Duration `envconfig:"HOLD_TTL" default:"15m"`
		CancellationWindow time.Duration `envconfig:"CANCELLATION_WINDOW" default:"24h"`
		ReopenOnWithdraw   bool          `envconfig:"REOPEN_ON_WITHDRAW" default:"false"`
		BookOnClose        bool          `envconfig:"BOOK_ON_CLOSE" default:"false"`
	} `envconfig:"BUSINESS"`

	Redis struct {
		URL     string `envconfig:"URL"`
		Channel string `envconfig:"CHANNEL" default:"criczz:fanout"`
	} `envconfig:"REDIS"`

	Sweep struct {
		Interval              time.Duration `envconfig:"INTERVAL" default:"1m"`
		NotificationRetention time.Duration `envconfig:"NOTIFICATION_RETENTION" default:"720h"`
	} `envconfig:"SWEEP"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.Server.Env = strings.ToLower(strings.TrimSpace(cfg.Server.Env))

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return isProdLike(c.Server.Env)
}

// Location resolves the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Server.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func validate(cfg *Config) error {
	if cfg.Auth.JWTTTL <= 0 {
		return fmt.Errorf("AUTH_JWT_TTL must be > 0")
	}
	if cfg.Gateway.Timeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT must be > 0")
	}
	if cfg.Business.HoldTTL <= 0 {
		return fmt.Errorf("BUSINESS_HOLD_TTL must be > 0")
	}
	if cfg.Business.CancellationWindow < 0 {
		return fmt.Errorf("BUSINESS_CANCELLATION_WINDOW must be >= 0")
	}
	if cfg.Business.CommissionPercent < 0 || cfg.Business.CommissionPercent > 100 {
		return fmt.Errorf("BUSINESS_COMMISSION_PERCENT must be within 0..100")
	}
	if cfg.Business.TaxPercent < 0 || cfg.Business.TaxPercent > 100 {
		return fmt.Errorf("BUSINESS_TAX_PERCENT must be within 0..100")
	}
	if cfg.Sweep.Interval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be > 0")
	}
	if cfg.Sweep.NotificationRetention < 0 {
		return fmt.Errorf("SWEEP_NOTIFICATION_RETENTION must be >= 0")
	}
	if _, err := time.LoadLocation(cfg.Server.Timezone); err != nil {
		return fmt.Errorf("invalid SERVER_TIMEZONE %q: %w", cfg.Server.Timezone, err)
	}

	if isProdLike(cfg.Server.Env) {
		if isEmptyOrDefault(cfg.Auth.JWTSecret, defaultJWTSecret) {
			return fmt.Errorf("in prod/release AUTH_JWT_SECRET must be set and not default")
		}
		if isEmptyOrDefault(cfg.Gateway.WebhookSecret, defaultWebhookSecret) {
			return fmt.Errorf("in prod/release GATEWAY_WEBHOOK_SECRET must be set and not default")
		}
		if strings.TrimSpace(cfg.Gateway.KeyID) == "" || strings.TrimSpace(cfg.Gateway.KeySecret) == "" {
			return fmt.Errorf("in prod/release GATEWAY_KEY_ID and GATEWAY_KEY_SECRET must be set")
		}
	}

	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}
