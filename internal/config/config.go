package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port             string   `mapstructure:"PORT"`
	Env              string   `mapstructure:"ENV"`
	DatabaseURL      string   `mapstructure:"DATABASE_URL"`
	DBMaxConns       int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32    `mapstructure:"DB_MIN_CONNS"`
	RedisURL         string   `mapstructure:"REDIS_URL"`
	AuthSecret       string   `mapstructure:"AUTH_SECRET"`
	AuthIssuer       string   `mapstructure:"AUTH_ISSUER"`
	CORSOrigins      []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS     float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst   int      `mapstructure:"RATE_LIMIT_BURST"`
	WorkerPoolSize   int      `mapstructure:"WORKER_POOL_SIZE"`
	WebhookURLs      []string `mapstructure:"WEBHOOK_URLS"`
	WebhookSecret    string   `mapstructure:"WEBHOOK_SECRET"`
	SMTPHost         string   `mapstructure:"SMTP_HOST"`
	SMTPPort         int      `mapstructure:"SMTP_PORT"`
	SMTPUsername     string   `mapstructure:"SMTP_USERNAME"`
	SMTPPassword     string   `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom         string   `mapstructure:"SMTP_FROM"`
	TwilioAccountSID string   `mapstructure:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string   `mapstructure:"TWILIO_AUTH_TOKEN"`
	TwilioFromNumber string   `mapstructure:"TWILIO_FROM_NUMBER"`
}

var envKeys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
	"AUTH_SECRET", "AUTH_ISSUER", "CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"WORKER_POOL_SIZE", "WEBHOOK_URLS", "WEBHOOK_SECRET",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD", "SMTP_FROM",
	"TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN", "TWILIO_FROM_NUMBER",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("WORKER_POOL_SIZE", 16)
	v.SetDefault("SMTP_PORT", 587)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(cfg.CORSOrigins, v.GetString("CORS_ORIGINS"))
	cfg.WebhookURLs = splitList(cfg.WebhookURLs, v.GetString("WEBHOOK_URLS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: running in development mode (ENV=development); unauthenticated requests act as dev-user")
	}

	return cfg, nil
}

// splitList normalises list-valued settings. Viper hands back a single
// comma-joined element when the value came from the environment.
func splitList(parsed []string, raw string) []string {
	if len(parsed) == 1 && strings.Contains(parsed[0], ",") {
		raw = parsed[0]
		parsed = nil
	}
	if parsed == nil && raw != "" {
		parsed = strings.Split(raw, ",")
	}
	out := parsed[:0]
	for _, s := range parsed {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// SMTPEnabled reports whether outbound email is configured.
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != ""
}

// TwilioEnabled reports whether outbound SMS is configured.
func (c *Config) TwilioEnabled() bool {
	return c.TwilioAccountSID != ""
}

// Validate checks that the configuration is safe to run. Outside development
// AUTH_SECRET must be set so bearer tokens are verified, and partially
// configured notification channels are rejected.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthSecret == "" {
		return fmt.Errorf("AUTH_SECRET is required when ENV=%q", c.Env)
	}
	if c.AuthSecret != "" && len(c.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be at least 32 characters, got %d", len(c.AuthSecret))
	}
	if c.SMTPEnabled() {
		if c.SMTPFrom == "" {
			return fmt.Errorf("SMTP_FROM is required when SMTP_HOST is set")
		}
		if c.SMTPPort <= 0 {
			return fmt.Errorf("SMTP_PORT must be positive, got %d", c.SMTPPort)
		}
	}
	if c.TwilioEnabled() {
		if c.TwilioAuthToken == "" {
			return fmt.Errorf("TWILIO_AUTH_TOKEN is required when TWILIO_ACCOUNT_SID is set")
		}
		if c.TwilioFromNumber == "" {
			return fmt.Errorf("TWILIO_FROM_NUMBER is required when TWILIO_ACCOUNT_SID is set")
		}
	}
	if len(c.WebhookURLs) > 0 && c.WebhookSecret == "" {
		return fmt.Errorf("WEBHOOK_SECRET is required when WEBHOOK_URLS is set")
	}
	if c.WorkerPoolSize <= 0 {
		return fmt.Errorf("WORKER_POOL_SIZE must be positive, got %d", c.WorkerPoolSize)
	}
	return nil
}
