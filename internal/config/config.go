package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Hermes   HermesConfig   `yaml:"hermes"`
	Auth     AuthConfig     `yaml:"auth"`
	Gemini   GeminiConfig   `yaml:"gemini"`
	Mail     MailConfig     `yaml:"mail"`
	Notifier NotifierConfig `yaml:"notifier"`
	Scoring  ScoringConfig  `yaml:"scoring"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port                   int    `yaml:"port"`
	MetricsPort            int    `yaml:"metrics_port"`
	FrontendURL            string `yaml:"frontend_url"`
	RateLimitPerWindow     int    `yaml:"rate_limit_per_window"`
	RateLimitWindowMinutes int    `yaml:"rate_limit_window_minutes"`
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig configures the reminder cache. An empty URL disables caching.
type RedisConfig struct {
	URL                string `yaml:"url"`
	ReminderTTLMinutes int    `yaml:"reminder_ttl_minutes"`
}

// HermesConfig configures event publishing. An empty URL disables events.
type HermesConfig struct {
	URL string `yaml:"url"`
}

type AuthConfig struct {
	JWTSecret           string `yaml:"jwt_secret"`
	TokenTTLHours       int    `yaml:"token_ttl_hours"`
	BcryptCost          int    `yaml:"bcrypt_cost"`
	Issuer              string `yaml:"issuer"`
	AllowInsecureSecret bool   `yaml:"allow_insecure_secret"`
}

type GeminiConfig struct {
	APIKey                  string  `yaml:"api_key"`
	Model                   string  `yaml:"model"`
	BaseURL                 string  `yaml:"base_url"`
	TimeoutSeconds          int     `yaml:"timeout_seconds"`
	ChatMaxTokens           int     `yaml:"chat_max_tokens"`
	ChatTemperature         float64 `yaml:"chat_temperature"`
	BreakerFailureThreshold int     `yaml:"breaker_failure_threshold"`
	BreakerTimeoutSeconds   int     `yaml:"breaker_timeout_seconds"`
}

type MailConfig struct {
	SendgridAPIKey string `yaml:"sendgrid_api_key"`
	FromName       string `yaml:"from_name"`
	FromAddress    string `yaml:"from_address"`
}

type NotifierConfig struct {
	Enabled             bool `yaml:"enabled"`
	TickIntervalSeconds int  `yaml:"tick_interval_seconds"`
	LeadHours           int  `yaml:"lead_hours"`
	BatchSize           int  `yaml:"batch_size"`
	MaxAttempts         int  `yaml:"max_attempts"`
}

type ScoringConfig struct {
	DeadlineWeight float64 `yaml:"deadline_weight"`
	PriorityWeight float64 `yaml:"priority_weight"`
	TieTolerance   float64 `yaml:"tie_tolerance"`
	FocusCompact   int     `yaml:"focus_compact"`
	FocusFull      int     `yaml:"focus_full"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLHours) * time.Hour
}

func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.Server.RateLimitWindowMinutes) * time.Minute
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

func (c *Config) ReminderCacheTTL() time.Duration {
	return time.Duration(c.Redis.ReminderTTLMinutes) * time.Minute
}

func (c *Config) GeminiTimeout() time.Duration {
	return time.Duration(c.Gemini.TimeoutSeconds) * time.Second
}

func (c *Config) BreakerTimeout() time.Duration {
	return time.Duration(c.Gemini.BreakerTimeoutSeconds) * time.Second
}

func (c *Config) NotifierTick() time.Duration {
	return time.Duration(c.Notifier.TickIntervalSeconds) * time.Second
}

func (c *Config) NotifierLead() time.Duration {
	return time.Duration(c.Notifier.LeadHours) * time.Hour
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                   5000,
			MetricsPort:            5001,
			FrontendURL:            "*",
			RateLimitPerWindow:     100,
			RateLimitWindowMinutes: 15,
			ShutdownTimeoutSeconds: 10,
		},
		Redis: RedisConfig{
			ReminderTTLMinutes: 30,
		},
		Auth: AuthConfig{
			TokenTTLHours: 168,
			BcryptCost:    12,
			Issuer:        "edumate",
		},
		Gemini: GeminiConfig{
			Model:                   "gemini-1.5-flash",
			BaseURL:                 "https://generativelanguage.googleapis.com/v1beta",
			TimeoutSeconds:          30,
			ChatMaxTokens:           500,
			ChatTemperature:         0.7,
			BreakerFailureThreshold: 5,
			BreakerTimeoutSeconds:   60,
		},
		Mail: MailConfig{
			FromName: "EduMate AI",
		},
		Notifier: NotifierConfig{
			Enabled:             false,
			TickIntervalSeconds: 3600,
			LeadHours:           24,
			BatchSize:           100,
			MaxAttempts:         3,
		},
		Scoring: ScoringConfig{
			DeadlineWeight: 0.7,
			PriorityWeight: 0.3,
			TieTolerance:   0.1,
			FocusCompact:   3,
			FocusFull:      5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads .env when present, then defaults, the optional YAML file and
// EDUMATE_* environment overrides, in that order of precedence.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// loadDotEnv never overrides variables that are already set.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be positive, got %d", c.Server.Port)
	}
	if math.Abs(c.Scoring.DeadlineWeight+c.Scoring.PriorityWeight-1.0) > 0.001 {
		return fmt.Errorf("scoring weights sum to %.4f, must sum to 1.0",
			c.Scoring.DeadlineWeight+c.Scoring.PriorityWeight)
	}
	if c.Scoring.DeadlineWeight < 0 || c.Scoring.PriorityWeight < 0 {
		return errors.New("scoring weights must not be negative")
	}
	if c.Scoring.FocusCompact <= 0 || c.Scoring.FocusFull <= 0 {
		return errors.New("scoring focus sizes must be positive")
	}
	if c.Auth.JWTSecret == "" && !c.Auth.AllowInsecureSecret {
		return errors.New("auth.jwt_secret is required")
	}
	if c.Auth.TokenTTLHours <= 0 {
		return errors.New("auth.token_ttl_hours must be positive")
	}
	return nil
}

func applyEnv(cfg *Config) {
	setInt("EDUMATE_PORT", &cfg.Server.Port)
	setInt("EDUMATE_METRICS_PORT", &cfg.Server.MetricsPort)
	setString("EDUMATE_FRONTEND_URL", &cfg.Server.FrontendURL)
	setInt("EDUMATE_RATE_LIMIT_PER_WINDOW", &cfg.Server.RateLimitPerWindow)
	setString("EDUMATE_DATABASE_URL", &cfg.Database.URL)
	setString("EDUMATE_REDIS_URL", &cfg.Redis.URL)
	setString("EDUMATE_HERMES_URL", &cfg.Hermes.URL)
	setString("EDUMATE_JWT_SECRET", &cfg.Auth.JWTSecret)
	setInt("EDUMATE_BCRYPT_COST", &cfg.Auth.BcryptCost)
	setString("EDUMATE_GEMINI_API_KEY", &cfg.Gemini.APIKey)
	setString("EDUMATE_GEMINI_MODEL", &cfg.Gemini.Model)
	setString("EDUMATE_GEMINI_BASE_URL", &cfg.Gemini.BaseURL)
	setString("EDUMATE_SENDGRID_API_KEY", &cfg.Mail.SendgridAPIKey)
	setString("EDUMATE_MAIL_FROM", &cfg.Mail.FromAddress)
	setBool("EDUMATE_NOTIFIER_ENABLED", &cfg.Notifier.Enabled)
	setInt("EDUMATE_NOTIFIER_LEAD_HOURS", &cfg.Notifier.LeadHours)
	setInt("EDUMATE_NOTIFIER_MAX_ATTEMPTS", &cfg.Notifier.MaxAttempts)
	setString("EDUMATE_LOG_LEVEL", &cfg.Logging.Level)
	setString("EDUMATE_LOG_FORMAT", &cfg.Logging.Format)
}

func setString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
