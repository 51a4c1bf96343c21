package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the notification service
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Email      EmailConfig      `yaml:"email"`
	SES        SESConfig        `yaml:"ses"`
	Templates  TemplatesConfig  `yaml:"templates"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Newsletter NewsletterConfig `yaml:"newsletter"`
	Dispatch   DispatchConfig   `yaml:"dispatch"`
	Events     EventsConfig     `yaml:"events"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds the Postgres connection settings
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_seconds"`
}

// RedisConfig holds the Redis connection used for digests and locks.
// An empty URL disables both.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// EmailConfig holds sender identity and link settings
type EmailConfig struct {
	Transport   string `yaml:"transport"` // "ses" or "log"
	FromName    string `yaml:"from_name"`
	FromEmail   string `yaml:"from_email"`
	ReplyTo     string `yaml:"reply_to"`
	FrontendURL string `yaml:"frontend_url"`
}

// SESConfig holds AWS SES API configuration
type SESConfig struct {
	Region         string `yaml:"region"`
	AccessKey      string `yaml:"access_key"`
	SecretKey      string `yaml:"secret_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c SESConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TemplatesConfig points at an optional S3 location with template overrides.
type TemplatesConfig struct {
	S3Bucket string `yaml:"s3_bucket"`
	S3Prefix string `yaml:"s3_prefix"`
	S3Region string `yaml:"s3_region"`
}

// SchedulerConfig holds the recurring job settings
type SchedulerConfig struct {
	Enabled         bool `yaml:"enabled"`
	BudgetDelayMS   int  `yaml:"budget_delay_ms"`
	ReportDelayMS   int  `yaml:"report_delay_ms"`
	NewsletterDelay int  `yaml:"newsletter_delay_ms"`
	DigestDelayMS   int  `yaml:"digest_delay_ms"`
	DistributedLock bool `yaml:"distributed_lock"`
	LockTTLSeconds  int  `yaml:"lock_ttl_seconds"`
}

// LockTTL returns the per-firing lock TTL as a duration
func (c SchedulerConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// NewsletterConfig holds the product-update feed used in newsletters
type NewsletterConfig struct {
	FeedURL  string `yaml:"feed_url"`
	MaxItems int    `yaml:"max_items"`
}

// DispatchConfig bounds fire-and-forget event handling
type DispatchConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Timeout returns the per-task timeout as a duration
func (c DispatchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// EventsConfig points at the expense tracker's AMQP event bus. An empty URL
// disables the consumer; the HTTP event hooks still work.
type EventsConfig struct {
	AMQPURL  string `yaml:"amqp_url"`
	Exchange string `yaml:"exchange"`
	Queue    string `yaml:"queue"`
}

// LoggingConfig holds log level and redaction
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Redact reports whether PII redaction is on (default true).
func (c LoggingConfig) Redact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every default applied, used when no
// config file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.Scheduler.Enabled = true
	cfg.applyDefaults()
	return cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:3000"}
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 300
	}
	if cfg.Email.Transport == "" {
		cfg.Email.Transport = "ses"
	}
	if cfg.Email.FromName == "" {
		cfg.Email.FromName = "EXTrace"
	}
	if cfg.Email.FrontendURL == "" {
		cfg.Email.FrontendURL = "http://localhost:3000"
	}
	if cfg.SES.TimeoutSeconds == 0 {
		cfg.SES.TimeoutSeconds = 30
	}
	if cfg.SES.Region == "" {
		cfg.SES.Region = "us-east-1"
	}
	if cfg.Templates.S3Region == "" {
		cfg.Templates.S3Region = cfg.SES.Region
	}
	if cfg.Scheduler.BudgetDelayMS == 0 {
		cfg.Scheduler.BudgetDelayMS = 500
	}
	if cfg.Scheduler.ReportDelayMS == 0 {
		cfg.Scheduler.ReportDelayMS = 1000
	}
	if cfg.Scheduler.NewsletterDelay == 0 {
		cfg.Scheduler.NewsletterDelay = 2000
	}
	if cfg.Scheduler.DigestDelayMS == 0 {
		cfg.Scheduler.DigestDelayMS = 1000
	}
	if cfg.Scheduler.LockTTLSeconds == 0 {
		cfg.Scheduler.LockTTLSeconds = 3000
	}
	if cfg.Newsletter.MaxItems == 0 {
		cfg.Newsletter.MaxItems = 3
	}
	if cfg.Dispatch.TimeoutSeconds == 0 {
		cfg.Dispatch.TimeoutSeconds = 60
	}
	if cfg.Events.Exchange == "" {
		cfg.Events.Exchange = "extrace.events"
	}
	if cfg.Events.Queue == "" {
		cfg.Events.Queue = "notify.events"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in production.
// A missing config file is not an error: defaults plus env are used.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		cfg = Default()
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("EMAIL_TRANSPORT"); v != "" {
		cfg.Email.Transport = v
	}
	if v := os.Getenv("EMAIL_FROM"); v != "" {
		cfg.Email.FromEmail = v
	}
	if v := os.Getenv("FRONTEND_URL"); v != "" {
		cfg.Email.FrontendURL = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.SES.AccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.SES.SecretKey = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.SES.Region = v
	}
	if v := os.Getenv("TEMPLATES_S3_BUCKET"); v != "" {
		cfg.Templates.S3Bucket = v
	}
	if v := os.Getenv("NEWSLETTER_FEED_URL"); v != "" {
		cfg.Newsletter.FeedURL = v
	}
	if v := os.Getenv("SCHEDULER_ENABLED"); v != "" {
		cfg.Scheduler.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("AMQP_URL"); v != "" {
		cfg.Events.AMQPURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return cfg, nil
}
