// Package config loads server configuration from defaults, an optional YAML
// file and environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/R3E-Network/fortivo/pkg/logger"
)

// DefaultJWTSecret is used when JWT_SECRET is unset. Only suitable for local
// development.
const DefaultJWTSecret = "devsecret"

// Config holds the complete server configuration.
type Config struct {
	Server        ServerConfig         `yaml:"server"`
	Auth          AuthConfig           `yaml:"auth"`
	CORS          CORSConfig           `yaml:"cors"`
	Database      DatabaseConfig       `yaml:"database"`
	Redis         RedisConfig          `yaml:"redis"`
	RateLimit     RateLimitConfig      `yaml:"rate_limit"`
	Uploads       UploadsConfig        `yaml:"uploads"`
	LLM           LLMConfig            `yaml:"llm"`
	Billing       BillingConfig        `yaml:"billing"`
	ExchangeRates ExchangeRatesConfig  `yaml:"exchange_rates"`
	Jobs          JobsConfig           `yaml:"jobs"`
	Logging       logger.LoggingConfig `yaml:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// AuditLog is an optional JSONL file receiving mutating request records.
	AuditLog string `yaml:"audit_log"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AuthConfig controls token issuance and the session cookie.
type AuthConfig struct {
	JWTSecret    Secret        `yaml:"jwt_secret"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
	CookieName   string        `yaml:"cookie_name"`
	CookieSecure bool          `yaml:"cookie_secure"`
	DevBootstrap bool          `yaml:"dev_bootstrap"`
}

// CORSConfig lists browser origins allowed to send credentials.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig selects the relational store. An empty DSN selects the
// in-memory store.
type DatabaseConfig struct {
	DSN             Secret `yaml:"dsn"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime"`
	MigrateOnStart  bool   `yaml:"migrate_on_start"`
}

// RedisConfig enables the shared token revocation list.
type RedisConfig struct {
	URL Secret `yaml:"url"`
}

// RateLimitConfig bounds per-client request rates on auth and chat routes.
type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	Burst             int `yaml:"burst"`
}

// UploadsConfig controls blob storage for avatars and documents.
type UploadsConfig struct {
	Dir      string         `yaml:"dir"`
	MaxBytes int64          `yaml:"max_bytes"`
	Supabase SupabaseConfig `yaml:"supabase"`
}

// SupabaseConfig enables Supabase Storage as the blob backend.
type SupabaseConfig struct {
	URL        string `yaml:"url"`
	ServiceKey Secret `yaml:"service_key"`
	Bucket     string `yaml:"bucket"`
}

// Enabled reports whether Supabase Storage is configured.
func (s SupabaseConfig) Enabled() bool {
	return s.URL != "" && s.ServiceKey.IsSet()
}

// LLM provider names.
const (
	ProviderBedrock = "bedrock"
	ProviderOllama  = "ollama"
	ProviderNone    = "none"
)

// LLMConfig selects and tunes the chat model provider.
type LLMConfig struct {
	Provider            string  `yaml:"provider"`
	AWSRegion           string  `yaml:"aws_region"`
	BedrockModelID      string  `yaml:"bedrock_model_id"`
	BedrockAgentID      string  `yaml:"bedrock_agent_id"`
	BedrockAgentAliasID string  `yaml:"bedrock_agent_alias_id"`
	OllamaURL           string  `yaml:"ollama_url"`
	OllamaModel         string  `yaml:"ollama_model"`
	Temperature         float64 `yaml:"temperature"`
	MaxTokens           int     `yaml:"max_tokens"`
	MaxToolRounds       int     `yaml:"max_tool_rounds"`
}

// BillingConfig enables Stripe checkout and webhooks.
type BillingConfig struct {
	StripeSecretKey Secret `yaml:"stripe_secret_key"`
	WebhookSecret   Secret `yaml:"webhook_secret"`
	ProPriceID      string `yaml:"pro_price_id"`
	PremiumPriceID  string `yaml:"premium_price_id"`
}

// Enabled reports whether Stripe is configured.
func (b BillingConfig) Enabled() bool {
	return b.StripeSecretKey.IsSet()
}

// ExchangeRatesConfig configures the periodic currency rate refresh.
type ExchangeRatesConfig struct {
	URL      string `yaml:"url"`
	APIKey   Secret `yaml:"api_key"`
	Schedule string `yaml:"schedule"`
}

// JobsConfig holds cron schedules for maintenance jobs.
type JobsConfig struct {
	SubscriptionSweepSchedule string `yaml:"subscription_sweep_schedule"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			JWTSecret:  DefaultJWTSecret,
			TokenTTL:   7 * 24 * time.Hour,
			CookieName: "fortaivo_token",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:5173", "http://127.0.0.1:5173"},
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 300,
			MigrateOnStart:  true,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			Burst:             20,
		},
		Uploads: UploadsConfig{
			Dir:      "uploads",
			MaxBytes: 10 << 20,
			Supabase: SupabaseConfig{Bucket: "uploads"},
		},
		LLM: LLMConfig{
			Provider:            ProviderBedrock,
			AWSRegion:           "us-east-1",
			BedrockModelID:      "anthropic.claude-3-5-sonnet-20241022-v2:0",
			BedrockAgentAliasID: "TSTALIASID",
			OllamaURL:           "http://localhost:11434",
			OllamaModel:         "qwen3:0.6b",
			Temperature:         0.7,
			MaxTokens:           4096,
			MaxToolRounds:       5,
		},
		Billing: BillingConfig{
			ProPriceID:     "price_pro_monthly",
			PremiumPriceID: "price_premium_monthly",
		},
		ExchangeRates: ExchangeRatesConfig{
			Schedule: "@every 6h",
		},
		Jobs: JobsConfig{
			SubscriptionSweepSchedule: "@every 1h",
		},
		Logging: logger.LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load builds the configuration. When path is empty FORTIVO_CONFIG names the
// optional YAML file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("FORTIVO_CONFIG")
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Host = getEnvString("HOST", c.Server.Host)
	c.Server.Port = getEnvInt("PORT", c.Server.Port)
	c.Server.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.AuditLog = getEnvString("AUDIT_LOG_PATH", c.Server.AuditLog)

	c.Auth.JWTSecret = Secret(getEnvString("JWT_SECRET", c.Auth.JWTSecret.Value()))
	c.Auth.TokenTTL = getEnvDuration("JWT_TTL", c.Auth.TokenTTL)
	c.Auth.CookieSecure = getEnvBool("COOKIE_SECURE", c.Auth.CookieSecure)
	c.Auth.DevBootstrap = getEnvBool("DEV_BOOTSTRAP", c.Auth.DevBootstrap)

	if origins := getEnvString("CORS_ORIGIN", ""); origins != "" {
		c.CORS.AllowedOrigins = splitCSV(origins)
	}

	c.Database.DSN = Secret(getEnvString("DATABASE_URL", c.Database.DSN.Value()))
	c.Database.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.ConnMaxLifetime = getEnvInt("DB_CONN_MAX_LIFETIME", c.Database.ConnMaxLifetime)
	c.Database.MigrateOnStart = getEnvBool("MIGRATE_ON_START", c.Database.MigrateOnStart)

	c.Redis.URL = Secret(getEnvString("REDIS_URL", c.Redis.URL.Value()))

	c.RateLimit.RequestsPerSecond = getEnvInt("RATE_LIMIT_RPS", c.RateLimit.RequestsPerSecond)
	c.RateLimit.Burst = getEnvInt("RATE_LIMIT_BURST", c.RateLimit.Burst)

	c.Uploads.Dir = getEnvString("UPLOAD_DIR", c.Uploads.Dir)
	c.Uploads.MaxBytes = int64(getEnvInt("MAX_UPLOAD_BYTES", int(c.Uploads.MaxBytes)))
	c.Uploads.Supabase.URL = getEnvString("SUPABASE_URL", c.Uploads.Supabase.URL)
	c.Uploads.Supabase.ServiceKey = Secret(getEnvString("SUPABASE_SERVICE_ROLE_KEY", c.Uploads.Supabase.ServiceKey.Value()))
	c.Uploads.Supabase.Bucket = getEnvString("SUPABASE_BUCKET", c.Uploads.Supabase.Bucket)

	c.LLM.Provider = strings.ToLower(getEnvString("LLM_PROVIDER", c.LLM.Provider))
	c.LLM.AWSRegion = getEnvString("AWS_REGION", c.LLM.AWSRegion)
	c.LLM.BedrockModelID = getEnvString("BEDROCK_MODEL_ID", c.LLM.BedrockModelID)
	c.LLM.BedrockAgentID = getEnvString("BEDROCK_AGENT_ID", c.LLM.BedrockAgentID)
	c.LLM.BedrockAgentAliasID = getEnvString("BEDROCK_AGENT_ALIAS_ID", c.LLM.BedrockAgentAliasID)
	c.LLM.OllamaURL = getEnvString("OLLAMA_URL", c.LLM.OllamaURL)
	c.LLM.OllamaModel = getEnvString("OLLAMA_MODEL", c.LLM.OllamaModel)

	c.Billing.StripeSecretKey = Secret(getEnvString("STRIPE_SECRET_KEY", c.Billing.StripeSecretKey.Value()))
	c.Billing.WebhookSecret = Secret(getEnvString("STRIPE_WEBHOOK_SECRET", c.Billing.WebhookSecret.Value()))
	c.Billing.ProPriceID = getEnvString("STRIPE_PRICE_PRO", c.Billing.ProPriceID)
	c.Billing.PremiumPriceID = getEnvString("STRIPE_PRICE_PREMIUM", c.Billing.PremiumPriceID)

	c.ExchangeRates.URL = getEnvString("EXCHANGE_RATES_URL", c.ExchangeRates.URL)
	c.ExchangeRates.APIKey = Secret(getEnvString("EXCHANGE_RATES_KEY", c.ExchangeRates.APIKey.Value()))
	c.ExchangeRates.Schedule = getEnvString("EXCHANGE_RATES_SCHEDULE", c.ExchangeRates.Schedule)
	c.Jobs.SubscriptionSweepSchedule = getEnvString("SUBSCRIPTION_SWEEP_SCHEDULE", c.Jobs.SubscriptionSweepSchedule)

	c.Logging.Level = getEnvString("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnvString("LOG_FORMAT", c.Logging.Format)
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server port %d out of range", c.Server.Port))
	}
	if !c.Auth.JWTSecret.IsSet() {
		errs = append(errs, errors.New("jwt secret is required"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("token ttl must be positive"))
	}
	if strings.TrimSpace(c.Uploads.Dir) == "" {
		errs = append(errs, errors.New("upload dir is required"))
	}
	if c.Uploads.MaxBytes <= 0 {
		errs = append(errs, errors.New("max upload bytes must be positive"))
	}
	switch c.LLM.Provider {
	case ProviderBedrock, ProviderOllama, ProviderNone:
	default:
		errs = append(errs, fmt.Errorf("unknown llm provider %q", c.LLM.Provider))
	}
	for name, spec := range map[string]string{
		"exchange rates schedule":     c.ExchangeRates.Schedule,
		"subscription sweep schedule": c.Jobs.SubscriptionSweepSchedule,
	} {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// UsingDefaultSecret reports whether the development JWT secret is active.
func (c *Config) UsingDefaultSecret() bool {
	return c.Auth.JWTSecret.Value() == DefaultJWTSecret
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
