// Package config provides application configuration loaded from environment
// variables (optionally seeded from a .env file) with defaults and validation.
// It centralizes server timeouts, logging, database, authentication, payment
// provider, storage, alerting, rate limiting and observability settings.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool          `env:"ENABLE_HSTS" envDefault:"false"`
	HSTSMaxAge time.Duration `env:"HSTS_MAX_AGE" envDefault:"4320h"`
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    `env:"OTEL_ENABLED" envDefault:"false"`
	Endpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	Insecure    bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	ServiceName string  `env:"OTEL_SERVICE_NAME" envDefault:"help-paw-backend"`
	SampleRatio float64 `env:"OTEL_TRACES_SAMPLER_ARG" envDefault:"1.0"`
}

// DBConfig selects the database driver and connection string.
type DBConfig struct {
	Driver string `env:"DB_DRIVER" envDefault:"sqlite"` // sqlite|postgres
	DSN    string `env:"DB_DSN" envDefault:"help_paw.db"`
	Debug  bool   `env:"DB_DEBUG" envDefault:"false"`
}

// AuthConfig holds token signing settings.
type AuthConfig struct {
	Secret         string        `env:"SECRET_KEY"`
	AccessTTL      time.Duration `env:"JWT_ACCESS_TTL" envDefault:"24h"`
	RefreshTTL     time.Duration `env:"JWT_REFRESH_TTL" envDefault:"720h"`
	ActivationTTL  time.Duration `env:"ACTIVATION_TTL" envDefault:"72h"`
	ResetTTL       time.Duration `env:"PASSWORD_RESET_TTL" envDefault:"24h"`
	EmailChangeTTL time.Duration `env:"EMAIL_CHANGE_TTL" envDefault:"48h"`
	FrontendURL    string        `env:"FRONTEND_URL" envDefault:"https://lapkipomoshi.ru"`
}

// YookassaConfig holds partner-program credentials and endpoints.
type YookassaConfig struct {
	ClientID      string        `env:"YOOKASSA_CLIENT_ID"`
	ClientSecret  string        `env:"YOOKASSA_CLIENT_SECRET"`
	APIBase       string        `env:"YOOKASSA_API_BASE" envDefault:"https://api.yookassa.ru/v3"`
	OAuthBase     string        `env:"YOOKASSA_OAUTH_BASE" envDefault:"https://yookassa.ru/oauth/v2"`
	WebhookURL    string        `env:"YOOKASSA_WEBHOOK_URL" envDefault:"https://lapkipomoshi.ru/api/v1/webhook-callback"`
	ReturnURLBase string        `env:"YOOKASSA_RETURN_URL_BASE" envDefault:"https://lapkipomoshi.ru"`
	Timeout       time.Duration `env:"YOOKASSA_TIMEOUT" envDefault:"10s"`
	TestMode      bool          `env:"YOOKASSA_TEST_MODE" envDefault:"false"`
	StateTTL      time.Duration `env:"YOOKASSA_STATE_TTL" envDefault:"15m"`
	MinDonation   string        `env:"MIN_DONATION" envDefault:"1.00"`
}

// StorageConfig configures gallery image storage. An empty bucket selects the
// in-memory store.
type StorageConfig struct {
	Bucket     string `env:"S3_BUCKET"`
	Region     string `env:"S3_REGION" envDefault:"ru-central1"`
	Endpoint   string `env:"S3_ENDPOINT"`
	AccessKey  string `env:"S3_ACCESS_KEY"`
	SecretKey  string `env:"S3_SECRET_KEY"`
	PublicBase string `env:"S3_PUBLIC_BASE"`
	PathStyle  bool   `env:"S3_PATH_STYLE" envDefault:"true"`
}

// AlertConfig configures the Telegram bot used for unhandled error alerts.
type AlertConfig struct {
	TelegramToken  string        `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID string        `env:"TELEGRAM_CHAT_ID"`
	TelegramAPI    string        `env:"TELEGRAM_API_BASE" envDefault:"https://api.telegram.org"`
	Timeout        time.Duration `env:"ALERT_TIMEOUT" envDefault:"5s"`
}

// GeocoderConfig configures the address lookup service. An empty endpoint
// disables geocoding.
type GeocoderConfig struct {
	Endpoint string        `env:"GEOCODER_URL"`
	APIKey   string        `env:"GEOCODER_API_KEY"`
	Timeout  time.Duration `env:"GEOCODER_TIMEOUT" envDefault:"5s"`
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        `env:"PORT" envDefault:"8080"`
	ReadTimeout       time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT" envDefault:"10s"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT" envDefault:"20s"`
	IdleTimeout       time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	MaxHeaderBytes    int           `env:"MAX_HEADER_BYTES" envDefault:"1048576"`
	MaxBodyBytes      int64         `env:"MAX_BODY_BYTES" envDefault:"12582912"`
	GinMode           string        `env:"GIN_MODE" envDefault:"release"`

	// Logging / Docs
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty      bool   `env:"LOG_PRETTY" envDefault:"false"`
	SwaggerEnabled bool   `env:"SWAGGER_ENABLED" envDefault:"false"`
	APIBasePath    string `env:"API_BASE_PATH" envDefault:"/api/v1"`

	// Rate limiting
	RateRPS       float64 `env:"RATE_RPS" envDefault:"5"`
	RateBurst     int     `env:"RATE_BURST" envDefault:"10"`
	AuthRateRPS   float64 `env:"AUTH_RATE_RPS" envDefault:"0.5"`
	AuthRateBurst int     `env:"AUTH_RATE_BURST" envDefault:"5"`

	// Idempotency / caches
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
	SearchCacheTTL time.Duration `env:"SEARCH_CACHE_TTL" envDefault:"5m"`

	DB       DBConfig
	Auth     AuthConfig
	Yookassa YookassaConfig
	Storage  StorageConfig
	Alert    AlertConfig
	Geocoder GeocoderConfig
	CORS     CORSConfig
	Security SecurityConfig
	OTEL     OTELConfig
}

// MinDonationAmount returns the parsed minimum donation.
func (c Config) MinDonationAmount() decimal.Decimal {
	d, err := decimal.NewFromString(c.Yookassa.MinDonation)
	if err != nil {
		return decimal.NewFromInt(1)
	}
	return d
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads .env (when present) and environment variables, applies
// defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	// --- normalization ---
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	cfg.GinMode = strings.ToLower(strings.TrimSpace(cfg.GinMode))
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	cfg.APIBasePath = normalizeBasePath(cfg.APIBasePath)
	cfg.DB.Driver = strings.ToLower(strings.TrimSpace(cfg.DB.Driver))
	cfg.Yookassa.APIBase = strings.TrimRight(cfg.Yookassa.APIBase, "/")
	cfg.Yookassa.OAuthBase = strings.TrimRight(cfg.Yookassa.OAuthBase, "/")
	cfg.Yookassa.ReturnURLBase = strings.TrimRight(cfg.Yookassa.ReturnURLBase, "/")
	cfg.CORS.AllowedOrigins = trimAll(cfg.CORS.AllowedOrigins)
	if cfg.Auth.Secret == "" && cfg.GinMode != "release" {
		cfg.Auth.Secret = "dev-secret-key-change-me-please!"
	}

	return cfg, cfg.validate()
}

func (cfg Config) validate() error {
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if cfg.MaxBodyBytes <= 0 {
		return errors.New("MAX_BODY_BYTES must be > 0")
	}
	switch cfg.DB.Driver {
	case "sqlite", "postgres":
	default:
		return errors.New("DB_DRIVER must be sqlite or postgres")
	}
	if strings.TrimSpace(cfg.DB.DSN) == "" {
		return errors.New("DB_DSN must not be empty")
	}
	if len(cfg.Auth.Secret) < 32 {
		return errors.New("SECRET_KEY must be at least 32 bytes")
	}
	if cfg.Auth.AccessTTL <= 0 || cfg.Auth.RefreshTTL <= 0 || cfg.Auth.ActivationTTL <= 0 ||
		cfg.Auth.ResetTTL <= 0 || cfg.Auth.EmailChangeTTL <= 0 {
		return errors.New("token TTLs must be positive durations")
	}
	for name, raw := range map[string]string{
		"YOOKASSA_API_BASE":        cfg.Yookassa.APIBase,
		"YOOKASSA_OAUTH_BASE":      cfg.Yookassa.OAuthBase,
		"YOOKASSA_RETURN_URL_BASE": cfg.Yookassa.ReturnURLBase,
	} {
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL", name)
		}
	}
	if cfg.Yookassa.Timeout <= 0 || cfg.Yookassa.StateTTL <= 0 {
		return errors.New("YOOKASSA_TIMEOUT and YOOKASSA_STATE_TTL must be > 0")
	}
	if d, err := decimal.NewFromString(cfg.Yookassa.MinDonation); err != nil || !d.IsPositive() {
		return errors.New("MIN_DONATION must be a positive decimal")
	}
	if cfg.RateRPS < 0 || cfg.AuthRateRPS < 0 {
		return errors.New("RATE_RPS and AUTH_RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 || cfg.AuthRateBurst < 1 {
		return errors.New("RATE_BURST and AUTH_RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 || cfg.SearchCacheTTL <= 0 {
		return errors.New("IDEMPOTENCY_TTL and SEARCH_CACHE_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	if (cfg.Alert.TelegramToken == "") != (cfg.Alert.TelegramChatID == "") {
		return errors.New("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set together")
	}
	return nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
