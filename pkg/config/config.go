package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Storage   StorageConfig
	Dashboard DashboardConfig
	Payments  PaymentsConfig
	Webhook   WebhookConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
	Issuer            string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StorageConfig controls uploaded file handling (payment proofs, course and
// recipe images, certificate PDFs).
type StorageConfig struct {
	BaseDir          string
	SignedURLSecret  string
	SignedURLTTL     time.Duration
	MaxUploadBytes   int64
	AllowedImageExts []string
}

// DashboardConfig governs admin dashboard caching.
type DashboardConfig struct {
	CacheTTL time.Duration
}

// PaymentsConfig holds payment submission settings.
type PaymentsConfig struct {
	BkashNumber     string
	AvailabilityTTL time.Duration
	ReferencePrefix string
	ProofSubdir     string
	MaxProofSize    int64
}

// WebhookConfig tunes the payment webhook intake queue.
type WebhookConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
		Issuer:            v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Storage = StorageConfig{
		BaseDir:          v.GetString("STORAGE_DIR"),
		SignedURLSecret:  v.GetString("STORAGE_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("STORAGE_SIGNED_URL_TTL"), 30*time.Minute),
		MaxUploadBytes:   v.GetInt64("STORAGE_MAX_UPLOAD_BYTES"),
		AllowedImageExts: splitAndTrim(v.GetString("STORAGE_ALLOWED_IMAGE_EXTS")),
	}

	cfg.Dashboard = DashboardConfig{
		CacheTTL: parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Payments = PaymentsConfig{
		BkashNumber:     v.GetString("PAYMENTS_BKASH_NUMBER"),
		AvailabilityTTL: parseDuration(v.GetString("AVAILABILITY_CACHE_TTL"), 30*time.Second),
		ReferencePrefix: v.GetString("PAYMENTS_REFERENCE_PREFIX"),
		ProofSubdir:     v.GetString("PAYMENTS_PROOF_SUBDIR"),
		MaxProofSize:    v.GetInt64("PAYMENTS_MAX_PROOF_SIZE"),
	}

	cfg.Webhook = WebhookConfig{
		Workers:    v.GetInt("WEBHOOK_WORKERS"),
		BufferSize: v.GetInt("WEBHOOK_BUFFER_SIZE"),
		MaxRetries: v.GetInt("WEBHOOK_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("WEBHOOK_RETRY_DELAY"), time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "culinary_school")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret_change_me")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")
	v.SetDefault("JWT_ISSUER", "culinary-school-api")

	v.SetDefault("ALLOWED_ORIGINS", "")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STORAGE_DIR", "./uploads")
	v.SetDefault("STORAGE_SIGNED_URL_SECRET", "dev_storage_secret")
	v.SetDefault("STORAGE_SIGNED_URL_TTL", "30m")
	v.SetDefault("STORAGE_MAX_UPLOAD_BYTES", 2*1024*1024)
	v.SetDefault("STORAGE_ALLOWED_IMAGE_EXTS", ".jpg,.jpeg,.png")

	v.SetDefault("DASHBOARD_CACHE_TTL", "5m")

	v.SetDefault("PAYMENTS_BKASH_NUMBER", "01XXXXXXXXX")
	v.SetDefault("AVAILABILITY_CACHE_TTL", "30s")
	v.SetDefault("PAYMENTS_REFERENCE_PREFIX", "COOK")
	v.SetDefault("PAYMENTS_PROOF_SUBDIR", "payments/proofs")
	v.SetDefault("PAYMENTS_MAX_PROOF_SIZE", 5*1024*1024)

	v.SetDefault("WEBHOOK_WORKERS", 1)
	v.SetDefault("WEBHOOK_BUFFER_SIZE", 16)
	v.SetDefault("WEBHOOK_MAX_RETRIES", 3)
	v.SetDefault("WEBHOOK_RETRY_DELAY", "1s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
