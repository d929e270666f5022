package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Storage drivers supported by the repositories.
const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Storage  StorageConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Escrow   EscrowConfig
	Hashing  HashingConfig
	Registry RegistryConfig
	Reviews  ReviewsConfig
	Events   EventsConfig
	Admin    AdminConfig
	Receipts ReceiptsConfig
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

// StorageConfig selects the persistence backend and its migration source.
type StorageConfig struct {
	Driver         string
	MigrationsPath string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Issuer     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// EscrowConfig governs the confirmation window and the auto-release sweep.
type EscrowConfig struct {
	ConfirmationWindow time.Duration
	SweepEnabled       bool
	SweepInterval      time.Duration
}

// HashingConfig carries the process-wide salt for identifier digests.
type HashingConfig struct {
	Salt string
}

// RegistryConfig restricts student registration to an institution.
type RegistryConfig struct {
	EmailDomain string
}

// ReviewsConfig bounds review bodies and rating cache lifetime.
type ReviewsConfig struct {
	MinTextLength  int
	MaxTextLength  int
	RatingCacheTTL time.Duration
}

// EventsConfig configures the Kafka publisher and its dispatch queue.
type EventsConfig struct {
	Brokers    []string
	Topic      string
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// AdminConfig holds the bcrypt hash of the operator key used for overrides.
type AdminConfig struct {
	KeyHash string
}

// ReceiptsConfig locates the receipt archive and signs share links.
type ReceiptsConfig struct {
	Dir        string
	LinkSecret string
	LinkTTL    time.Duration
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
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

	cfg.Storage = StorageConfig{
		Driver:         strings.ToLower(v.GetString("STORAGE_DRIVER")),
		MigrationsPath: v.GetString("MIGRATIONS_PATH"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Issuer:     v.GetString("JWT_ISSUER"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Escrow = EscrowConfig{
		ConfirmationWindow: parseDuration(v.GetString("ESCROW_CONFIRMATION_WINDOW"), 24*time.Hour),
		SweepEnabled:       v.GetBool("ESCROW_SWEEP_ENABLED"),
		SweepInterval:      parseDuration(v.GetString("ESCROW_SWEEP_INTERVAL"), time.Minute),
	}

	cfg.Hashing = HashingConfig{Salt: v.GetString("HASH_SALT")}

	cfg.Registry = RegistryConfig{
		EmailDomain: strings.TrimPrefix(strings.ToLower(v.GetString("REGISTRY_EMAIL_DOMAIN")), "@"),
	}

	cfg.Reviews = ReviewsConfig{
		MinTextLength:  v.GetInt("REVIEW_MIN_LENGTH"),
		MaxTextLength:  v.GetInt("REVIEW_MAX_LENGTH"),
		RatingCacheTTL: parseDuration(v.GetString("RATING_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Events = EventsConfig{
		Brokers:    splitAndTrim(v.GetString("KAFKA_BROKERS")),
		Topic:      v.GetString("KAFKA_TOPIC"),
		Workers:    v.GetInt("EVENTS_WORKERS"),
		MaxRetries: v.GetInt("EVENTS_RETRIES"),
		RetryDelay: parseDuration(v.GetString("EVENTS_RETRY_DELAY"), time.Second),
	}

	cfg.Admin = AdminConfig{KeyHash: v.GetString("ADMIN_KEY_HASH")}

	cfg.Receipts = ReceiptsConfig{
		Dir:        v.GetString("RECEIPTS_DIR"),
		LinkSecret: v.GetString("RECEIPT_LINK_SECRET"),
		LinkTTL:    parseDuration(v.GetString("RECEIPT_LINK_TTL"), 24*time.Hour),
	}
	if cfg.Receipts.LinkSecret == "" {
		cfg.Receipts.LinkSecret = cfg.JWT.Secret
	}

	if cfg.Env == EnvProduction && cfg.Hashing.Salt == defaultHashSalt {
		return nil, errors.New("HASH_SALT must be set in production")
	}

	return cfg, nil
}

const defaultHashSalt = "badger-tutors-dev-salt"

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "badger_tutors")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("STORAGE_DRIVER", StorageDriverPostgres)
	v.SetDefault("MIGRATIONS_PATH", "file://migrations")

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "badger-tutors")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ESCROW_CONFIRMATION_WINDOW", "24h")
	v.SetDefault("ESCROW_SWEEP_ENABLED", true)
	v.SetDefault("ESCROW_SWEEP_INTERVAL", "60s")

	v.SetDefault("HASH_SALT", defaultHashSalt)
	v.SetDefault("REGISTRY_EMAIL_DOMAIN", "wisc.edu")

	v.SetDefault("REVIEW_MIN_LENGTH", 10)
	v.SetDefault("REVIEW_MAX_LENGTH", 500)
	v.SetDefault("RATING_CACHE_TTL", "10m")

	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "tutoring-session-events")
	v.SetDefault("EVENTS_WORKERS", 1)
	v.SetDefault("EVENTS_RETRIES", 3)
	v.SetDefault("EVENTS_RETRY_DELAY", "1s")

	v.SetDefault("ADMIN_KEY_HASH", "")

	v.SetDefault("RECEIPTS_DIR", "./receipts")
	v.SetDefault("RECEIPT_LINK_SECRET", "")
	v.SetDefault("RECEIPT_LINK_TTL", "24h")
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
