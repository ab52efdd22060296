package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	LogLevel  string
	Store     StoreConfig
	MongoDB   MongoDBConfig
	Postgres  PostgresConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Source    SourceConfig
	Ingestion IngestionConfig
	Archive   ArchiveConfig
	Keycloak  KeycloakConfig
	JWT       JWTConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type StoreConfig struct {
	Backend string
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type PostgresConfig struct {
	URL      string
	MaxConns int32
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	CacheTTL time.Duration
}

// Addr is host:port, or "" when Redis is not configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return r.Host + ":" + r.Port
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

type SourceConfig struct {
	BaseURL           string
	Timeout           time.Duration
	UserAgent         string
	RequestsPerSecond float64
}

type IngestionConfig struct {
	MaxPages int
	RunsKept int
}

type ArchiveConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Prefix    string
}

// Enabled reports whether rejected pages should be archived.
func (a ArchiveConfig) Enabled() bool { return a.Endpoint != "" }

type KeycloakConfig struct {
	URL      string
	Realm    string
	ClientID string
}

// Issuer is the realm issuer URL, or URL itself when no realm is set.
func (k KeycloakConfig) Issuer() string {
	if k.Realm == "" {
		return k.URL
	}
	return strings.TrimRight(k.URL, "/") + "/realms/" + k.Realm
}

type JWTConfig struct {
	Secret         string
	AccessTokenTTL time.Duration
	AllowInsecure  bool
}

// LoadConfig loads configuration from environment variables and an optional
// .env file (ENV_FILE, default ".env").
func LoadConfig() (*Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Load(envFile)

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "5001")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_ENVIRONMENT", "development")
	v.SetDefault("SERVER_READ_TIMEOUT", 30)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 120)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_BACKEND", BackendMemory)
	v.SetDefault("MONGODB_DATABASE", "quizbank")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("POSTGRES_MAX_CONNS", 10)
	v.SetDefault("SQLITE_PATH", "quizbank.db")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_CACHE_TTL", 3600)
	v.SetDefault("RATE_LIMIT_ENABLED", false)
	v.SetDefault("RATE_LIMIT_USE_REDIS", false)
	v.SetDefault("RATE_LIMIT_RPS", 5.0)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)
	v.SetDefault("SOURCE_BASE_URL", "https://jservice.io")
	v.SetDefault("SOURCE_TIMEOUT", 30)
	v.SetDefault("SOURCE_RPS", 0.0)
	v.SetDefault("INGESTION_MAX_PAGES", 0)
	v.SetDefault("INGESTION_RUNS_KEPT", 1000)
	v.SetDefault("ARCHIVE_BUCKET", "quizbank-rejected")
	v.SetDefault("ARCHIVE_PREFIX", "rejected/")
	v.SetDefault("JWT_ACCESS_TOKEN_TTL", 15)

	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("SERVER_PORT"),
			Host:         v.GetString("SERVER_HOST"),
			Environment:  v.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  time.Duration(v.GetInt("SERVER_READ_TIMEOUT")) * time.Second,
			WriteTimeout: time.Duration(v.GetInt("SERVER_WRITE_TIMEOUT")) * time.Second,
		},
		LogLevel: v.GetString("LOG_LEVEL"),
		Store:    StoreConfig{Backend: strings.ToLower(strings.TrimSpace(v.GetString("STORE_BACKEND")))},
		MongoDB: MongoDBConfig{
			URI:      v.GetString("MONGODB_URI"),
			Database: v.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Postgres: PostgresConfig{
			URL:      v.GetString("DATABASE_URL"),
			MaxConns: v.GetInt32("POSTGRES_MAX_CONNS"),
		},
		SQLite: SQLiteConfig{Path: v.GetString("SQLITE_PATH")},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			CacheTTL: time.Duration(v.GetInt("REDIS_CACHE_TTL")) * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:       v.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      v.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         v.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		Source: SourceConfig{
			BaseURL:           v.GetString("SOURCE_BASE_URL"),
			Timeout:           time.Duration(v.GetInt("SOURCE_TIMEOUT")) * time.Second,
			UserAgent:         v.GetString("SOURCE_USER_AGENT"),
			RequestsPerSecond: v.GetFloat64("SOURCE_RPS"),
		},
		Ingestion: IngestionConfig{
			MaxPages: v.GetInt("INGESTION_MAX_PAGES"),
			RunsKept: v.GetInt("INGESTION_RUNS_KEPT"),
		},
		Archive: ArchiveConfig{
			Endpoint:  v.GetString("ARCHIVE_ENDPOINT"),
			AccessKey: v.GetString("ARCHIVE_ACCESS_KEY"),
			SecretKey: v.GetString("ARCHIVE_SECRET_KEY"),
			UseSSL:    v.GetBool("ARCHIVE_USE_SSL"),
			Bucket:    v.GetString("ARCHIVE_BUCKET"),
			Prefix:    v.GetString("ARCHIVE_PREFIX"),
		},
		Keycloak: KeycloakConfig{
			URL:      v.GetString("KEYCLOAK_URL"),
			Realm:    v.GetString("KEYCLOAK_REALM"),
			ClientID: v.GetString("KEYCLOAK_CLIENT_ID"),
		},
		JWT: JWTConfig{
			Secret:         v.GetString("JWT_SECRET"),
			AccessTokenTTL: time.Duration(v.GetInt("JWT_ACCESS_TOKEN_TTL")) * time.Minute,
			AllowInsecure:  strings.EqualFold(strings.TrimSpace(v.GetString("ALLOW_INSECURE_TOKEN")), "true"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail later at startup.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendSQLite:
	case BackendMongo:
		if c.MongoDB.URI == "" {
			return fmt.Errorf("MONGODB_URI is required for store backend %q", c.Store.Backend)
		}
	case BackendPostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for store backend %q", c.Store.Backend)
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.SQLite.Path == "" && c.Store.Backend == BackendSQLite {
		return fmt.Errorf("SQLITE_PATH is required for store backend %q", c.Store.Backend)
	}
	if c.Ingestion.MaxPages < 0 {
		return fmt.Errorf("INGESTION_MAX_PAGES must not be negative")
	}
	if c.Source.RequestsPerSecond < 0 {
		return fmt.Errorf("SOURCE_RPS must not be negative")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive when rate limiting is enabled")
	}
	return nil
}
