package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds all application configuration in a structured way.
type Config struct {
	App        AppConfig
	Paths      PathsConfig
	Database   DatabaseConfig
	Telegram   TelegramConfig
	Cache      CacheConfig
	Hydration  HydrationConfig
	Deletion   DeletionConfig
	WorkerPool WorkerPoolConfig
}

type AppConfig struct {
	Version            string
	Port               string
	Debug              bool
	Environment        string
	BasicAuth          []string
	BasePath           string
	TrustedProxies     []string
	CorsAllowedOrigins []string
	// ServerID identifies this instance in cross-instance websocket broadcasts.
	ServerID string
	// EncryptionSecret seals the stored session and token when set.
	EncryptionSecret string
}

type PathsConfig struct {
	BaseDir  string
	Storages string
}

// DatabaseConfig selects the persistent key-value backend.
// Backend is one of memory, valkey, gorm or sql. Driver applies to gorm and sql.
type DatabaseConfig struct {
	Backend         string
	Driver          string
	Host            string
	Port            int
	User            string
	Password        string
	Name            string // File path for SQLite, DB Name for Postgres
	ValkeyAddress   string
	ValkeyPassword  string
	ValkeyDB        int
	ValkeyKeyPrefix string
}

type TelegramConfig struct {
	Gateway     string // http or mtproto
	APIBaseURL  string
	AnonKey     string
	AppID       int
	AppHash     string
	Phone       string
	SessionFile string
	MaxRetries  int
}

type CacheConfig struct {
	MaxSize         int
	MaxAge          time.Duration
	MemorySize      int
	EvictionPercent int
	RecheckInterval time.Duration
}

type HydrationConfig struct {
	BatchSize   int
	CallTimeout time.Duration
}

type DeletionConfig struct {
	FetchLimit int
	ChunkSize  int
}

type WorkerPoolConfig struct {
	Size      int
	QueueSize int
}

// Global provides access to the loaded configuration globally
var Global *Config

// LoadConfig loads configuration from Environment Variables or defaults.
func LoadConfig() (*Config, error) {
	baseDir := getEnv("APP_BASE_DIR", "storages")

	debug := getEnvBool("APP_DEBUG", false) || getEnvBool("DEBUG", false)

	var basicAuth []string
	if v := os.Getenv("APP_BASIC_AUTH"); v != "" {
		basicAuth = strings.Split(v, ",")
	}

	corsOrigins := []string{"http://localhost:3000", "http://localhost:8081"}
	if v := os.Getenv("APP_CORS_ALLOWED_ORIGINS"); v != "" {
		corsOrigins = strings.Split(v, ",")
	}

	appCfg := AppConfig{
		Version:            "v1.0.0",
		Port:               getEnv("APP_PORT", "3000"),
		Debug:              debug,
		Environment:        getEnv("APP_ENV", "development"),
		BasicAuth:          basicAuth,
		BasePath:           getEnv("APP_BASE_PATH", ""),
		CorsAllowedOrigins: corsOrigins,
		ServerID:           getEnv("APP_SERVER_ID", ""),
		EncryptionSecret:   getEnv("APP_ENCRYPTION_SECRET", ""),
	}
	if v := os.Getenv("APP_TRUSTED_PROXIES"); v != "" {
		appCfg.TrustedProxies = strings.Split(v, ",")
	}

	pathsCfg := PathsConfig{
		BaseDir:  baseDir,
		Storages: baseDir,
	}

	dbCfg := DatabaseConfig{
		Backend:         getEnv("STORAGE_BACKEND", "gorm"),
		Driver:          getEnv("DB_DRIVER", "sqlite"),
		Name:            getEnv("DB_NAME", filepath.Join(pathsCfg.Storages, "kv.db")),
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "postgres"),
		Password:        getEnv("DB_PASSWORD", ""),
		ValkeyAddress:   getEnv("VALKEY_ADDRESS", "localhost:6379"),
		ValkeyPassword:  getEnv("VALKEY_PASSWORD", ""),
		ValkeyDB:        getEnvInt("VALKEY_DB", 0),
		ValkeyKeyPrefix: getEnv("VALKEY_KEY_PREFIX", "tgclean:"),
	}

	tgCfg := TelegramConfig{
		Gateway:     getEnv("TELEGRAM_GATEWAY", "http"),
		APIBaseURL:  getEnv("TELEGRAM_API_BASE_URL", "http://localhost:54321/functions/v1"),
		AnonKey:     getEnv("TELEGRAM_ANON_KEY", ""),
		AppID:       getEnvInt("TELEGRAM_APP_ID", 0),
		AppHash:     getEnv("TELEGRAM_APP_HASH", ""),
		Phone:       getEnv("TELEGRAM_PHONE", ""),
		SessionFile: getEnv("TELEGRAM_SESSION_FILE", ""),
		MaxRetries:  getEnvInt("TELEGRAM_MAX_RETRIES", 3),
	}

	cacheCfg := CacheConfig{
		MaxSize:         getEnvInt("AVATAR_CACHE_MAX_SIZE", 200),
		MaxAge:          getEnvDuration("AVATAR_CACHE_MAX_AGE", 30*24*time.Hour),
		MemorySize:      getEnvInt("AVATAR_CACHE_MEMORY_SIZE", 50),
		EvictionPercent: getEnvInt("AVATAR_CACHE_EVICTION_PERCENT", 20),
		RecheckInterval: getEnvDuration("AVATAR_CACHE_RECHECK_INTERVAL", 24*time.Hour),
	}

	cfg := &Config{
		App:       appCfg,
		Paths:     pathsCfg,
		Database:  dbCfg,
		Telegram:  tgCfg,
		Cache:     cacheCfg,
		Hydration: HydrationConfig{BatchSize: getEnvInt("HYDRATION_BATCH_SIZE", 15), CallTimeout: getEnvDuration("HYDRATION_CALL_TIMEOUT", 30*time.Second)},
		Deletion:  DeletionConfig{FetchLimit: getEnvInt("DELETION_FETCH_LIMIT", 100), ChunkSize: getEnvInt("DELETION_CHUNK_SIZE", 100)},
		WorkerPool: WorkerPoolConfig{
			Size:      getEnvInt("CHAT_WORKER_POOL_SIZE", 8),
			QueueSize: getEnvInt("CHAT_WORKER_QUEUE_SIZE", 256),
		},
	}

	Global = cfg
	return cfg, nil
}
