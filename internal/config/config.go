package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreFile     = "file"
	StoreSQLite   = "sqlite"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	HashLegacy = "legacy"
	HashBcrypt = "bcrypt"
)

type Config struct {
	ServerPort              string
	ServerReadHeaderTimeout time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	RequestTimeout          time.Duration
	LogLevel                string

	TokenSecret  string
	CookieSecure bool
	CORSOrigins  []string

	RateLimitRPM     int
	AuthRateLimitRPM int

	DurableStore string
	SessionStore string
	StateDir     string
	SQLitePath   string
	RedisURL     string
	DatabaseURL  string
	DBMaxConns   int32
	DBMinConns   int32

	LockoutThreshold  int
	LockoutWindow     time.Duration
	LockoutDuration   time.Duration
	IdleTimeout       time.Duration
	IdleCheckInterval time.Duration
	ActivityThrottle  time.Duration
	RememberTTL       time.Duration

	PasswordHashScheme string
	BcryptCost         int

	CatalogSource   string
	CatalogTimeout  time.Duration
	CatalogCacheTTL time.Duration

	FlagsFile string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:              getEnv("SERVER_PORT", "8080"),
		ServerReadHeaderTimeout: getDuration("SERVER_READ_HEADER_TIMEOUT", 15*time.Second),
		ServerWriteTimeout:      getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:       getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:          getDuration("REQUEST_TIMEOUT", 30*time.Second),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		TokenSecret:             strings.TrimSpace(os.Getenv("TOKEN_SECRET")),
		CookieSecure:            getBool("COOKIE_SECURE", false),
		CORSOrigins:             splitCSV(getEnv("CORS_ORIGINS", "*")),
		RateLimitRPM:            getInt("RATE_LIMIT_RPM", 100),
		AuthRateLimitRPM:        getInt("AUTH_RATE_LIMIT_RPM", 20),
		DurableStore:            strings.ToLower(getEnv("DURABLE_STORE", StoreFile)),
		SessionStore:            strings.ToLower(getEnv("SESSION_STORE", StoreMemory)),
		StateDir:                getEnv("STATE_DIR", "./state"),
		SQLitePath:              getEnv("SQLITE_PATH", "./state/portal.db"),
		RedisURL:                getEnv("REDIS_URL", "redis://localhost:6379/0"),
		DatabaseURL:             strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:              int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:              int32(getInt("DB_MIN_CONNS", 1)),
		LockoutThreshold:        getInt("LOCKOUT_THRESHOLD", 5),
		LockoutWindow:           getDuration("LOCKOUT_WINDOW", 15*time.Minute),
		LockoutDuration:         getDuration("LOCKOUT_DURATION", 5*time.Minute),
		IdleTimeout:             getDuration("IDLE_TIMEOUT", 15*time.Minute),
		IdleCheckInterval:       getDuration("IDLE_CHECK_INTERVAL", 60*time.Second),
		ActivityThrottle:        getDuration("ACTIVITY_THROTTLE", time.Second),
		RememberTTL:             getDuration("REMEMBER_TTL", 720*time.Hour),
		PasswordHashScheme:      strings.ToLower(getEnv("PASSWORD_HASH_SCHEME", HashLegacy)),
		BcryptCost:              getInt("BCRYPT_COST", 12),
		CatalogSource:           getEnv("CATALOG_SOURCE", "./assets/data/courses.json"),
		CatalogTimeout:          getDuration("CATALOG_TIMEOUT", 4*time.Second),
		CatalogCacheTTL:         getDuration("CATALOG_CACHE_TTL", 6*time.Hour),
		FlagsFile:               getEnv("FLAGS_FILE", "./state/flags.yaml"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.TokenSecret) == "" {
		return fmt.Errorf("TOKEN_SECRET is required")
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	switch c.DurableStore {
	case StoreFile:
		if strings.TrimSpace(c.StateDir) == "" {
			return fmt.Errorf("STATE_DIR cannot be empty")
		}
	case StoreSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("SQLITE_PATH cannot be empty")
		}
	case StoreRedis:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when DURABLE_STORE=postgres")
		}
	default:
		return fmt.Errorf("DURABLE_STORE must be one of file, sqlite, redis, postgres")
	}

	if c.SessionStore != StoreMemory && c.SessionStore != StoreRedis {
		return fmt.Errorf("SESSION_STORE must be memory or redis")
	}

	if c.LockoutThreshold <= 0 {
		return fmt.Errorf("LOCKOUT_THRESHOLD must be positive")
	}

	if c.LockoutWindow <= 0 || c.LockoutDuration <= 0 {
		return fmt.Errorf("LOCKOUT_WINDOW and LOCKOUT_DURATION must be positive")
	}

	if c.IdleTimeout <= 0 || c.IdleCheckInterval <= 0 {
		return fmt.Errorf("IDLE_TIMEOUT and IDLE_CHECK_INTERVAL must be positive")
	}

	if c.ActivityThrottle < 0 {
		return fmt.Errorf("ACTIVITY_THROTTLE cannot be negative")
	}

	if c.PasswordHashScheme != HashLegacy && c.PasswordHashScheme != HashBcrypt {
		return fmt.Errorf("PASSWORD_HASH_SCHEME must be legacy or bcrypt")
	}

	if strings.TrimSpace(c.CatalogSource) == "" {
		return fmt.Errorf("CATALOG_SOURCE cannot be empty")
	}

	if c.CatalogTimeout <= 0 || c.CatalogCacheTTL <= 0 {
		return fmt.Errorf("CATALOG_TIMEOUT and CATALOG_CACHE_TTL must be positive")
	}

	return nil
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
