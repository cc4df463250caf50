package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	LogLevel    string
	Port        string
	DatabaseURL string
	DBMaxConns  int
	JWTSecret   string

	StoragePath    string
	StorageBaseURL string

	ReplicateAPIToken     string
	ReplicateBaseURL      string
	ReplicatePollInterval time.Duration
	ReplicateTimeout      time.Duration
	ReplicateWaitSeconds  int
	ModelConfigPath       string

	GeoIPDBPath        string
	CORSAllowedOrigins []string

	HTTPReadTimeout  time.Duration
	// HTTPWriteTimeout covers in-request generation, up to four attempts of
	// two minutes each.
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	MaxUploadBytes   int64
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:                getEnv("APP_ENV", "development"),
		LogLevel:              os.Getenv("LOG_LEVEL"),
		Port:                  port,
		DatabaseURL:           strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:            getEnvInt("DB_MAX_CONNS", 10),
		JWTSecret:             os.Getenv("JWT_SECRET"),
		StoragePath:           getEnv("STORAGE_PATH", "./data/storage"),
		StorageBaseURL:        strings.TrimRight(getEnv("STORAGE_BASE_URL", "http://localhost:"+port+"/v1/images"), "/"),
		ReplicateAPIToken:     strings.TrimSpace(os.Getenv("REPLICATE_API_TOKEN")),
		ReplicateBaseURL:      getEnv("REPLICATE_BASE_URL", "https://api.replicate.com/v1"),
		ReplicatePollInterval: time.Millisecond * time.Duration(getEnvInt("REPLICATE_POLL_INTERVAL_MS", 1000)),
		ReplicateTimeout:      time.Second * time.Duration(getEnvInt("REPLICATE_TIMEOUT_SECONDS", 120)),
		ReplicateWaitSeconds:  getEnvInt("REPLICATE_WAIT_SECONDS", 60),
		ModelConfigPath:       os.Getenv("MODEL_CONFIG_PATH"),
		GeoIPDBPath:           os.Getenv("GEOIP_DB_PATH"),
		CORSAllowedOrigins:    splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		HTTPReadTimeout:       time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 60)),
		HTTPWriteTimeout:      time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 600)),
		HTTPIdleTimeout:       time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:       getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		MaxUploadBytes:        int64(getEnvInt("MAX_UPLOAD_MB", 121)) << 20,
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.ReplicatePollInterval <= 0 || cfg.ReplicateTimeout <= 0 {
		return nil, fmt.Errorf("replicate poll interval and timeout must be positive")
	}

	return cfg, nil
}

// UsesDatabase reports whether a PostgreSQL store is configured.
func (c *Config) UsesDatabase() bool {
	return c.DatabaseURL != ""
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
