package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Notification backends for the change monitor
const (
	NotifyAuto     = "auto"
	NotifyPostgres = "postgres"
	NotifyRedis    = "redis"
	NotifyNone     = "none"
)

// SecurityConfig represents security configuration
type SecurityConfig struct {
	EnableRateLimit       bool
	RateLimitPerSecond    float64
	RateLimitBurst        int
	EnableCORS            bool
	AllowedOrigins        []string
	EnableSecurityHeaders bool
	MaxRequestSize        int64
	EnableRequestID       bool
}

// ClusteringConfig holds the merge thresholds of the cluster builder
type ClusteringConfig struct {
	SameSourceThreshold  float64
	CrossSourceThreshold float64
}

// MonitorConfig controls the change listener and the scheduled jobs
type MonitorConfig struct {
	Backend              string
	Topic                string
	ListenWait           time.Duration
	ReconnectBackoff     time.Duration
	SafetyCheckInterval  time.Duration
	CacheStatsInterval   time.Duration
	InstallNotifyTrigger bool
}

// RedisConfig is used when notifications arrive over Redis pub/sub
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type Config struct {
	Port            int
	DatabaseURL     string
	DataDir         string
	ArticleWindow   int
	LogLevel        string
	LogFormat       string
	EnableSwagger   bool
	ShutdownTimeout time.Duration
	Clustering      ClusteringConfig
	Monitor         MonitorConfig
	Redis           RedisConfig
	Security        SecurityConfig
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present; real environment variables
// take precedence over it.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:            getEnvAsInt("PORT", 8080),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		DataDir:         getEnv("DATA_DIR", "./data"),
		ArticleWindow:   getEnvAsInt("ARTICLE_WINDOW", 300),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "console"),
		EnableSwagger:   getEnvAsBool("ENABLE_SWAGGER", true),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		Clustering: ClusteringConfig{
			SameSourceThreshold:  getEnvAsFloat("SAME_SOURCE_THRESHOLD", 0.8),
			CrossSourceThreshold: getEnvAsFloat("CROSS_SOURCE_THRESHOLD", 0.35),
		},
		Monitor:  loadMonitorConfig(),
		Redis:    loadRedisConfig(),
		Security: loadSecurityConfig(),
	}
}

func loadMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Backend:              strings.ToLower(getEnv("NOTIFY_BACKEND", NotifyAuto)),
		Topic:                getEnv("NOTIFY_TOPIC", "news_changed"),
		ListenWait:           getEnvAsDuration("LISTEN_WAIT", 30*time.Second),
		ReconnectBackoff:     getEnvAsDuration("LISTEN_RECONNECT_BACKOFF", 5*time.Second),
		SafetyCheckInterval:  getEnvAsDuration("SAFETY_CHECK_INTERVAL", 5*time.Minute),
		CacheStatsInterval:   getEnvAsDuration("CACHE_STATS_INTERVAL", 30*time.Minute),
		InstallNotifyTrigger: getEnvAsBool("INSTALL_NOTIFY_TRIGGER", false),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvAsInt("REDIS_DB", 0),
	}
}

func loadSecurityConfig() SecurityConfig {
	return SecurityConfig{
		EnableRateLimit:       getEnvAsBool("ENABLE_RATE_LIMIT", true),
		RateLimitPerSecond:    getEnvAsFloat("RATE_LIMIT_PER_SECOND", 10.0),
		RateLimitBurst:        getEnvAsInt("RATE_LIMIT_BURST", 20),
		EnableCORS:            getEnvAsBool("ENABLE_CORS", true),
		AllowedOrigins:        getEnvAsStringSlice("ALLOWED_ORIGINS", []string{"*"}),
		EnableSecurityHeaders: getEnvAsBool("ENABLE_SECURITY_HEADERS", true),
		MaxRequestSize:        getEnvAsInt64("MAX_REQUEST_SIZE", 1<<20), // 1MB
		EnableRequestID:       getEnvAsBool("ENABLE_REQUEST_ID", true),
	}
}

// NotifyBackend resolves "auto" to the backend matching the database:
// PostgreSQL deployments listen on the database itself, anything else runs
// on the safety check alone unless Redis is chosen explicitly.
func (c *Config) NotifyBackend() string {
	if c.Monitor.Backend != NotifyAuto {
		return c.Monitor.Backend
	}
	if strings.HasPrefix(c.DatabaseURL, "postgres://") || strings.HasPrefix(c.DatabaseURL, "postgresql://") {
		return NotifyPostgres
	}
	return NotifyNone
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	if c.ArticleWindow <= 0 {
		errs = append(errs, fmt.Errorf("ARTICLE_WINDOW must be positive, got %d", c.ArticleWindow))
	}
	if t := c.Clustering.SameSourceThreshold; t <= 0 || t > 1 {
		errs = append(errs, fmt.Errorf("SAME_SOURCE_THRESHOLD must be in (0, 1], got %v", t))
	}
	if t := c.Clustering.CrossSourceThreshold; t <= 0 || t > 1 {
		errs = append(errs, fmt.Errorf("CROSS_SOURCE_THRESHOLD must be in (0, 1], got %v", t))
	}

	switch c.Monitor.Backend {
	case NotifyAuto, NotifyPostgres, NotifyRedis, NotifyNone:
	default:
		errs = append(errs, fmt.Errorf("NOTIFY_BACKEND must be one of auto, postgres, redis, none; got %q", c.Monitor.Backend))
	}
	if c.NotifyBackend() == NotifyPostgres && !strings.HasPrefix(c.DatabaseURL, "postgres") {
		errs = append(errs, errors.New("NOTIFY_BACKEND=postgres requires a postgres DATABASE_URL"))
	}
	if c.Monitor.ListenWait <= 0 {
		errs = append(errs, errors.New("LISTEN_WAIT must be positive"))
	}
	if c.Monitor.ReconnectBackoff <= 0 {
		errs = append(errs, errors.New("LISTEN_RECONNECT_BACKOFF must be positive"))
	}
	if c.Monitor.SafetyCheckInterval < time.Second {
		errs = append(errs, errors.New("SAFETY_CHECK_INTERVAL must be at least 1s"))
	}
	if c.Monitor.CacheStatsInterval < time.Second {
		errs = append(errs, errors.New("CACHE_STATS_INTERVAL must be at least 1s"))
	}

	return errors.Join(errs...)
}

func getEnv(key string, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.ParseInt(val, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if floatVal, err := strconv.ParseFloat(val, 64); err == nil {
			return floatVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if boolVal, err := strconv.ParseBool(val); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsStringSlice(key string, defaultVal []string) []string {
	if val := os.Getenv(key); val != "" {
		parts := strings.Split(val, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultVal
}
