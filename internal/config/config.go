package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

const defaultSecretKey = "insecure-dev-secret-change-me"

type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	Notices   NoticeConfig    `json:"notices"`
	Security  SecurityConfig  `json:"security"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	CORS      CORSConfig      `json:"cors"`
}

type ServerConfig struct {
	Host            string        `json:"host"`
	Port            string        `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	Environment     string        `json:"environment"`
}

type DatabaseConfig struct {
	Driver          string        `json:"driver"`
	Path            string        `json:"path"`
	Host            string        `json:"host"`
	Port            string        `json:"port"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	Name            string        `json:"name"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	LogLevel        string        `json:"log_level"`
}

type RedisConfig struct {
	Host         string        `json:"host"`
	Port         string        `json:"port"`
	Password     string        `json:"password"`
	DB           int           `json:"db"`
	PoolSize     int           `json:"pool_size"`
	MinIdleConns int           `json:"min_idle_conns"`
	MaxRetries   int           `json:"max_retries"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// NoticeConfig selects where one-shot notices live between a redirect and
// the page that shows them.
type NoticeConfig struct {
	Store string        `json:"store"`
	TTL   time.Duration `json:"ttl"`
}

type SecurityConfig struct {
	SecretKey    string `json:"-"`
	CookieSecure bool   `json:"cookie_secure"`
}

type RateLimitConfig struct {
	Enabled         bool          `json:"enabled"`
	RequestsPerMin  int           `json:"requests_per_minute"`
	BurstSize       int           `json:"burst_size"`
	CleanupInterval time.Duration `json:"cleanup_interval"`
}

type CORSConfig struct {
	AllowedOrigins []string `json:"allowed_origins"`
}

// LoadConfig reads settings from the environment, optionally layered over
// the file named by CONFIG_FILE. File keys use the same names as the
// environment variables.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Host:            getEnv(v, "HOST", "localhost"),
			Port:            getEnv(v, "PORT", "8080"),
			ReadTimeout:     getEnvAsDuration(v, "READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration(v, "WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvAsDuration(v, "IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration(v, "SHUTDOWN_TIMEOUT", 30*time.Second),
			Environment:     getEnv(v, "ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Driver:          strings.ToLower(getEnv(v, "DB_DRIVER", "sqlite")),
			Path:            getEnv(v, "DB_PATH", "tasks.db"),
			Host:            getEnv(v, "DB_HOST", "localhost"),
			Port:            getEnv(v, "DB_PORT", "5432"),
			User:            getEnv(v, "DB_USER", "postgres"),
			Password:        getEnv(v, "DB_PASSWORD", ""),
			Name:            getEnv(v, "DB_NAME", "task_tracker"),
			SSLMode:         getEnv(v, "DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvAsInt(v, "DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt(v, "DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvAsDuration(v, "DB_CONN_MAX_LIFETIME", time.Hour),
			ConnMaxIdleTime: getEnvAsDuration(v, "DB_CONN_MAX_IDLE_TIME", 30*time.Minute),
			LogLevel:        strings.ToLower(getEnv(v, "DB_LOG_LEVEL", "warn")),
		},
		Redis: RedisConfig{
			Host:         getEnv(v, "REDIS_HOST", "localhost"),
			Port:         getEnv(v, "REDIS_PORT", "6379"),
			Password:     getEnv(v, "REDIS_PASSWORD", ""),
			DB:           getEnvAsInt(v, "REDIS_DB", 0),
			PoolSize:     getEnvAsInt(v, "REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt(v, "REDIS_MIN_IDLE_CONNS", 5),
			MaxRetries:   getEnvAsInt(v, "REDIS_MAX_RETRIES", 3),
			DialTimeout:  getEnvAsDuration(v, "REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvAsDuration(v, "REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvAsDuration(v, "REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Notices: NoticeConfig{
			Store: strings.ToLower(getEnv(v, "NOTICE_STORE", "cookie")),
			TTL:   getEnvAsDuration(v, "NOTICE_TTL", 5*time.Minute),
		},
		Security: SecurityConfig{
			SecretKey:    getEnv(v, "SECRET_KEY", defaultSecretKey),
			CookieSecure: getEnvAsBool(v, "COOKIE_SECURE", false),
		},
		RateLimit: RateLimitConfig{
			Enabled:         getEnvAsBool(v, "RATE_LIMIT_ENABLED", true),
			RequestsPerMin:  getEnvAsInt(v, "RATE_LIMIT_RPM", 100),
			BurstSize:       getEnvAsInt(v, "RATE_LIMIT_BURST", 10),
			CleanupInterval: getEnvAsDuration(v, "RATE_LIMIT_CLEANUP", 10*time.Minute),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList(v, "CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	switch c.Notices.Store {
	case "cookie", "redis":
	default:
		return fmt.Errorf("unsupported notice store %q", c.Notices.Store)
	}

	if c.Database.Driver == "postgres" && c.Database.Password == "" && c.IsProduction() {
		return fmt.Errorf("database password is required in production")
	}

	if c.Security.SecretKey == defaultSecretKey && c.IsProduction() {
		return fmt.Errorf("SECRET_KEY must be set in production")
	}

	return nil
}

// GetDatabaseDSN returns the DSN for the configured driver: a file path for
// sqlite, a keyword/value string for postgres.
func (c *Config) GetDatabaseDSN() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.Path
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func getEnv(v *viper.Viper, key, defaultValue string) string {
	v.SetDefault(key, defaultValue)
	return v.GetString(key)
}

// getEnvAsInt, getEnvAsBool and getEnvAsDuration fall back to the default
// when the value is present but malformed.
func getEnvAsInt(v *viper.Viper, key string, defaultValue int) int {
	v.SetDefault(key, defaultValue)
	value, err := cast.ToIntE(v.Get(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(v *viper.Viper, key string, defaultValue bool) bool {
	v.SetDefault(key, defaultValue)
	value, err := cast.ToBoolE(v.Get(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(v *viper.Viper, key string, defaultValue time.Duration) time.Duration {
	v.SetDefault(key, defaultValue)
	raw := v.Get(key)

	// cast reads a bare number as nanoseconds; require a unit instead.
	if s, ok := raw.(string); ok {
		value, err := time.ParseDuration(s)
		if err != nil {
			return defaultValue
		}
		return value
	}

	value, err := cast.ToDurationE(raw)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(v *viper.Viper, key string, defaultValue []string) []string {
	value := v.GetString(key)
	if value == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
