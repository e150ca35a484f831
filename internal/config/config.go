package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// insecureDefaults must never reach production
var insecureDefaults = map[string]bool{
	"your-secret-key-change-in-production": true,
	"changeme":                             true,
	"":                                     true,
}

type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Backend  BackendConfig
	Redis    RedisConfig
	Renewal  RenewalConfig
}

type AppConfig struct {
	Environment string
	LogLevel    string
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	Schema   string
	SSLMode  string
}

type JWTConfig struct {
	SecretKey string
}

// BackendConfig points at the Solifin REST API the service fronts.
type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	RateTTL  time.Duration
}

type RenewalConfig struct {
	DefaultCurrency string
	LogRetention    time.Duration
	PurgeInterval   time.Duration
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Environment: v.GetString("APP_ENV"),
			LogLevel:    v.GetString("LOG_LEVEL"),
		},
		Server: ServerConfig{
			Port: v.GetString("SERVER_PORT"),
			Mode: v.GetString("GIN_MODE"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			Schema:   v.GetString("DB_SCHEMA"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		JWT: JWTConfig{
			SecretKey: v.GetString("JWT_SECRET_KEY"),
		},
		Backend: BackendConfig{
			BaseURL: strings.TrimRight(v.GetString("SOLIFIN_API_URL"), "/"),
			Timeout: v.GetDuration("SOLIFIN_API_TIMEOUT"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			RateTTL:  v.GetDuration("REDIS_RATE_TTL"),
		},
		Renewal: RenewalConfig{
			DefaultCurrency: strings.ToUpper(v.GetString("RENEWAL_DEFAULT_CURRENCY")),
			LogRetention:    v.GetDuration("RENEWAL_LOG_RETENTION"),
			PurgeInterval:   v.GetDuration("RENEWAL_PURGE_INTERVAL"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("GIN_MODE", "release")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "solifin")
	v.SetDefault("DB_PASSWORD", "solifin")
	v.SetDefault("DB_NAME", "solifin")
	v.SetDefault("DB_SCHEMA", "member")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("SOLIFIN_API_URL", "http://localhost:8000")
	v.SetDefault("SOLIFIN_API_TIMEOUT", 30*time.Second)
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_RATE_TTL", 10*time.Minute)
	v.SetDefault("RENEWAL_DEFAULT_CURRENCY", "USD")
	v.SetDefault("RENEWAL_LOG_RETENTION", 90*24*time.Hour)
	v.SetDefault("RENEWAL_PURGE_INTERVAL", time.Hour)
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// Validate checks values that would make the service misbehave at runtime.
// Secrets are only enforced in production.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("SOLIFIN_API_URL is required")
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("SOLIFIN_API_TIMEOUT must be positive")
	}
	if len(c.Renewal.DefaultCurrency) != 3 {
		return fmt.Errorf("RENEWAL_DEFAULT_CURRENCY must be an ISO 4217 code, got %q", c.Renewal.DefaultCurrency)
	}

	if c.IsProduction() {
		if insecureDefaults[c.JWT.SecretKey] {
			return fmt.Errorf("JWT_SECRET_KEY must be set to a secure value (current value is insecure or empty)")
		}
		if len(c.JWT.SecretKey) < 32 {
			return fmt.Errorf("JWT_SECRET_KEY must be at least 32 characters long")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + c.Port + "/" + c.DBName + "?sslmode=" + c.SSLMode
}

// Addr returns host:port, or "" when Redis is not configured.
func (c *RedisConfig) Addr() string {
	if c.Host == "" {
		return ""
	}
	return c.Host + ":" + c.Port
}
