// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const defaultJWTSecret = "dreambook-dev-secret-change-in-production"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"`
	LogLevel       string `mapstructure:"LOG_LEVEL"`
	BaseURL        string `mapstructure:"BASE_URL"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	FeatureFlags   string `mapstructure:"FEATURE_FLAGS"`
	// ProxyHeader carries the client address; it is read only from TrustedProxies.
	ProxyHeader    string `mapstructure:"PROXY_HEADER"`
	TrustedProxies string `mapstructure:"TRUSTED_PROXIES"`

	DBDriver        string `mapstructure:"DB_DRIVER"`
	DBPath          string `mapstructure:"DB_PATH"`
	DBHost          string `mapstructure:"DB_HOST"`
	DBPort          string `mapstructure:"DB_PORT"`
	DBUser          string `mapstructure:"DB_USER"`
	DBPassword      string `mapstructure:"DB_PASSWORD"`
	DBName          string `mapstructure:"DB_NAME"`
	DBSSLMode       string `mapstructure:"DB_SSLMODE"`
	DBBusyTimeoutMS int    `mapstructure:"DB_BUSY_TIMEOUT_MS"`
	DBSchemaMode    string `mapstructure:"DB_SCHEMA_MODE"`

	RedisURL       string `mapstructure:"REDIS_URL"`
	RateLimitStore string `mapstructure:"RATE_LIMIT_STORE"`
	StatsCacheTTL  int    `mapstructure:"STATS_CACHE_TTL"`

	JWTSecret   string `mapstructure:"JWT_SECRET"`
	AdminSecret string `mapstructure:"ADMIN_SECRET"`

	ResendAPIKey   string `mapstructure:"RESEND_API_KEY"`
	EmailFrom      string `mapstructure:"EMAIL_FROM"`
	OwnerEmail     string `mapstructure:"OWNER_EMAIL"`
	LightningLNURL string `mapstructure:"LIGHTNING_LNURL"`

	TracingEnabled     bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter    string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint       string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSampleRatio float64 `mapstructure:"TRACING_SAMPLE_RATIO"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AddConfigPath(".")
	v.AddConfigPath("..")
	v.AddConfigPath("../..")
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AutomaticEnv()

	// The base file is optional.
	_ = v.ReadInConfig()

	env := v.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		v.SetConfigName("config." + env)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("BASE_URL", "https://dreambook4bots.com")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000")
	v.SetDefault("FEATURE_FLAGS", "live_feed=on,donations=on")
	v.SetDefault("PROXY_HEADER", "X-Forwarded-For")
	v.SetDefault("TRUSTED_PROXIES", "")

	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_PATH", "data/dreambook.db")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "dreambook")
	v.SetDefault("DB_PASSWORD", "password")
	v.SetDefault("DB_NAME", "dreambook")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_BUSY_TIMEOUT_MS", 5000)
	v.SetDefault("DB_SCHEMA_MODE", "")

	v.SetDefault("REDIS_URL", "localhost:6379")
	v.SetDefault("RATE_LIMIT_STORE", "memory")
	v.SetDefault("STATS_CACHE_TTL", 60)

	v.SetDefault("JWT_SECRET", defaultJWTSecret)
	v.SetDefault("ADMIN_SECRET", "")

	v.SetDefault("RESEND_API_KEY", "")
	v.SetDefault("EMAIL_FROM", "Dreambook <noreply@dreambook4bots.com>")
	v.SetDefault("OWNER_EMAIL", "")
	v.SetDefault("LIGHTNING_LNURL", "")

	v.SetDefault("TRACING_ENABLED", false)
	v.SetDefault("TRACING_EXPORTER", "stdout")
	v.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	v.SetDefault("TRACING_SAMPLE_RATIO", 1.0)
}

// IsProduction reports whether the app runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// BusyTimeout is the lock-wait bound applied to the store.
func (c *Config) BusyTimeout() time.Duration {
	if c.DBBusyTimeoutMS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.DBBusyTimeoutMS) * time.Millisecond
}

// StatsTTL is the cache lifetime of aggregate endpoints.
func (c *Config) StatsTTL() time.Duration {
	if c.StatsCacheTTL <= 0 {
		return time.Minute
	}
	return time.Duration(c.StatsCacheTTL) * time.Second
}

// TrustedProxyList splits TRUSTED_PROXIES into addresses and CIDR ranges.
func (c *Config) TrustedProxyList() []string {
	var out []string
	for _, p := range strings.Split(c.TrustedProxies, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// PublicURL joins BaseURL and path.
func (c *Config) PublicURL(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.DBDriver)
	}
	if c.DBDriver == "sqlite" && c.DBPath == "" {
		return errors.New("DB_PATH is required for the sqlite driver")
	}

	switch c.RateLimitStore {
	case "", "memory", "redis":
	default:
		return fmt.Errorf("RATE_LIMIT_STORE must be memory or redis, got %q", c.RateLimitStore)
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if len(c.AdminSecret) < 16 {
			return errors.New("ADMIN_SECRET must be at least 16 characters in production")
		}
		if c.DBDriver == "postgres" && (c.DBPassword == "password" || c.DBPassword == "") {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
		if c.ResendAPIKey == "" {
			log.Println("WARNING: RESEND_API_KEY is empty; claim verification emails will only be logged.")
		}
	} else if c.AdminSecret == "" {
		log.Println("WARNING: ADMIN_SECRET is empty; admin endpoints are disabled.")
	}

	return nil
}
