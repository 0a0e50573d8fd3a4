// Package config loads the service configuration from a YAML file, an
// optional .env file and environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file location relative to the repository root.
const DefaultPath = "internal/company/config/config.yaml"

// Config struct for YAML configuration. Every key can be overridden by an
// environment variable of the same name.
type Config struct {
	GRPCPort int `yaml:"GRPC_PORT"`
	HTTPPort int `yaml:"HTTP_PORT"`

	DBDriver       string `yaml:"DB_DRIVER"`
	DBHost         string `yaml:"DB_HOST"`
	DBPort         int    `yaml:"DB_PORT"`
	DBUser         string `yaml:"DB_USER"`
	DBPassword     string `yaml:"DB_PASSWORD"`
	DBName         string `yaml:"DB_NAME"`
	DBSSLMode      string `yaml:"DB_SSLMODE"`
	DBPath         string `yaml:"DB_PATH"`
	DBMaxOpenConns int    `yaml:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns int    `yaml:"DB_MAX_IDLE_CONNS"`

	KafkaBrokers  []string `yaml:"KAFKA_BROKERS"`
	Topic         string   `yaml:"TOPIC"`
	ConsumerGroup string   `yaml:"CONSUMER_GROUP"`

	JWTSecret       string        `yaml:"JWT_SECRET"`
	AccessTokenTTL  time.Duration `yaml:"ACCESS_TOKEN_TTL"`
	RefreshTokenTTL time.Duration `yaml:"REFRESH_TOKEN_TTL"`

	RedisURL        string        `yaml:"REDIS_URL"`
	ListingCacheTTL time.Duration `yaml:"LISTING_CACHE_TTL"`

	S3Bucket        string `yaml:"S3_BUCKET"`
	S3Region        string `yaml:"S3_REGION"`
	S3Endpoint      string `yaml:"S3_ENDPOINT"`
	S3PublicBaseURL string `yaml:"S3_PUBLIC_BASE_URL"`
	S3AccessKey     string `yaml:"S3_ACCESS_KEY"`
	S3SecretKey     string `yaml:"S3_SECRET_KEY"`

	StripeSecretKey string `yaml:"STRIPE_SECRET_KEY"`
	StripeClientID  string `yaml:"STRIPE_CLIENT_ID"`

	GoogleClientID     string `yaml:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `yaml:"GOOGLE_CLIENT_SECRET"`
	GoogleTokenURL     string `yaml:"GOOGLE_TOKEN_URL"`
	GA4AdminURL        string `yaml:"GA4_ADMIN_URL"`
	GA4DataURL         string `yaml:"GA4_DATA_URL"`

	OAuthRedirectURI string `yaml:"OAUTH_REDIRECT_URI"`

	ReconcileStepTimeout time.Duration `yaml:"RECONCILE_STEP_TIMEOUT"`
	MetricsSyncTimeout   time.Duration `yaml:"METRICS_SYNC_TIMEOUT"`
	OAuthStateTTL        time.Duration `yaml:"OAUTH_STATE_TTL"`

	RateLimitPerSecond float64 `yaml:"RATE_LIMIT_PER_SECOND"`
	RateLimitBurst     int     `yaml:"RATE_LIMIT_BURST"`
	// Peers allowed to set X-Forwarded-For, as CIDRs or addresses.
	TrustedProxies []string `yaml:"TRUSTED_PROXIES"`

	LogLevel string `yaml:"LOG_LEVEL"`
	LogFile  string `yaml:"LOG_FILE"`
}

// Default returns the configuration used for keys missing from every source.
func Default() *Config {
	return &Config{
		GRPCPort:             50051,
		HTTPPort:             8080,
		DBDriver:             "postgres",
		DBPort:               5432,
		DBSSLMode:            "disable",
		Topic:                "company.events",
		ConsumerGroup:        "founderhub",
		AccessTokenTTL:       15 * time.Minute,
		RefreshTokenTTL:      7 * 24 * time.Hour,
		ListingCacheTTL:      time.Minute,
		GoogleTokenURL:       "https://oauth2.googleapis.com/token",
		GA4AdminURL:          "https://analyticsadmin.googleapis.com",
		GA4DataURL:           "https://analyticsdata.googleapis.com",
		ReconcileStepTimeout: 30 * time.Second,
		MetricsSyncTimeout:   15 * time.Second,
		OAuthStateTTL:        10 * time.Minute,
		RateLimitPerSecond:   5,
		RateLimitBurst:       10,
		LogLevel:             "info",
	}
}

// Load reads path (a missing file is not an error), then .env, then the
// process environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	file, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// Validate checks the keys the service cannot start without.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.DBDriver == "sqlite" && c.DBPath == "" {
		return fmt.Errorf("DB_PATH is required for the sqlite driver")
	}
	if c.ReconcileStepTimeout <= 0 || c.MetricsSyncTimeout <= 0 || c.OAuthStateTTL <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// applyEnv overrides every yaml-tagged field whose key is set in the
// environment.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		key := t.Field(i).Tag.Get("yaml")
		raw, ok := lookup(key)
		if key == "" || !ok || raw == "" {
			continue
		}
		if err := setField(v.Field(i), raw); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}
	return nil
}

func setField(f reflect.Value, raw string) error {
	if f.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		f.SetInt(int64(d))
		return nil
	}
	switch f.Kind() {
	case reflect.String:
		f.SetString(raw)
	case reflect.Int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return err
		}
		f.SetInt(int64(n))
	case reflect.Float64:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		f.SetFloat(n)
	case reflect.Slice:
		parts := strings.Split(raw, ",")
		out := reflect.MakeSlice(f.Type(), 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = reflect.Append(out, reflect.ValueOf(p))
			}
		}
		f.Set(out)
	default:
		return fmt.Errorf("unsupported kind %s", f.Kind())
	}
	return nil
}
