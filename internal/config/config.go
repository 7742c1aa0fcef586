package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Cache    CacheConfig    `yaml:"cache"`
	Broker   BrokerConfig   `yaml:"broker"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	Migrate  bool   `yaml:"migrate"`
}

// AuthConfig holds the hosted auth provider settings
type AuthConfig struct {
	AppURL        string `yaml:"app_url"`  // public origin used for the OAuth callback
	URL           string `yaml:"url"`      // provider endpoint
	AnonKey       string `yaml:"anon_key"` // provider public API key
	OAuthProvider string `yaml:"oauth_provider"`
}

// CacheConfig holds the Redis view cache configuration
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
	Prefix   string        `yaml:"prefix"`
}

// BrokerConfig holds RabbitMQ configuration. An empty URL disables publishing.
type BrokerConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when neither the file nor the
// environment set a value.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "postgres",
			DBName:  "postgres",
			SSLMode: "disable",
		},
		Auth: AuthConfig{OAuthProvider: "google"},
		Cache: CacheConfig{
			Enabled: true,
			Addr:    "localhost:6379",
			TTL:     60 * time.Second,
			Prefix:  "sport-events",
		},
		Broker: BrokerConfig{Exchange: "sport-events"},
		Log:    LogConfig{Level: "info"},
	}
}

// Load reads configuration from an optional YAML file, then applies
// variables from .env and the process environment on top.
func Load(path string) (*Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Server.Host, "HOST")
	setInt(&c.Server.Port, "PORT")
	setString(&c.Database.URL, "DATABASE_URL")
	setBool(&c.Database.Migrate, "DATABASE_MIGRATE")
	setString(&c.Auth.AppURL, "APP_URL")
	setString(&c.Auth.URL, "SUPABASE_URL")
	setString(&c.Auth.AnonKey, "SUPABASE_ANON_KEY")
	setString(&c.Auth.OAuthProvider, "OAUTH_PROVIDER")
	setBool(&c.Cache.Enabled, "CACHE_ENABLED")
	setString(&c.Cache.Addr, "REDIS_ADDR")
	setString(&c.Cache.Password, "REDIS_PASSWORD")
	setString(&c.Broker.URL, "RABBITMQ_URL")
	setString(&c.Log.Level, "LOG_LEVEL")

	if v := os.Getenv("CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Cache.TTL = d
		}
	}
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.URL == "" && c.Database.Host == "" {
		return errors.New("database url or host is required")
	}
	return nil
}

// Validate reports every missing auth setting. Sign-in calls it so a bad
// deployment fails with a readable message instead of a broken redirect.
func (a AuthConfig) Validate() error {
	var missing []string
	if a.AppURL == "" {
		missing = append(missing, "APP_URL")
	}
	if a.URL == "" {
		missing = append(missing, "SUPABASE_URL")
	}
	if a.AnonKey == "" {
		missing = append(missing, "SUPABASE_ANON_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing %s environment variable(s), please check your configuration",
			strings.Join(missing, ", "))
	}
	return nil
}

// CallbackURL returns the OAuth redirect target on this application.
func (a AuthConfig) CallbackURL() string {
	return strings.TrimRight(a.AppURL, "/") + "/auth/callback"
}

// SecureCookies reports whether session cookies must carry the Secure flag.
func (a AuthConfig) SecureCookies() bool {
	return strings.HasPrefix(a.AppURL, "https://")
}

// DSN returns the PostgreSQL connection URL
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	} else {
		u.User = url.User(c.User)
	}
	return u.String()
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
