// Package config loads application settings from a YAML file, a .env
// file and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/drallgood/book-catalog/internal/database"
	"github.com/drallgood/book-catalog/internal/logger"
)

// Remote config backends
const (
	BackendHTTP    = "http"
	BackendRedis   = "redis"
	BackendGraphQL = "graphql"
	BackendFile    = "file"
	BackendStore   = "store"
)

// Backends lists the accepted remote_config.backend values
var Backends = []string{BackendHTTP, BackendRedis, BackendGraphQL, BackendFile, BackendStore}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	Port            string        `yaml:"port" env:"PORT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// LoggingConfig configures the logger
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// RemoteConfigConfig configures the content pipeline and its backend
type RemoteConfigConfig struct {
	Backend              string        `yaml:"backend" env:"REMOTE_CONFIG_BACKEND"`
	URL                  string        `yaml:"url" env:"REMOTE_CONFIG_URL"`
	Token                string        `yaml:"token" env:"REMOTE_CONFIG_TOKEN"`
	File                 string        `yaml:"file" env:"REMOTE_CONFIG_FILE"`
	DevMode              bool          `yaml:"dev_mode" env:"REMOTE_CONFIG_DEV_MODE"`
	MinimumFetchInterval time.Duration `yaml:"minimum_fetch_interval" env:"REMOTE_CONFIG_MINIMUM_FETCH_INTERVAL"`
	FetchTimeout         time.Duration `yaml:"fetch_timeout" env:"REMOTE_CONFIG_FETCH_TIMEOUT"`
	// RefreshInterval drives periodic Refresh calls in the server; zero disables them
	RefreshInterval time.Duration `yaml:"refresh_interval" env:"REMOTE_CONFIG_REFRESH_INTERVAL"`
	Keys            []string      `yaml:"keys" env:"REMOTE_CONFIG_KEYS" envSeparator:","`
	RateLimit       time.Duration `yaml:"rate_limit" env:"REMOTE_CONFIG_RATE_LIMIT"`
	Burst           int           `yaml:"burst" env:"REMOTE_CONFIG_BURST"`
}

// RedisConfig configures the redis backend
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
	Prefix   string `yaml:"prefix" env:"REDIS_PREFIX"`
}

// GraphQLConfig configures the graphql backend
type GraphQLConfig struct {
	Endpoint string        `yaml:"endpoint" env:"GRAPHQL_ENDPOINT"`
	Token    string        `yaml:"token" env:"GRAPHQL_TOKEN"`
	Timeout  time.Duration `yaml:"timeout" env:"GRAPHQL_TIMEOUT"`
}

// DatabaseConfig configures the parameter store database
type DatabaseConfig struct {
	Type           string `yaml:"type" env:"DATABASE_TYPE"`
	Host           string `yaml:"host" env:"DATABASE_HOST"`
	Port           int    `yaml:"port" env:"DATABASE_PORT"`
	Name           string `yaml:"name" env:"DATABASE_NAME"`
	User           string `yaml:"user" env:"DATABASE_USER"`
	Password       string `yaml:"password" env:"DATABASE_PASSWORD"`
	Path           string `yaml:"path" env:"DATABASE_PATH"`
	SSLMode        string `yaml:"ssl_mode" env:"DATABASE_SSL_MODE"`
	ConnectionPool struct {
		MaxOpenConns    int `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
		MaxIdleConns    int `yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
		ConnMaxLifetime int `yaml:"conn_max_lifetime" env:"DATABASE_CONN_MAX_LIFETIME"`
	} `yaml:"connection_pool"`
}

// CarouselConfig configures the banner and details carousels
type CarouselConfig struct {
	Interval    time.Duration `yaml:"interval" env:"CAROUSEL_INTERVAL"`
	AutoAdvance bool          `yaml:"auto_advance" env:"CAROUSEL_AUTO_ADVANCE"`
	PageWidth   float64       `yaml:"page_width" env:"CAROUSEL_PAGE_WIDTH"`
	SmallWidth  float64       `yaml:"small_width" env:"CAROUSEL_SMALL_WIDTH"`
	LargeWidth  float64       `yaml:"large_width" env:"CAROUSEL_LARGE_WIDTH"`
	Gap         float64       `yaml:"gap" env:"CAROUSEL_GAP"`
}

// UsersConfig configures the users API client
type UsersConfig struct {
	BaseURL  string        `yaml:"base_url" env:"USERS_API_URL"`
	Timeout  time.Duration `yaml:"timeout" env:"USERS_API_TIMEOUT"`
	CacheTTL time.Duration `yaml:"cache_ttl" env:"USERS_API_CACHE_TTL"`
}

// Config holds all configuration for the application
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Logging      LoggingConfig      `yaml:"logging"`
	RemoteConfig RemoteConfigConfig `yaml:"remote_config"`
	Redis        RedisConfig        `yaml:"redis"`
	GraphQL      GraphQLConfig      `yaml:"graphql"`
	Database     DatabaseConfig     `yaml:"database"`
	Carousel     CarouselConfig     `yaml:"carousel"`
	Users        UsersConfig        `yaml:"users"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Port = "8080"
	cfg.Server.ShutdownTimeout = 10 * time.Second
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"
	cfg.RemoteConfig.Backend = BackendStore
	cfg.RemoteConfig.FetchTimeout = 10 * time.Second
	cfg.RemoteConfig.RefreshInterval = time.Hour
	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.Prefix = "remote_config:"
	cfg.GraphQL.Timeout = 30 * time.Second
	cfg.Database.Type = string(database.DatabaseTypeSQLite)
	cfg.Carousel.Interval = 3 * time.Second
	cfg.Carousel.AutoAdvance = true
	cfg.Carousel.PageWidth = 360
	cfg.Carousel.SmallWidth = 160
	cfg.Carousel.LargeWidth = 200
	cfg.Carousel.Gap = 16
	cfg.Users.Timeout = 30 * time.Second
	cfg.Users.CacheTTL = 30 * time.Second
	return cfg
}

// Load builds the configuration.
// Priority: 1) environment variables, 2) .env files, 3) config file, 4) defaults.
// Command line flags are applied by the caller on top of the result.
// envFiles defaults to ".env"; missing env files are ignored.
func Load(configFile string, envFiles ...string) (*Config, error) {
	log := logger.Get().Component("config")
	cfg := Default()

	if configFile != "" {
		if err := loadFile(cfg, configFile); err != nil {
			return nil, err
		}
		log.Debug("Loaded configuration file", map[string]interface{}{"path": configFile})
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// godotenv never overrides variables already set in the environment
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Info("Configuration loaded", map[string]interface{}{
		"backend":          cfg.RemoteConfig.Backend,
		"dev_mode":         cfg.RemoteConfig.DevMode,
		"database_type":    cfg.Database.Type,
		"has_remote_token": cfg.RemoteConfig.Token != "",
		"users_api":        cfg.Users.BaseURL != "",
	})
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	// fields absent from the file keep their defaults
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c *Config) normalize() {
	c.RemoteConfig.Backend = strings.ToLower(strings.TrimSpace(c.RemoteConfig.Backend))
	c.RemoteConfig.URL = strings.TrimSuffix(c.RemoteConfig.URL, "/")
	c.Users.BaseURL = strings.TrimSuffix(c.Users.BaseURL, "/")
}

// Validate checks that the selected backend has what it needs
func (c *Config) Validate() error {
	rc := c.RemoteConfig
	switch rc.Backend {
	case BackendHTTP:
		if rc.URL == "" {
			return &ConfigError{Field: "remote_config.url", Msg: "is required for the http backend"}
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return &ConfigError{Field: "redis.addr", Msg: "is required for the redis backend"}
		}
	case BackendGraphQL:
		if c.GraphQL.Endpoint == "" {
			return &ConfigError{Field: "graphql.endpoint", Msg: "is required for the graphql backend"}
		}
	case BackendFile:
		if rc.File == "" {
			return &ConfigError{Field: "remote_config.file", Msg: "is required for the file backend"}
		}
	case BackendStore:
	default:
		return &ConfigError{
			Field: "remote_config.backend",
			Msg:   fmt.Sprintf("must be one of %s, got %q", strings.Join(Backends, ", "), rc.Backend),
		}
	}

	if rc.MinimumFetchInterval < 0 {
		return &ConfigError{Field: "remote_config.minimum_fetch_interval", Msg: "must not be negative"}
	}
	if rc.RefreshInterval < 0 {
		return &ConfigError{Field: "remote_config.refresh_interval", Msg: "must not be negative"}
	}
	if c.Carousel.Interval <= 0 {
		return &ConfigError{Field: "carousel.interval", Msg: "must be positive"}
	}
	return nil
}

// DatabaseSettings converts the database section for the database package
func (c *Config) DatabaseSettings() *database.DatabaseConfig {
	d := c.Database
	return &database.DatabaseConfig{
		Type:            database.ParseType(d.Type),
		Host:            d.Host,
		Port:            d.Port,
		Database:        d.Name,
		Username:        d.User,
		Password:        d.Password,
		SSLMode:         d.SSLMode,
		Path:            d.Path,
		MaxOpenConns:    d.ConnectionPool.MaxOpenConns,
		MaxIdleConns:    d.ConnectionPool.MaxIdleConns,
		ConnMaxLifetime: d.ConnectionPool.ConnMaxLifetime,
	}
}

// LoggerConfig converts the logging section for the logger package
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:  c.Logging.Level,
		Format: logger.ParseLogFormat(c.Logging.Format),
	}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return "config error: " + e.Field + " " + e.Msg
}
