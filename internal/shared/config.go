package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Environment variables that override values loaded from the config file.
const (
	EnvDatabaseBackend = "DLAPI_DATABASE_BACKEND"
	EnvDatabasePath    = "DLAPI_DATABASE_PATH"
	EnvServerPort      = "DLAPI_SERVER_PORT"
	EnvAuthToken       = "DLAPI_AUTH_TOKEN"
	EnvDownloadDir     = "DLAPI_DOWNLOAD_DIR"
	EnvBinary          = "DLAPI_YTDLP_BINARY"
	EnvClientBaseURL   = "DLAPI_BASE_URL"
	EnvClientToken     = "DLAPI_TOKEN"
	EnvLogLevel        = "DLAPI_LOG_LEVEL"
)

// Database backends
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Database  DatabaseConfig  `toml:"database"`
	Server    ServerConfig    `toml:"server"`
	Downloads DownloadsConfig `toml:"downloads"`
	Client    ClientConfig    `toml:"client"`
	Log       LogConfig       `toml:"log"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Backend      string `toml:"backend"`
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	AuthToken      string   `toml:"auth_token"`
	AllowedOrigins []string `toml:"allowed_origins"`
	RateLimit      float64  `toml:"rate_limit"`
	RateBurst      int      `toml:"rate_burst"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DownloadsConfig controls the external download engine.
type DownloadsConfig struct {
	Directory      string  `toml:"directory"`
	Binary         string  `toml:"binary"`
	AudioFormat    string  `toml:"audio_format"`
	OutputTemplate string  `toml:"output_template"`
	MaxParallel    int     `toml:"max_parallel"`
	ProbeRate      float64 `toml:"probe_rate"`
}

// ClientConfig is used by CLI commands talking to a running server.
type ClientConfig struct {
	BaseURL string `toml:"base_url"`
	Token   string `toml:"token"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, fs.ErrExist)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks value ranges that would otherwise fail later at startup.
func (c *Config) Validate() error {
	switch c.Database.Backend {
	case BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("%w: unknown database backend %q", ErrInvalidConfig, c.Database.Backend)
	}
	if c.Database.Backend == BackendSQLite && c.Database.Path == "" {
		return fmt.Errorf("%w: database.path is required for the sqlite backend", ErrInvalidConfig)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d", ErrInvalidConfig, c.Server.Port)
	}
	if c.Downloads.MaxParallel <= 0 {
		return fmt.Errorf("%w: downloads.max_parallel must be positive", ErrInvalidConfig)
	}
	if c.Downloads.Directory == "" {
		return fmt.Errorf("%w: downloads.directory is required", ErrInvalidConfig)
	}
	return nil
}

// LoadEnv loads variables from .env files into the process environment.
//
// Missing files are not an error; variables already set are not overwritten.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load env file %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides config values with any DLAPI_* environment variables that are set.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvDatabaseBackend); v != "" {
		c.Database.Backend = v
	}
	if v := os.Getenv(EnvDatabasePath); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv(EnvServerPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidConfig, EnvServerPort, v)
		}
		c.Server.Port = port
	}
	if v := os.Getenv(EnvAuthToken); v != "" {
		c.Server.AuthToken = v
	}
	if v := os.Getenv(EnvDownloadDir); v != "" {
		c.Downloads.Directory = v
	}
	if v := os.Getenv(EnvBinary); v != "" {
		c.Downloads.Binary = v
	}
	if v := os.Getenv(EnvClientBaseURL); v != "" {
		c.Client.BaseURL = v
	}
	if v := os.Getenv(EnvClientToken); v != "" {
		c.Client.Token = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	return c.Validate()
}
