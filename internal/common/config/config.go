// Package config provides configuration management for the agent runtime.
// It supports loading configuration from environment variables, config files, and defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration sections for the runtime.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Events   EventsConfig   `mapstructure:"events"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Sandbox  SandboxConfig  `mapstructure:"sandbox"`
	LLM      LLMConfig      `mapstructure:"llm"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"readTimeout"`  // in seconds
	WriteTimeout int    `mapstructure:"writeTimeout"` // in seconds
}

// DatabaseConfig holds ledger storage configuration.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // "sqlite" or "postgres"
	Path     string `mapstructure:"path"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbName"`
	SSLMode  string `mapstructure:"sslMode"`
	MaxConns int    `mapstructure:"maxConns"`
	MinConns int    `mapstructure:"minConns"`
}

// NATSConfig holds NATS messaging configuration.
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	ClusterID     string `mapstructure:"clusterId"`
	ClientID      string `mapstructure:"clientId"`
	MaxReconnects int    `mapstructure:"maxReconnects"`
}

// EventsConfig holds event bus namespace configuration.
type EventsConfig struct {
	// Namespace isolates queue-group subscribers across deployments/instances.
	// Empty value means derive from runtime data identity.
	Namespace string `mapstructure:"namespace"`
}

// AuthConfig holds bearer-token authentication configuration.
type AuthConfig struct {
	// BypassSecret, when non-empty, is a single shared bearer token accepted
	// for any tenant (used for local/dev deployments only).
	BypassSecret string `mapstructure:"bypassSecret"`
	// DevTestDummy, when true, resolves a missing bearer token, or one that is
	// neither the bypass secret nor shaped like an API key, to the fixed
	// test-tenant/test-project/test-graph scope.
	DevTestDummy bool `mapstructure:"devTestDummy"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"outputPath"`
}

// SandboxConfig holds function sandbox pool configuration.
type SandboxConfig struct {
	// Backend selects the sandbox execution backend: "process" (default, bare
	// subprocess with uid/gid privilege drop) or "docker" (container-level
	// isolation).
	Backend string `mapstructure:"backend"`
	// NodeBin is the Node.js binary used to run function tool code.
	NodeBin string `mapstructure:"nodeBin"`
	// MaxIdle is how long a pooled sandbox process may sit unused before
	// eviction.
	MaxIdle time.Duration `mapstructure:"maxIdle"`
	// MaxUses is how many invocations a pooled sandbox process serves before
	// eviction, regardless of idle time.
	MaxUses int `mapstructure:"maxUses"`
	// SweepInterval is how often the pool scans for idle/expired entries.
	SweepInterval time.Duration `mapstructure:"sweepInterval"`
	// OutputCapBytes caps combined stdout+stderr captured from a sandboxed
	// invocation.
	OutputCapBytes int64 `mapstructure:"outputCapBytes"`
	// KillGrace is how long to wait after SIGTERM before SIGKILL.
	KillGrace time.Duration `mapstructure:"killGrace"`
	// RunAsUID/RunAsGID drop sandbox process privileges on linux/darwin.
	// Zero means no privilege drop (the default on dev machines).
	RunAsUID int `mapstructure:"runAsUid"`
	RunAsGID int `mapstructure:"runAsGid"`
	// DockerHost/DockerImage apply only when Backend == "docker".
	DockerHost  string `mapstructure:"dockerHost"`
	DockerImage string `mapstructure:"dockerImage"`
}

// LLMConfig holds model-provider client configuration.
type LLMConfig struct {
	APIKey  string `mapstructure:"apiKey"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"baseUrl"`
}

// ReadTimeoutDuration returns the read timeout as a time.Duration.
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns the write timeout as a time.Duration.
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// detectDefaultLogFormat returns the appropriate log format based on environment.
// Returns "json" if running in Kubernetes or other production environments.
// Returns "text" for terminal/development use (human-readable console format).
func detectDefaultLogFormat() string {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "json"
	}
	if env := os.Getenv("AGENTRUN_ENV"); env == "production" || env == "prod" {
		return "json"
	}
	return "text"
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./agentrun.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "agentrun")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbName", "agentrun")
	v.SetDefault("database.sslMode", "disable")
	v.SetDefault("database.maxConns", 25)
	v.SetDefault("database.minConns", 5)

	// NATS defaults - empty URL means use in-memory event bus
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.clusterId", "agentrun-cluster")
	v.SetDefault("nats.clientId", "agentrun-client")
	v.SetDefault("nats.maxReconnects", 10)

	// Events defaults
	v.SetDefault("events.namespace", "")

	// Auth defaults
	v.SetDefault("auth.bypassSecret", "")
	v.SetDefault("auth.devTestDummy", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", detectDefaultLogFormat())
	v.SetDefault("logging.outputPath", "stdout")

	// Sandbox defaults
	v.SetDefault("sandbox.backend", "process")
	v.SetDefault("sandbox.nodeBin", "node")
	v.SetDefault("sandbox.maxIdle", "5m")
	v.SetDefault("sandbox.maxUses", 50)
	v.SetDefault("sandbox.sweepInterval", "60s")
	v.SetDefault("sandbox.outputCapBytes", 1<<20)
	v.SetDefault("sandbox.killGrace", "5s")
	v.SetDefault("sandbox.runAsUid", 0)
	v.SetDefault("sandbox.runAsGid", 0)
	v.SetDefault("sandbox.dockerHost", "unix:///var/run/docker.sock")
	v.SetDefault("sandbox.dockerImage", "node:20-slim")

	// LLM defaults
	v.SetDefault("llm.apiKey", "")
	v.SetDefault("llm.model", "claude-sonnet-4-5")
	v.SetDefault("llm.baseUrl", "")
}

// Load reads configuration from environment variables, config file, and defaults.
// Environment variables use the prefix AGENTRUN_ with snake_case naming.
// Config file should be named config.yaml and placed in the current directory or /etc/agentrun/.
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath reads configuration from the specified path or default locations.
func LoadWithPath(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("AGENTRUN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("logging.level", "AGENTRUN_LOG_LEVEL")
	_ = v.BindEnv("events.namespace", "AGENTRUN_EVENTS_NAMESPACE")
	_ = v.BindEnv("llm.apiKey", "ANTHROPIC_API_KEY")

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/agentrun/")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// validate checks that all required configuration fields are set.
// In development mode (default), most fields are optional.
func validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	if cfg.Database.Driver != "sqlite" && cfg.Database.Driver != "postgres" {
		errs = append(errs, "database.driver must be one of: sqlite, postgres")
	}
	if cfg.Database.Driver == "postgres" {
		if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
			errs = append(errs, "database.port must be between 1 and 65535")
		}
		if cfg.Database.User == "" {
			errs = append(errs, "database.user is required for postgres driver")
		}
		if cfg.Database.DBName == "" {
			errs = append(errs, "database.dbName is required for postgres driver")
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, "logging.format must be one of: json, text")
	}

	if cfg.Sandbox.Backend != "process" && cfg.Sandbox.Backend != "docker" {
		errs = append(errs, "sandbox.backend must be one of: process, docker")
	}
	if cfg.Sandbox.MaxUses <= 0 {
		errs = append(errs, "sandbox.maxUses must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}
