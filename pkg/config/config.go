// Package config provides configuration management for zstack-macpool.
//
// This package handles:
// - Configuration file parsing (YAML/JSON)
// - Environment variable overrides
// - Configuration validation
//
// Configuration Priority (highest to lowest):
// 1. Environment variables (MACPOOL_*)
// 2. Configuration file
// 3. Default values
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jiayi-1994/zstack-macpool/pkg/logging"
	"github.com/jiayi-1994/zstack-macpool/pkg/macrange"
	"github.com/jiayi-1994/zstack-macpool/pkg/types"
)

// Config is the global configuration structure
// It contains all configuration options for zstack-macpool
type Config struct {
	// Kubernetes contains Kubernetes-related settings
	Kubernetes KubernetesConfig `json:"kubernetes" yaml:"kubernetes"`

	// Pool contains MAC pool settings
	Pool PoolConfig `json:"pool" yaml:"pool"`

	// Server contains pool service settings
	Server ServerConfig `json:"server" yaml:"server"`

	// Client contains pool service client settings
	Client ClientConfig `json:"client" yaml:"client"`

	// Logging contains logging configuration
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// KubernetesConfig contains Kubernetes-related settings
type KubernetesConfig struct {
	// Kubeconfig is the path to kubeconfig file
	// If empty, uses in-cluster config
	Kubeconfig string `json:"kubeconfig" yaml:"kubeconfig"`
}

// RangeConfig is a MAC range given in configuration
type RangeConfig struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

// PoolConfig contains MAC pool settings
type PoolConfig struct {
	// MaxAddresses bounds the number of addresses a pool takes from its ranges
	// when the MacPool does not set its own limit.
	// Default: 65536
	MaxAddresses int `json:"maxAddresses" yaml:"maxAddresses"`

	// PreviewLimit is the number of addresses listed in MacPool status
	// Default: 16
	PreviewLimit int `json:"previewLimit" yaml:"previewLimit"`

	// DefaultRanges are served as the "default" pool when set
	DefaultRanges []RangeConfig `json:"defaultRanges" yaml:"defaultRanges"`
}

// ServerConfig contains pool service settings
type ServerConfig struct {
	// SocketPath is the unix socket the service listens on
	// Default: "/var/run/zstack-macpool/macpool.sock"
	SocketPath string `json:"socketPath" yaml:"socketPath"`

	// RequestTimeout bounds the handling of a single request
	// Default: 30s
	RequestTimeout time.Duration `json:"requestTimeout" yaml:"requestTimeout"`

	// MaxRequestBodySize is the largest accepted request body in bytes
	// Default: 1MiB
	MaxRequestBodySize int64 `json:"maxRequestBodySize" yaml:"maxRequestBodySize"`
}

// ClientConfig contains pool service client settings
type ClientConfig struct {
	// MaxRetries is the number of retries after a transport failure
	// Default: 3
	MaxRetries int `json:"maxRetries" yaml:"maxRetries"`

	// InitialInterval is the first retry delay; later delays grow exponentially
	// Default: 100ms
	InitialInterval time.Duration `json:"initialInterval" yaml:"initialInterval"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `json:"level" yaml:"level"`

	// Format is the log format: "json" or "text"
	// Default: "json"
	Format string `json:"format" yaml:"format"`

	// File is the log file path (optional)
	// If empty, logs to stdout
	File string `json:"file" yaml:"file"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		Pool: PoolConfig{
			MaxAddresses: types.DefaultMaxAddresses,
			PreviewLimit: types.DefaultPreviewLimit,
		},
		Server: ServerConfig{
			SocketPath:         types.DefaultSocketPath,
			RequestTimeout:     types.DefaultRequestTimeoutSec * time.Second,
			MaxRequestBodySize: types.DefaultMaxRequestBodyBytes,
		},
		Client: ClientConfig{
			MaxRetries:      types.DefaultClientMaxRetries,
			InitialInterval: types.DefaultClientInitialInterval * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  logging.LevelInfo,
			Format: logging.FormatJSON,
		},
	}
}

// LoadConfig loads configuration from file and environment variables
//
// Configuration is loaded in the following order:
// 1. Default values
// 2. Configuration file (if specified via MACPOOL_CONFIG_FILE env var)
// 3. Environment variable overrides
//
// Returns:
//   - *Config: Loaded configuration
//   - error: Loading or validation error
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	if configFile := os.Getenv(types.EnvConfigFile); configFile != "" {
		if err := cfg.LoadFromFile(configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configFile, err)
		}
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a YAML or JSON file
//
// Parameters:
//   - path: Path to the configuration file
//
// Returns:
//   - error: File reading or parsing error
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// YAML is a superset of JSON
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// ApplyEnvOverrides applies environment variable overrides to the configuration
//
// Examples:
//   - MACPOOL_KUBECONFIG=/root/.kube/config
//   - MACPOOL_MAX_ADDRESSES=4096
//   - MACPOOL_PREVIEW_LIMIT=8
//   - MACPOOL_DEFAULT_RANGES=00:1a:4a:00:00:00-00:1a:4a:00:ff:ff,02:00:00:00:00:00-02:00:00:00:0f:ff
//   - MACPOOL_SOCKET_PATH=/run/macpool.sock
//   - MACPOOL_REQUEST_TIMEOUT=10s
//   - MACPOOL_CLIENT_MAX_RETRIES=5
//   - MACPOOL_LOG_LEVEL=debug
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("MACPOOL_KUBECONFIG"); v != "" {
		c.Kubernetes.Kubeconfig = v
	}

	// Pool settings
	if v := os.Getenv("MACPOOL_MAX_ADDRESSES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Pool.MaxAddresses = n
		}
	}
	if v := os.Getenv("MACPOOL_PREVIEW_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Pool.PreviewLimit = n
		}
	}
	if v := os.Getenv("MACPOOL_DEFAULT_RANGES"); v != "" {
		c.Pool.DefaultRanges = parseRangeList(v)
	}

	// Server settings
	if v := os.Getenv("MACPOOL_SOCKET_PATH"); v != "" {
		c.Server.SocketPath = v
	}
	if v := os.Getenv("MACPOOL_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Server.RequestTimeout = d
		}
	}
	if v := os.Getenv("MACPOOL_MAX_REQUEST_BODY_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Server.MaxRequestBodySize = n
		}
	}

	// Client settings
	if v := os.Getenv("MACPOOL_CLIENT_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Client.MaxRetries = n
		}
	}
	if v := os.Getenv("MACPOOL_CLIENT_INITIAL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Client.InitialInterval = d
		}
	}

	// Logging settings
	if v := os.Getenv("MACPOOL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("MACPOOL_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("MACPOOL_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
}

// parseRangeList parses "start-end,start-end". Entries without a dash are
// kept with an empty end so that Validate reports them.
func parseRangeList(v string) []RangeConfig {
	var ranges []RangeConfig
	for _, entry := range strings.Split(v, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		start, end, _ := strings.Cut(entry, "-")
		ranges = append(ranges, RangeConfig{
			Start: strings.TrimSpace(start),
			End:   strings.TrimSpace(end),
		})
	}
	return ranges
}

// Validate validates the configuration
//
// Returns:
//   - error: Validation error with details
func (c *Config) Validate() error {
	var errors []string

	// Validate pool configuration
	if c.Pool.MaxAddresses <= 0 {
		errors = append(errors, fmt.Sprintf("invalid maxAddresses: %d (must be > 0)", c.Pool.MaxAddresses))
	}
	if c.Pool.PreviewLimit < 0 {
		errors = append(errors, fmt.Sprintf("invalid previewLimit: %d (must be >= 0)", c.Pool.PreviewLimit))
	}
	for i, r := range c.Pool.DefaultRanges {
		if _, err := macrange.ParseRange(r.Start, r.End); err != nil {
			errors = append(errors, fmt.Sprintf("invalid defaultRanges[%d]: %v", i, err))
			continue
		}
		if !macrange.IsValid(r.Start, r.End) {
			errors = append(errors, fmt.Sprintf("defaultRanges[%d] %s-%s contains no unicast address", i, r.Start, r.End))
		}
	}

	// Validate server configuration
	if c.Server.SocketPath == "" {
		errors = append(errors, "socketPath is required")
	}
	if c.Server.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid requestTimeout: %s (must be > 0)", c.Server.RequestTimeout))
	}
	if c.Server.MaxRequestBodySize <= 0 {
		errors = append(errors, fmt.Sprintf("invalid maxRequestBodySize: %d (must be > 0)", c.Server.MaxRequestBodySize))
	}

	// Validate client configuration
	if c.Client.MaxRetries < 0 {
		errors = append(errors, fmt.Sprintf("invalid client maxRetries: %d (must be >= 0)", c.Client.MaxRetries))
	}
	if c.Client.InitialInterval <= 0 {
		errors = append(errors, fmt.Sprintf("invalid client initialInterval: %s (must be > 0)", c.Client.InitialInterval))
	}

	// Validate logging configuration
	if !logging.ValidLevel(c.Logging.Level) || c.Logging.Level == "" {
		errors = append(errors, fmt.Sprintf("invalid log level: %s (must be 'debug', 'info', 'warn', or 'error')", c.Logging.Level))
	}
	if c.Logging.Format != logging.FormatJSON && c.Logging.Format != logging.FormatText {
		errors = append(errors, fmt.Sprintf("invalid log format: %s (must be 'json' or 'text')", c.Logging.Format))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// DefaultPoolRanges returns the parsed default ranges.
// Call after Validate; malformed entries are skipped.
func (c *Config) DefaultPoolRanges() []macrange.Range {
	ranges := make([]macrange.Range, 0, len(c.Pool.DefaultRanges))
	for _, rc := range c.Pool.DefaultRanges {
		r, err := macrange.ParseRange(rc.Start, rc.End)
		if err != nil {
			continue
		}
		ranges = append(ranges, r)
	}
	return ranges
}

// LoggingOptions converts the logging section to logger options
func (c *Config) LoggingOptions() logging.Options {
	opts := logging.DefaultOptions()
	opts.Level = c.Logging.Level
	opts.Format = c.Logging.Format
	opts.OutputPath = c.Logging.File
	return opts
}
