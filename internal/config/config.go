// Package config provides configuration types and defaults for boo-registry.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/uiua-boo/registry/internal/log"
)

// Config holds all configuration options for boo-registry.
type Config struct {
	// DataDir is the root directory for the database and blob store.
	// Default: .boo-registry
	DataDir string `mapstructure:"data_dir"`

	Server   ServerConfig   `mapstructure:"server"`
	Publish  PublishConfig  `mapstructure:"publish"`
	Resolver ResolverConfig `mapstructure:"resolver"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds HTTP server options.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8700" or "localhost:0".
	Addr string `mapstructure:"addr"`

	// ReadTimeout bounds reading an entire request, including archive
	// upload bodies.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

// PublishConfig holds publish pipeline options.
type PublishConfig struct {
	// Workers is the number of concurrent publish workers.
	Workers int `mapstructure:"workers"`

	// QueueSize bounds the pending publish trigger queue.
	QueueSize int `mapstructure:"queue_size"`

	// ValidatorPath is the external archive validator executable. When
	// empty, archives are accepted without content validation.
	ValidatorPath string `mapstructure:"validator_path"`

	// ValidatorTimeout bounds one validator invocation.
	ValidatorTimeout time.Duration `mapstructure:"validator_timeout"`
}

// ResolverConfig holds package resolution options.
type ResolverConfig struct {
	// CacheTTL is how long resolved package rows stay cached.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`

	// CacheDisabled bypasses the package cache entirely.
	CacheDisabled bool `mapstructure:"cache_disabled"`
}

// StorageConfig holds blob store options.
type StorageConfig struct {
	// Retry wraps the blob store with retrying on transient I/O errors.
	Retry bool `mapstructure:"retry"`

	// MaxRetries bounds the retry attempts per blob operation.
	MaxRetries uint64 `mapstructure:"max_retries"`

	// RetryInterval is the initial backoff interval between attempts.
	RetryInterval time.Duration `mapstructure:"retry_interval"`
}

// TracingConfig holds distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether tracing is active. Default: false
	Enabled bool `mapstructure:"enabled"`

	// Exporter selects the trace export backend.
	// Options: "none", "file", "stdout", "otlp"
	// Default: "file"
	Exporter string `mapstructure:"exporter"`

	// FilePath is the output file for the "file" exporter.
	// Default: ~/.config/boo-registry/traces/traces.jsonl
	FilePath string `mapstructure:"file_path"`

	// OTLPEndpoint is the collector endpoint for the "otlp" exporter.
	// Default: "localhost:4317"
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`

	// SampleRate controls trace sampling (0.0 to 1.0).
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate"`
}

// LogConfig holds debug logging options.
type LogConfig struct {
	// File is the log output path. Empty means logging stays disabled
	// unless --debug picks a default path.
	File string `mapstructure:"file"`
}

// DBPath returns the SQLite database path under the data directory.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "registry.db")
}

// BlobRoot returns the blob store root under the data directory.
func (c Config) BlobRoot() string {
	return filepath.Join(c.DataDir, "blobs")
}

// DefaultTracesFilePath returns the default path for trace file export.
// Returns ~/.config/boo-registry/traces/traces.jsonl or empty string if
// the home dir is unavailable.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "boo-registry", "traces", "traces.jsonl")
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		DataDir: ".boo-registry",
		Server: ServerConfig{
			Addr:        ":8700",
			ReadTimeout: 5 * time.Minute,
		},
		Publish: PublishConfig{
			Workers:          2,
			QueueSize:        100,
			ValidatorPath:    "",
			ValidatorTimeout: 30 * time.Second,
		},
		Resolver: ResolverConfig{
			CacheTTL:      5 * time.Minute,
			CacheDisabled: false,
		},
		Storage: StorageConfig{
			Retry:         true,
			MaxRetries:    3,
			RetryInterval: 100 * time.Millisecond,
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "file",
			FilePath:     "", // Derived from config dir at runtime
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
		Log: LogConfig{
			File: "",
		},
	}
}

// Validate checks the configuration for errors. Empty values fall back to
// defaults and are always valid.
func Validate(cfg Config) error {
	if cfg.Publish.Workers < 0 {
		return fmt.Errorf("publish.workers must not be negative, got %d", cfg.Publish.Workers)
	}
	if cfg.Publish.QueueSize < 0 {
		return fmt.Errorf("publish.queue_size must not be negative, got %d", cfg.Publish.QueueSize)
	}
	if cfg.Resolver.CacheTTL < 0 {
		return fmt.Errorf("resolver.cache_ttl must not be negative, got %v", cfg.Resolver.CacheTTL)
	}
	return ValidateTracing(cfg.Tracing)
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tracing TracingConfig) error {
	if tracing.SampleRate < 0.0 || tracing.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tracing.SampleRate)
	}

	if tracing.Exporter != "" {
		switch tracing.Exporter {
		case "none", "file", "stdout", "otlp":
			// Valid
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tracing.Exporter)
		}
	}

	// Only validate path requirements when tracing is enabled
	if tracing.Enabled {
		if tracing.Exporter == "file" && tracing.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if tracing.Exporter == "otlp" && tracing.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}

	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# boo-registry Configuration

# Root directory for the database and blob store
data_dir: .boo-registry

# HTTP API settings
server:
  addr: ":8700"        # Listen address; use "localhost:0" for an OS-assigned port
  # read_timeout: 5m   # Upper bound for reading one request, uploads included

# Publish pipeline settings
publish:
  workers: 2           # Concurrent publish workers
  queue_size: 100      # Pending publish triggers before uploads are refused
  # validator_path: /usr/local/bin/boo-validate  # External archive validator
  # validator_timeout: 30s

# Resolution settings
resolver:
  cache_ttl: 5m        # How long resolved packages stay cached
  # cache_disabled: true

# Blob store settings
storage:
  retry: true            # Retry transient blob I/O errors
  # max_retries: 3       # Attempts per blob operation
  # retry_interval: 100ms

# Debug logging
# log:
#   file: .boo-registry/debug.log

# Distributed tracing
# Enables end-to-end visibility into publish and resolution flows
# tracing:
#   enabled: false                 # Enable/disable tracing (default: false)
#   exporter: file                 # Export backend: none, file, stdout, otlp (default: file)
#   file_path: ~/.config/boo-registry/traces/traces.jsonl
#   otlp_endpoint: localhost:4317  # OTLP collector endpoint (for otlp exporter)
#   sample_rate: 1.0               # Trace sampling rate 0.0-1.0 (default: 1.0)
#
# Example: Send traces to Jaeger via OTLP
# tracing:
#   enabled: true
#   exporter: otlp
#   otlp_endpoint: jaeger.internal:4317
#   sample_rate: 0.1  # Sample 10% of traces
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "created default config", "path", configPath)
	return nil
}
