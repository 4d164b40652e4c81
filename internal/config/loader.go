// Package config loads fcsrv settings from a YAML, JSON or TOML file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"fcsrv/internal/artifact"
	"fcsrv/internal/fallback"
	"fcsrv/internal/predictor"
	"fcsrv/internal/variant"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = "0.0.0.0:8000"

// FallbackConfig selects the remote provider used when no local predictor can
// answer. An empty Provider disables fallback.
type FallbackConfig struct {
	Provider   string `json:"provider" yaml:"provider" toml:"provider"`
	Key        string `json:"key" yaml:"key" toml:"key"`
	Endpoint   string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" toml:"endpoint,omitempty"`
	ImageLimit int    `json:"image_limit,omitempty" yaml:"image_limit,omitempty" toml:"image_limit,omitempty"`
}

// Enabled reports whether a provider is configured.
func (f FallbackConfig) Enabled() bool { return f.Provider != "" }

// CORSConfig is opt-in; disabled means no CORS middleware.
type CORSConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	Origins []string `json:"origins,omitempty" yaml:"origins,omitempty" toml:"origins,omitempty"`
	Methods []string `json:"methods,omitempty" yaml:"methods,omitempty" toml:"methods,omitempty"`
	Headers []string `json:"headers,omitempty" yaml:"headers,omitempty" toml:"headers,omitempty"`
}

// Config holds runtime parameters for the service.
// Zero values mean "unspecified"; ApplyDefaults fills them in.
type Config struct {
	Addr        string `json:"addr" yaml:"addr" toml:"addr"`
	ModelDir    string `json:"model_dir" yaml:"model_dir" toml:"model_dir"`
	UpdateCheck bool   `json:"update_check" yaml:"update_check" toml:"update_check"`
	Threads     int    `json:"threads" yaml:"threads" toml:"threads"`
	Allocator   string `json:"allocator" yaml:"allocator" toml:"allocator"`
	Limit       int    `json:"limit" yaml:"limit" toml:"limit"`
	Workers     int    `json:"workers" yaml:"workers" toml:"workers"`
	APIKey      string `json:"api_key" yaml:"api_key" toml:"api_key"`
	// ONNXRuntimeLib is the path of the onnxruntime shared library.
	ONNXRuntimeLib string `json:"onnxruntime_lib" yaml:"onnxruntime_lib" toml:"onnxruntime_lib"`
	// Preload lists variants whose predictors are built at startup.
	Preload []string `json:"preload,omitempty" yaml:"preload,omitempty" toml:"preload,omitempty"`

	Backend  artifact.BackendConfig `json:"backend" yaml:"backend" toml:"backend"`
	Fallback FallbackConfig         `json:"fallback" yaml:"fallback" toml:"fallback"`

	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`

	TLSCert string `json:"tls_cert" yaml:"tls_cert" toml:"tls_cert"`
	TLSKey  string `json:"tls_key" yaml:"tls_key" toml:"tls_key"`

	CORS               CORSConfig `json:"cors" yaml:"cors" toml:"cors"`
	MaxBodyBytes       int64      `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	TaskTimeoutSeconds int64      `json:"task_timeout_seconds" yaml:"task_timeout_seconds" toml:"task_timeout_seconds"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// ApplyDefaults fills unspecified fields.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.Threads < 1 {
		c.Threads = 1
	}
	if c.Allocator == "" {
		c.Allocator = string(predictor.AllocatorDevice)
	}
	if c.Backend.Kind == "" {
		c.Backend.Kind = artifact.KindStatic
	}
	if c.Backend.Kind == artifact.KindStatic && c.Backend.BaseURL == "" {
		c.Backend.BaseURL = artifact.DefaultReleaseURL
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "console"
	}
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if _, err := predictor.ParseAllocator(c.Allocator); err != nil {
		errs = append(errs, err)
	}
	if c.Threads < 0 {
		errs = append(errs, fmt.Errorf("threads must be >= 0, got %d", c.Threads))
	}
	if c.Limit < 0 {
		errs = append(errs, fmt.Errorf("limit must be >= 0, got %d", c.Limit))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must be >= 0, got %d", c.Workers))
	}
	if err := c.Backend.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Fallback.Enabled() {
		if _, err := fallback.ParseProvider(c.Fallback.Provider); err != nil {
			errs = append(errs, err)
		}
		if strings.TrimSpace(c.Fallback.Key) == "" {
			errs = append(errs, fmt.Errorf("fallback %s: key is empty", c.Fallback.Provider))
		}
	}
	switch c.LogFormat {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("unsupported log format %q (want console or json)", c.LogFormat))
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		errs = append(errs, errors.New("tls_cert and tls_key must be set together"))
	}
	for _, name := range c.Preload {
		if _, err := variant.Parse(name); err != nil {
			errs = append(errs, fmt.Errorf("preload: %w", err))
		}
	}
	return errors.Join(errs...)
}

// PreloadVariants resolves Preload. Call Validate first.
func (c Config) PreloadVariants() []variant.Variant {
	out := make([]variant.Variant, 0, len(c.Preload))
	for _, name := range c.Preload {
		if v, err := variant.Parse(name); err == nil {
			out = append(out, v)
		}
	}
	return out
}
