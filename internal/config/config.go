package config

import (
	"fmt"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// LogLevel defines the minimum severity for log output.
type LogLevel string

const (
	LogLevelDebug   LogLevel = "DEBUG"
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARNING"
	LogLevelError   LogLevel = "ERROR"
)

// Config is the top-level configuration structure.
type Config struct {
	Transport *TransportConfig `json:"transport,omitempty" toml:"transport,omitempty"`
	Logging   *LoggingConfig   `json:"logging,omitempty" toml:"logging,omitempty"`
}

// TransportConfig holds the locally-announced HTTP/2 settings. Any field left
// nil keeps the protocol default for that setting; a set field becomes part
// of the first SETTINGS frame emitted on the connection.
type TransportConfig struct {
	HeaderTableSize      *uint32 `json:"header_table_size,omitempty" toml:"header_table_size,omitempty"`
	InitialWindowSize    *uint32 `json:"initial_window_size,omitempty" toml:"initial_window_size,omitempty"`
	MaxFrameSize         *uint32 `json:"max_frame_size,omitempty" toml:"max_frame_size,omitempty"`
	MaxConcurrentStreams *uint32 `json:"max_concurrent_streams,omitempty" toml:"max_concurrent_streams,omitempty"`
	MaxHeaderListSize    *uint32 `json:"max_header_list_size,omitempty" toml:"max_header_list_size,omitempty"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	LogLevel LogLevel `json:"log_level,omitempty" toml:"log_level,omitempty"`
	// Target is "stderr", "stdout", or an absolute file path.
	Target string `json:"target,omitempty" toml:"target,omitempty"`
}

const (
	minMaxFrameSize     = 16384
	maxMaxFrameSize     = (1 << 24) - 1
	maxWindowSize       = (1 << 31) - 1
	defaultLogTarget    = "stderr"
	defaultLogLevelName = LogLevelInfo
)

// Load reads a TOML configuration file, applies defaults, and validates it.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: failed to decode %s: %w", path, err)
	}
	if undec := meta.Undecoded(); len(undec) > 0 {
		return nil, fmt.Errorf("config: unknown key %q in %s", undec[0].String(), path)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns a configuration with every section present and defaulted.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills in any missing sections and logging defaults. Transport
// settings are left nil on purpose: nil means "protocol default, do not
// announce".
func (c *Config) ApplyDefaults() {
	if c.Transport == nil {
		c.Transport = &TransportConfig{}
	}
	if c.Logging == nil {
		c.Logging = &LoggingConfig{}
	}
	if c.Logging.LogLevel == "" {
		c.Logging.LogLevel = defaultLogLevelName
	}
	if c.Logging.Target == "" {
		c.Logging.Target = defaultLogTarget
	}
}

// Validate checks settings ranges (RFC 7540 Section 6.5.2) and the logging
// section.
func (c *Config) Validate() error {
	if t := c.Transport; t != nil {
		if t.MaxFrameSize != nil && (*t.MaxFrameSize < minMaxFrameSize || *t.MaxFrameSize > maxMaxFrameSize) {
			return fmt.Errorf("max_frame_size %d out of range [%d, %d]", *t.MaxFrameSize, minMaxFrameSize, maxMaxFrameSize)
		}
		if t.InitialWindowSize != nil && *t.InitialWindowSize > maxWindowSize {
			return fmt.Errorf("initial_window_size %d exceeds maximum %d", *t.InitialWindowSize, maxWindowSize)
		}
	}
	if l := c.Logging; l != nil {
		switch l.LogLevel {
		case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
		default:
			return fmt.Errorf("invalid log_level %q", l.LogLevel)
		}
		if l.Target != "stderr" && l.Target != "stdout" && !filepath.IsAbs(l.Target) {
			return fmt.Errorf("log target %q must be stderr, stdout, or an absolute path", l.Target)
		}
	}
	return nil
}
