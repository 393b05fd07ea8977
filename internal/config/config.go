// Package config provides Viper-based configuration loading for the mapping proxy.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ProxyConfig holds the relay endpoints and connection settings.
type ProxyConfig struct {
	// ListenHost is the bind address for the client-facing listener.
	ListenHost string `mapstructure:"listen_host"`
	// ListenPort is the TCP port for the client-facing listener.
	ListenPort int `mapstructure:"listen_port"`
	// ServerHost is the address of the real game server.
	ServerHost string `mapstructure:"server_host"`
	// ServerPort is the TCP port of the real game server.
	ServerPort int `mapstructure:"server_port"`
	// DialAttempts is the maximum number of upstream dial attempts per session.
	DialAttempts int `mapstructure:"dial_attempts"`
	// DialBackoff is the base backoff between upstream dial attempts.
	DialBackoff time.Duration `mapstructure:"dial_backoff"`
	// WriteTimeout is the per-write timeout on both legs of the relay.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// ListenAddr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (p ProxyConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", p.ListenHost, p.ListenPort)
}

// ServerAddr returns the "host:port" upstream address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (p ProxyConfig) ServerAddr() string {
	return fmt.Sprintf("%s:%d", p.ServerHost, p.ServerPort)
}

// MapperConfig holds synchronization engine and map database settings.
type MapperConfig struct {
	// MapFile is the path of the map snapshot loaded at startup and written by savemap.
	MapFile string `mapstructure:"map_file"`
	// CommandPrefix marks client lines consumed by the dispatcher instead of relayed.
	CommandPrefix string `mapstructure:"command_prefix"`
	// AutoMap controls whether unmatched presentations create new rooms.
	AutoMap bool `mapstructure:"auto_map"`
	// AutoLink controls whether observed movement links undefined exits.
	AutoLink bool `mapstructure:"auto_link"`
	// AutoMerge controls whether duplicate rooms are merged on exact match.
	AutoMerge bool `mapstructure:"auto_merge"`
	// AutoUpdate controls whether stored room text is refreshed from new presentations.
	AutoUpdate bool `mapstructure:"auto_update"`
	// TentativeLookahead is how many further events may pass before an
	// unresolved ambiguous position falls back to unsynced.
	TentativeLookahead int `mapstructure:"tentative_lookahead"`
	// StepTimeout bounds the wait for a movement confirmation during run.
	StepTimeout time.Duration `mapstructure:"step_timeout"`
	// MaxSearchResults caps the number of rows returned by search verbs.
	MaxSearchResults int `mapstructure:"max_search_results"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Proxy   ProxyConfig   `mapstructure:"proxy"`
	Mapper  MapperConfig  `mapstructure:"mapper"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateProxy(c.Proxy); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateMapper(c.Mapper); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateProxy(p ProxyConfig) error {
	var errs []string
	if p.ListenPort < 1 || p.ListenPort > 65535 {
		errs = append(errs, fmt.Sprintf("proxy.listen_port must be 1-65535, got %d", p.ListenPort))
	}
	if p.ServerHost == "" {
		errs = append(errs, "proxy.server_host must not be empty")
	}
	if p.ServerPort < 1 || p.ServerPort > 65535 {
		errs = append(errs, fmt.Sprintf("proxy.server_port must be 1-65535, got %d", p.ServerPort))
	}
	if p.DialAttempts < 1 {
		errs = append(errs, fmt.Sprintf("proxy.dial_attempts must be >= 1, got %d", p.DialAttempts))
	}
	if p.DialBackoff < 0 {
		errs = append(errs, "proxy.dial_backoff must not be negative")
	}
	if p.WriteTimeout < 0 {
		errs = append(errs, "proxy.write_timeout must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateMapper(m MapperConfig) error {
	var errs []string
	if m.MapFile == "" {
		errs = append(errs, "mapper.map_file must not be empty")
	}
	if m.CommandPrefix == "" {
		errs = append(errs, "mapper.command_prefix must not be empty")
	}
	if strings.ContainsAny(m.CommandPrefix, " \t") {
		errs = append(errs, "mapper.command_prefix must not contain whitespace")
	}
	if m.TentativeLookahead < 1 {
		errs = append(errs, fmt.Sprintf("mapper.tentative_lookahead must be >= 1, got %d", m.TentativeLookahead))
	}
	if m.StepTimeout <= 0 {
		errs = append(errs, "mapper.step_timeout must be positive")
	}
	if m.MaxSearchResults < 1 {
		errs = append(errs, fmt.Sprintf("mapper.max_search_results must be >= 1, got %d", m.MaxSearchResults))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with MAPWARD_ prefix
	v.SetEnvPrefix("MAPWARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("proxy.listen_host", "127.0.0.1")
	v.SetDefault("proxy.listen_port", 4000)
	v.SetDefault("proxy.server_host", "mume.org")
	v.SetDefault("proxy.server_port", 4242)
	v.SetDefault("proxy.dial_attempts", 5)
	v.SetDefault("proxy.dial_backoff", "500ms")
	v.SetDefault("proxy.write_timeout", "30s")

	v.SetDefault("mapper.map_file", "data/map.yaml")
	v.SetDefault("mapper.command_prefix", "_")
	v.SetDefault("mapper.auto_map", false)
	v.SetDefault("mapper.auto_link", true)
	v.SetDefault("mapper.auto_merge", true)
	v.SetDefault("mapper.auto_update", true)
	v.SetDefault("mapper.tentative_lookahead", 3)
	v.SetDefault("mapper.step_timeout", "10s")
	v.SetDefault("mapper.max_search_results", 20)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
