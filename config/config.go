package config

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/searchktools/loom-server/logging"
)

// Config holds all application configuration.
type Config struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Env             string        `mapstructure:"env"`

	// VirtualThreads switches request threads to lightweight threads
	// multiplexed onto Carriers carriers. Read once at startup.
	VirtualThreads bool `mapstructure:"virtual_threads"`
	// Carriers sizes the carrier pool; 0 means one per processor.
	Carriers int `mapstructure:"carriers"`

	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	TLS      TLSConfig      `mapstructure:"tls"`
}

// DatabaseConfig configures the blocking query backend.
type DatabaseConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TLSConfig enables h2 over TLS when both files are set; otherwise the
// server speaks h2c.
type TLSConfig struct {
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Port:            8080,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		Env:             "development",
		VirtualThreads:  false,
		Carriers:        0,
		Database: DatabaseConfig{
			DSN:          "file::memory:?cache=shared",
			MaxOpenConns: 0,
		},
		Log: LogConfig{
			Level:  "INFO",
			Format: "json",
		},
	}
}

// Validate checks the configuration and fills in derived defaults.
func (c *Config) Validate() error {
	var errs []error

	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.Carriers < 0 {
		errs = append(errs, fmt.Errorf("carriers must not be negative, got %d", c.Carriers))
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if c.Database.MaxOpenConns < 0 {
		errs = append(errs, fmt.Errorf("database.max_open_conns must not be negative, got %d", c.Database.MaxOpenConns))
	}
	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		errs = append(errs, errors.New("tls.cert_file and tls.key_file must be set together"))
	}
	if !slices.Contains(logging.ValidLevels(), strings.ToUpper(c.Log.Level)) {
		errs = append(errs, fmt.Errorf("log.level must be one of %s, got %q",
			strings.Join(logging.ValidLevels(), ", "), c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or text, got %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}

	if c.Carriers == 0 {
		c.Carriers = runtime.NumCPU()
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// TLSEnabled reports whether a certificate pair is configured.
func (c *Config) TLSEnabled() bool {
	return c.TLS.CertFile != "" && c.TLS.KeyFile != ""
}
