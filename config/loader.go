package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. LOOM_VIRTUAL_THREADS
// or LOOM_DATABASE_DSN.
const EnvPrefix = "LOOM"

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"port":             "port",
	"read-timeout":     "read_timeout",
	"write-timeout":    "write_timeout",
	"shutdown-timeout": "shutdown_timeout",
	"env":              "env",
	"virtual-threads":  "virtual_threads",
	"carriers":         "carriers",
	"db-dsn":           "database.dsn",
	"db-max-open":      "database.max_open_conns",
	"log-level":        "log.level",
	"log-format":       "log.format",
	"tls-cert":         "tls.cert_file",
	"tls-key":          "tls.key_file",
}

// SetDefaults registers every key with its default so that environment
// variables are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("port", d.Port)
	v.SetDefault("read_timeout", d.ReadTimeout)
	v.SetDefault("write_timeout", d.WriteTimeout)
	v.SetDefault("shutdown_timeout", d.ShutdownTimeout)
	v.SetDefault("env", d.Env)
	v.SetDefault("virtual_threads", d.VirtualThreads)
	v.SetDefault("carriers", d.Carriers)
	v.SetDefault("database.dsn", d.Database.DSN)
	v.SetDefault("database.max_open_conns", d.Database.MaxOpenConns)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("tls.cert_file", d.TLS.CertFile)
	v.SetDefault("tls.key_file", d.TLS.KeyFile)
}

// RegisterFlags adds the server flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.Int("port", d.Port, "HTTP server port")
	fs.Duration("read-timeout", d.ReadTimeout, "HTTP read timeout")
	fs.Duration("write-timeout", d.WriteTimeout, "HTTP write timeout")
	fs.Duration("shutdown-timeout", d.ShutdownTimeout, "grace period for in-flight requests and non-daemon threads")
	fs.String("env", d.Env, "environment (development/production)")
	fs.Bool("virtual-threads", d.VirtualThreads, "run request threads as lightweight threads on the carrier pool")
	fs.Int("carriers", d.Carriers, "carrier pool size (0 = number of CPUs)")
	fs.String("db-dsn", d.Database.DSN, "sqlite DSN for the /sql endpoint")
	fs.Int("db-max-open", d.Database.MaxOpenConns, "maximum open database connections (0 = unlimited)")
	fs.String("log-level", d.Log.Level, "log level (DEBUG, INFO, WARN, ERROR)")
	fs.String("log-format", d.Log.Format, "log format (json, text)")
	fs.String("tls-cert", "", "TLS certificate file (enables h2 over TLS)")
	fs.String("tls-key", "", "TLS key file")
}

// BindFlags binds the flags registered by RegisterFlags to v.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load resolves the configuration from defaults, an optional config file,
// LOOM_* environment variables and bound flags, in increasing precedence.
// An empty file searches ./loom.{yaml,toml,json} and ignores a missing one.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("loom")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
