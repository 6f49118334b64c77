// Package config provides YAML-based configuration loading for ttstream.
package config

import (
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"

    "github.com/spf13/viper"
)

// Config is the root application configuration.
type Config struct {
    // AppName optional logical name of the process
    AppName string `mapstructure:"app_name"`

    // Log holds logging configuration
    Log LogConfig `mapstructure:"log"`

    // Client configures outbound streams opened by `ttstream send` and library users.
    Client ClientConfig `mapstructure:"client"`

    // Server configures the demo peer started by `ttstream serve`.
    Server ServerConfig `mapstructure:"server"`

    // Metrics controls the Prometheus endpoint.
    Metrics MetricsConfig `mapstructure:"metrics"`
}

// LogConfig defines logger settings.
type LogConfig struct {
    // Level: debug, info, warn, error
    Level string `mapstructure:"level"`
    // Format: console or json
    Format string `mapstructure:"format"`
    // Outputs: list of outputs: stdout, stderr, or file paths
    Outputs []string `mapstructure:"outputs"`

    // Rotation controls file rotation when writing to files
    Rotation RotationConfig `mapstructure:"rotation"`
    // Development toggles development-friendly logging options
    Development bool `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
    Enable     bool   `mapstructure:"enable"`
    Filename   string `mapstructure:"filename"`
    MaxSizeMB  int    `mapstructure:"max_size_mb"`
    MaxBackups int    `mapstructure:"max_backups"`
    MaxAgeDays int    `mapstructure:"max_age_days"`
    Compress   bool   `mapstructure:"compress"`
}

// MetricsConfig enables the /metrics HTTP endpoint when Listen is set.
type MetricsConfig struct {
    Listen string `mapstructure:"listen"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
    return &Config{
        AppName: "ttstream",
        Log: LogConfig{
            Level:       "info",
            Format:      "console",
            Outputs:     []string{"stderr"},
            Development: true,
            Rotation: RotationConfig{
                Enable:     false,
                Filename:   "logs/ttstream.log",
                MaxSizeMB:  50,
                MaxBackups: 3,
                MaxAgeDays: 28,
                Compress:   true,
            },
        },
        Client: ClientConfig{
            Target:               "tcp://127.0.0.1:9090/echo",
            Encoding:             "json",
            DialTimeoutMS:        5000,
            DialAttempts:         1,
            DialBackoffInitialMS: 200,
            DialBackoffMaxMS:     5000,
            DialBackoffJitterMS:  50,
        },
        Server: ServerConfig{
            Listen: []string{"tcp://127.0.0.1:9090"},
        },
    }
}

// Load reads configuration from the provided path (if non-empty),
// otherwise it searches common locations and supports environment overrides.
// Environment variables use the prefix TTSTREAM and `.`/`-` are replaced with `_`.
// Example: TTSTREAM_CLIENT_ENCODING=cbor
func Load(path string) (*Config, error) {
    cfg := Default()

    v := viper.New()
    v.SetConfigType("yaml")
    v.SetEnvPrefix("TTSTREAM")
    v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
    v.AutomaticEnv()

    // seed defaults for viper so env-only configs work
    v.SetDefault("app_name", cfg.AppName)
    v.SetDefault("log.level", cfg.Log.Level)
    v.SetDefault("log.format", cfg.Log.Format)
    v.SetDefault("log.outputs", cfg.Log.Outputs)
    v.SetDefault("log.development", cfg.Log.Development)
    v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
    v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
    v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
    v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
    v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
    v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
    // Client defaults
    v.SetDefault("client.target", cfg.Client.Target)
    v.SetDefault("client.encoding", cfg.Client.Encoding)
    v.SetDefault("client.dial_timeout_ms", cfg.Client.DialTimeoutMS)
    v.SetDefault("client.dial_attempts", cfg.Client.DialAttempts)
    v.SetDefault("client.dial_backoff_initial_ms", cfg.Client.DialBackoffInitialMS)
    v.SetDefault("client.dial_backoff_max_ms", cfg.Client.DialBackoffMaxMS)
    v.SetDefault("client.dial_backoff_jitter_ms", cfg.Client.DialBackoffJitterMS)
    v.SetDefault("client.send_rate", cfg.Client.SendRate)
    v.SetDefault("client.send_burst", cfg.Client.SendBurst)
    // Server defaults
    v.SetDefault("server.listen", cfg.Server.Listen)
    v.SetDefault("metrics.listen", cfg.Metrics.Listen)

    // Choose config file
    if path == "" {
        // Allow override via env var
        if envPath := os.Getenv("TTSTREAM_CONFIG"); envPath != "" {
            path = envPath
        }
    }

    if path != "" {
        v.SetConfigFile(path)
    } else {
        // Search common locations with base name `ttstream`
        v.SetConfigName("ttstream")
        v.AddConfigPath(".")
        v.AddConfigPath("./configs")
        if home, err := os.UserHomeDir(); err == nil {
            v.AddConfigPath(filepath.Join(home, ".ttstream"))
        }
    }

    // Read config file if present; if not found, continue with defaults/env
    if err := v.ReadInConfig(); err != nil {
        var viperConfigFileNotFound viper.ConfigFileNotFoundError
        if !errors.As(err, &viperConfigFileNotFound) {
            return nil, fmt.Errorf("read config: %w", err)
        }
    }

    if err := v.Unmarshal(&cfg); err != nil {
        return nil, fmt.Errorf("decode config: %w", err)
    }

    if err := cfg.validate(); err != nil {
        return nil, err
    }
    return cfg, nil
}

func (c *Config) validate() error {
    lvl := strings.ToLower(strings.TrimSpace(c.Log.Level))
    switch lvl {
    case "debug", "info", "warn", "warning", "error":
        // ok
    default:
        return fmt.Errorf("invalid log.level: %q", c.Log.Level)
    }

    if c.Log.Format == "" {
        c.Log.Format = "console"
    }
    if len(c.Log.Outputs) == 0 {
        c.Log.Outputs = []string{"stderr"}
    }
    if err := c.Client.validate(); err != nil {
        return err
    }
    for i := range c.Server.Listen {
        c.Server.Listen[i] = strings.TrimSpace(c.Server.Listen[i])
    }
    return nil
}

// MustLoad is a convenience that panics on error.
func MustLoad(path string) *Config {
    cfg, err := Load(path)
    if err != nil {
        panic(err)
    }
    return cfg
}
