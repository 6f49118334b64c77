package config

import (
    "fmt"
    "strings"
    "time"
)

// ClientConfig contains stream client options.
type ClientConfig struct {
    // Target is the default endpoint URL, e.g. tcp://127.0.0.1:9090/echo
    Target string `mapstructure:"target"`
    // Encoding: json or cbor (proto needs generated message types)
    Encoding string `mapstructure:"encoding"`

    DialTimeoutMS        int `mapstructure:"dial_timeout_ms"`
    DialAttempts         int `mapstructure:"dial_attempts"`
    DialBackoffInitialMS int `mapstructure:"dial_backoff_initial_ms"`
    DialBackoffMaxMS     int `mapstructure:"dial_backoff_max_ms"`
    DialBackoffJitterMS  int `mapstructure:"dial_backoff_jitter_ms"`

    // SendRate caps messages per second on each stream; zero disables pacing.
    SendRate  int64 `mapstructure:"send_rate"`
    SendBurst int64 `mapstructure:"send_burst"`
}

func (c *ClientConfig) validate() error {
    c.Encoding = strings.ToLower(strings.TrimSpace(c.Encoding))
    switch c.Encoding {
    case "", "json", "cbor", "proto":
    default:
        return fmt.Errorf("invalid client.encoding: %q", c.Encoding)
    }
    if c.DialTimeoutMS < 0 || c.DialAttempts < 0 || c.SendRate < 0 || c.SendBurst < 0 {
        return fmt.Errorf("client dial settings must not be negative")
    }
    if c.DialAttempts == 0 {
        c.DialAttempts = 1
    }
    return nil
}

// DialTimeout returns the dial timeout, or zero for none.
func (c ClientConfig) DialTimeout() time.Duration { return ms(c.DialTimeoutMS) }

func (c ClientConfig) BackoffInitial() time.Duration { return ms(c.DialBackoffInitialMS) }
func (c ClientConfig) BackoffMax() time.Duration { return ms(c.DialBackoffMaxMS) }
func (c ClientConfig) BackoffJitter() time.Duration { return ms(c.DialBackoffJitterMS) }

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
