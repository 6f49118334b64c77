package config

// ServerConfig lists the endpoints the demo peer listens on.
// Example YAML:
// server:
//   listen:
//     - "tcp://0.0.0.0:9090"
//     - "ws://0.0.0.0:9091"
//     - "quic://0.0.0.0:9092"
//     - "winpipe://ttstream"
type ServerConfig struct {
    Listen []string `mapstructure:"listen"`
}
