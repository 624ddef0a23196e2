package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/displaylink/internal/client"
)

// ClientConfig is the on-disk shape consumed by displayctl.
type ClientConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	ClientID string `toml:"client_id"`
	User     string `toml:"user"`

	SecurityMode string    `toml:"security_mode"`
	TLS          TLSConfig `toml:"tls"`

	ConnectTimeoutMS int `toml:"connect_timeout_ms"`
	WriteTimeoutMS   int `toml:"write_timeout_ms"`
	ReadBufferBytes  int `toml:"read_buffer_bytes"`
	MaxPayloadBytes  int `toml:"max_payload_bytes"`

	Reconnect bool `toml:"reconnect"`
}

type TLSConfig struct {
	Enabled            bool   `toml:"enabled"`
	Mutual             bool   `toml:"mutual"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
	CAFile             string `toml:"ca_file"`
	CertFile           string `toml:"cert_file"`
	KeyFile            string `toml:"key_file"`
	ServerName         string `toml:"server_name"`
}

func LoadClientConfig(path string) (ClientConfig, error) {
	var cfg ClientConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return ClientConfig{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "displayctl"
	}
	if err := ValidateClientConfig(cfg); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

func ValidateClientConfig(cfg ClientConfig) error {
	if strings.TrimSpace(cfg.Host) == "" {
		return fmt.Errorf("config: host required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", cfg.Port)
	}
	if cfg.ConnectTimeoutMS < 0 || cfg.WriteTimeoutMS < 0 {
		return fmt.Errorf("config: negative timeout")
	}
	return nil
}

// SessionConfig maps the file shape onto the client package's Config.
func (c ClientConfig) SessionConfig() client.Config {
	out := client.DefaultConfig()
	out.Host = c.Host
	out.Port = c.Port
	out.ClientID = c.ClientID
	if c.ConnectTimeoutMS > 0 {
		out.ConnectTimeout = time.Duration(c.ConnectTimeoutMS) * time.Millisecond
	}
	if c.WriteTimeoutMS > 0 {
		out.WriteTimeout = time.Duration(c.WriteTimeoutMS) * time.Millisecond
	}
	if c.ReadBufferBytes > 0 {
		out.ReadBufferBytes = c.ReadBufferBytes
	}
	if c.MaxPayloadBytes > 0 {
		out.Limits.MaxPayloadBytes = uint32(c.MaxPayloadBytes)
	}
	if c.SecurityMode != "" {
		out.SecurityMode = client.SecurityMode(c.SecurityMode)
	}
	out.TLS = client.TLSConfig{
		Enabled:            c.TLS.Enabled,
		Mutual:             c.TLS.Mutual,
		InsecureSkipVerify: c.TLS.InsecureSkipVerify,
		CAFile:             c.TLS.CAFile,
		CertFile:           c.TLS.CertFile,
		KeyFile:            c.TLS.KeyFile,
		ServerName:         c.TLS.ServerName,
	}
	return out
}
