package client

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/displaylink/internal/protocol/frame"
)

// SecurityMode selects the transport policy enforced before dialing.
type SecurityMode string

const (
	SecurityModeDevelopment SecurityMode = "development"
	SecurityModeProduction  SecurityMode = "production"
)

var (
	ErrHostRequired     = errors.New("client: host required")
	ErrPortInvalid      = errors.New("client: port out of range")
	ErrClientIDRequired = errors.New("client: client_id required")

	ErrInvalidSecurityMode     = errors.New("client: invalid security mode")
	ErrTLSRequired             = errors.New("client: tls required")
	ErrTLSCAFileRequired       = errors.New("client: tls ca file required")
	ErrTLSCertFileRequired     = errors.New("client: tls cert file required")
	ErrTLSKeyFileRequired      = errors.New("client: tls key file required")
	ErrTLSInsecureSkipNotAllow = errors.New("client: insecure skip verify not allowed")
)

// TLSConfig describes the optional encrypted transport.
type TLSConfig struct {
	Enabled            bool
	Mutual             bool
	InsecureSkipVerify bool
	CAFile             string
	CertFile           string
	KeyFile            string
	ServerName         string
}

// Config carries everything a Client needs at construction time. Host and
// port come from the caller; there are no environment or file inputs here.
type Config struct {
	Host     string
	Port     int
	ClientID string

	ConnectTimeout   time.Duration
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration

	// KeepAlivePeriod is handed to net.Dialer; zero picks the default
	// probing interval, negative disables keep-alive.
	KeepAlivePeriod time.Duration

	// ReadBufferBytes bounds a single transport read.
	ReadBufferBytes int

	Limits frame.Limits

	SecurityMode SecurityMode
	TLS          TLSConfig
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout:   5 * time.Second,
		HandshakeTimeout: 5 * time.Second,
		WriteTimeout:     10 * time.Second,
		KeepAlivePeriod:  30 * time.Second,
		ReadBufferBytes:  64 * 1024,
		Limits:           frame.DefaultLimits(),
		SecurityMode:     SecurityModeDevelopment,
	}
}

func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.KeepAlivePeriod == 0 {
		c.KeepAlivePeriod = def.KeepAlivePeriod
	}
	if c.ReadBufferBytes <= 0 {
		c.ReadBufferBytes = def.ReadBufferBytes
	}
	if c.Limits.MaxAuthBytes == 0 {
		c.Limits.MaxAuthBytes = def.Limits.MaxAuthBytes
	}
	if c.Limits.MaxPayloadBytes == 0 {
		c.Limits.MaxPayloadBytes = def.Limits.MaxPayloadBytes
	}
	if strings.TrimSpace(string(c.SecurityMode)) == "" {
		c.SecurityMode = def.SecurityMode
	}
	return c
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return ErrHostRequired
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrPortInvalid, c.Port)
	}
	if strings.TrimSpace(c.ClientID) == "" {
		return ErrClientIDRequired
	}
	return c.ValidateTransport()
}

// ValidateTransport enforces the security mode before any dial happens.
// Production refuses plaintext and unverified peers outright.
func (c Config) ValidateTransport() error {
	mode := SecurityMode(strings.ToLower(strings.TrimSpace(string(c.SecurityMode))))
	switch mode {
	case "", SecurityModeDevelopment, SecurityModeProduction:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSecurityMode, c.SecurityMode)
	}

	if mode == SecurityModeProduction {
		if !c.TLS.Enabled {
			return ErrTLSRequired
		}
		if c.TLS.InsecureSkipVerify {
			return ErrTLSInsecureSkipNotAllow
		}
	}
	if c.TLS.Mutual && !c.TLS.Enabled {
		return ErrTLSRequired
	}
	if c.TLS.Enabled && strings.TrimSpace(c.TLS.CAFile) == "" && !c.TLS.InsecureSkipVerify {
		return ErrTLSCAFileRequired
	}
	if c.TLS.Mutual {
		if strings.TrimSpace(c.TLS.CertFile) == "" {
			return ErrTLSCertFileRequired
		}
		if strings.TrimSpace(c.TLS.KeyFile) == "" {
			return ErrTLSKeyFileRequired
		}
	}
	return nil
}

// Address joins host and port for dialing.
func (c Config) Address() string {
	return net.JoinHostPort(strings.TrimSpace(c.Host), strconv.Itoa(c.Port))
}
