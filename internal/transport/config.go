package transport

import (
	"errors"
	"time"
)

// Config holds configuration for a delivery transport.
type Config struct {
	// Type identifies the transport: "smtp", "sendgrid", "mailgun", "stdout", "file".
	Type string `mapstructure:"type"`

	// From is the envelope sender address for all outbound mail.
	From string `mapstructure:"from"`

	// Timeout is the maximum duration for a single delivery call.
	Timeout time.Duration `mapstructure:"timeout"`

	// SMTP-specific fields.
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	ImplicitTLS bool   `mapstructure:"implicit_tls"`

	// APIKey is the authentication credential for HTTP API transports.
	APIKey string `mapstructure:"api_key"`

	// Endpoint overrides the default API URL (useful for testing).
	Endpoint string `mapstructure:"endpoint"`

	// Domain is the Mailgun sending domain.
	Domain string `mapstructure:"domain"`
}

const defaultTimeout = 30 * time.Second

// Validate checks that required fields are set based on transport type.
func (c *Config) Validate() error {
	if c.Type == "" {
		return errors.New("transport type is required")
	}
	if c.From == "" {
		return errors.New("transport from address is required")
	}

	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}

	switch c.Type {
	case "smtp":
		if c.Host == "" {
			return errors.New("smtp: host is required")
		}
		if c.Port == 0 {
			c.Port = 587
		}
	case "sendgrid":
		if c.APIKey == "" {
			return errors.New("sendgrid: api_key is required")
		}
	case "mailgun":
		if c.APIKey == "" {
			return errors.New("mailgun: api_key is required")
		}
		if c.Domain == "" {
			return errors.New("mailgun: domain is required")
		}
	case "stdout":
		// No configuration required.
	case "file":
		// Endpoint is used as output directory; optional.
	default:
		return errors.New("unknown transport type: " + c.Type)
	}

	return nil
}
