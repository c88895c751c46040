package transport

import "fmt"

// New creates a transport instance from the given config. The client is used
// only by HTTP API transports and may be nil otherwise.
func New(cfg Config, client HTTPClient) (Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transport config: %w", err)
	}

	switch cfg.Type {
	case "smtp":
		return NewSMTP(cfg), nil
	case "sendgrid":
		if client == nil {
			client = NewHTTPClient(cfg.Timeout)
		}
		return NewSendGrid(cfg, client), nil
	case "mailgun":
		if client == nil {
			client = NewHTTPClient(cfg.Timeout)
		}
		return NewMailgun(cfg, client), nil
	case "stdout":
		return NewStdout(cfg), nil
	case "file":
		return NewFile(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", cfg.Type)
	}
}
