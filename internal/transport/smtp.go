package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// SMTP implements the Transport interface over a relay host using the
// emersion SMTP client. Port 465 style implicit TLS and STARTTLS submission
// are both supported.
type SMTP struct {
	host        string
	port        int
	username    string
	password    string
	from        string
	implicitTLS bool
	timeout     time.Duration
}

// NewSMTP creates an SMTP transport from the given configuration.
func NewSMTP(cfg Config) *SMTP {
	return &SMTP{
		host:        cfg.Host,
		port:        cfg.Port,
		username:    cfg.Username,
		password:    cfg.Password,
		from:        cfg.From,
		implicitTLS: cfg.ImplicitTLS,
		timeout:     cfg.Timeout,
	}
}

func (s *SMTP) Name() string { return "smtp" }

// Send relays a message to the recipient. SMTP 5xx replies are classified
// as permanent, 4xx as transient.
func (s *SMTP) Send(ctx context.Context, msg *Message) (*Result, error) {
	raw, err := buildMIME(msg)
	if err != nil {
		return nil, fmt.Errorf("smtp: build message: %w", err)
	}

	c, err := s.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("smtp: dial %s: %w", s.addr(), err)
	}
	defer c.Close()

	if s.username != "" {
		auth := sasl.NewPlainClient("", s.username, s.password)
		if err := c.Auth(auth); err != nil {
			return nil, classifySMTP("auth", err)
		}
	}

	from := msg.From
	if from == "" {
		from = s.from
	}
	if err := c.SendMail(from, []string{msg.To}, bytes.NewReader(raw)); err != nil {
		return nil, classifySMTP("send", err)
	}

	if err := c.Quit(); err != nil {
		// Message was accepted; a failed QUIT is not a delivery failure.
		_ = err
	}

	return &Result{
		MessageID: "smtp-" + msg.ID,
		Status:    StatusSent,
		Timestamp: time.Now(),
	}, nil
}

// HealthCheck verifies the relay accepts connections.
func (s *SMTP) HealthCheck(ctx context.Context) error {
	c, err := s.dial(ctx)
	if err != nil {
		return fmt.Errorf("smtp: health check: %w", err)
	}
	defer c.Close()
	if err := c.Noop(); err != nil {
		return fmt.Errorf("smtp: health check noop: %w", err)
	}
	return c.Quit()
}

func (s *SMTP) addr() string {
	return net.JoinHostPort(s.host, strconv.Itoa(s.port))
}

// dial opens an SMTP session, honoring the context deadline through the
// client's command timeout.
func (s *SMTP) dial(_ context.Context) (*smtp.Client, error) {
	var (
		c   *smtp.Client
		err error
	)
	if s.implicitTLS {
		c, err = smtp.DialTLS(s.addr(), nil)
	} else {
		c, err = smtp.DialStartTLS(s.addr(), nil)
	}
	if err != nil {
		return nil, err
	}
	c.CommandTimeout = s.timeout
	c.SubmissionTimeout = s.timeout
	return c, nil
}

// classifySMTP maps an SMTP reply into a TransportError when the server
// returned a reply code, and wraps transport-level errors otherwise.
func classifySMTP(op string, err error) error {
	var smtpErr *smtp.SMTPError
	if errors.As(err, &smtpErr) {
		return ClassifySMTPError(smtpErr.Code, smtpErr.Message)
	}
	return fmt.Errorf("smtp: %s: %w", op, err)
}
