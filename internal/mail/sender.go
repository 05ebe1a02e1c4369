// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

package mail

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"
	gomail "github.com/wneessen/go-mail"
)

// Sender delivers one message. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig describes the outbound relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// SMTPSender delivers mail through an SMTP relay, one connection per message.
type SMTPSender struct {
	mu     sync.Mutex
	client *gomail.Client
	from   string
}

// NewSMTPSender builds a client for cfg. It does not connect until Send.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, oops.Code("MAIL_CONFIG_INVALID").Errorf("smtp host is required")
	}
	if cfg.From == "" {
		return nil, oops.Code("MAIL_CONFIG_INVALID").Errorf("sender address is required")
	}

	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, gomail.WithTimeout(cfg.Timeout))
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, oops.Code("MAIL_CONFIG_INVALID").With("host", cfg.Host).Wrap(err)
	}
	return &SMTPSender{client: client, from: cfg.From}, nil
}

// Send renders msg as multipart text/html and delivers it.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m := gomail.NewMsg()
	if err := m.From(s.from); err != nil {
		return oops.Code("MAIL_ADDRESS_INVALID").With("from", s.from).Wrap(err)
	}
	if err := m.To(msg.To); err != nil {
		return oops.Code("MAIL_ADDRESS_INVALID").With("to", msg.To).Wrap(err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(gomail.TypeTextHTML, msg.HTML)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return oops.Code("MAIL_SEND_FAILED").With("kind", msg.Kind).Wrap(err)
	}
	return nil
}

// LogSender writes messages to the log instead of sending them. It is used
// when no SMTP host is configured so links stay reachable in development.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender. A nil logger uses slog.Default().
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Send logs msg.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "mail not sent, no smtp host configured",
		"kind", msg.Kind,
		"to", msg.To,
		"subject", msg.Subject,
	)
	s.logger.DebugContext(ctx, "mail body", "kind", msg.Kind, "text", msg.Text)
	return nil
}
