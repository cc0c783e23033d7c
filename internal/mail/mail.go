// Package mail delivers transactional email through a pluggable transport.
package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"

	"github.com/tourhub/tourhub/internal/config"
	"github.com/tourhub/tourhub/internal/observability"
)

var ErrCircuitOpen = errors.New("mail circuit breaker open")

type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New builds the transport named by cfg.MailProvider behind a breaker.
func New(cfg config.Config, log *slog.Logger, prom *observability.Prom) (Mailer, error) {
	from, err := mail.ParseAddress(cfg.MailFrom)
	if err != nil {
		return nil, fmt.Errorf("parse MAIL_FROM: %w", err)
	}

	var inner Mailer
	switch cfg.MailProvider {
	case "sendgrid":
		if cfg.SendGridAPIKey == "" {
			return nil, errors.New("SENDGRID_API_KEY is required for the sendgrid provider")
		}
		inner = NewSendGridMailer(cfg.SendGridAPIKey, from.Name, from.Address)
	case "mailgun":
		if cfg.MailgunDomain == "" || cfg.MailgunAPIKey == "" {
			return nil, errors.New("MAILGUN_DOMAIN and MAILGUN_API_KEY are required for the mailgun provider")
		}
		inner = NewMailgunMailer(cfg.MailgunDomain, cfg.MailgunAPIKey, from.String())
	default:
		inner = NewLogMailer(log)
	}

	return NewProtectedMailer(inner, ProtectedMailerConfig{
		Provider: cfg.MailProvider,
		Timeout:  cfg.MailTimeout,
		Prom:     prom,
	}), nil
}

type LogMailer struct {
	log *slog.Logger
}

func NewLogMailer(log *slog.Logger) *LogMailer {
	if log == nil {
		log = slog.Default()
	}
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.log.InfoContext(ctx, "mail.send",
		"to", msg.To,
		"subject", msg.Subject,
		"text", msg.Text,
	)
	return nil
}
