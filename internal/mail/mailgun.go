package mail

import (
	"context"
	"fmt"

	"github.com/mailgun/mailgun-go/v4"
)

type MailgunMailer struct {
	mg   *mailgun.MailgunImpl
	from string
}

func NewMailgunMailer(domain, apiKey, from string) *MailgunMailer {
	return &MailgunMailer{
		mg:   mailgun.NewMailgun(domain, apiKey),
		from: from,
	}
}

func (m *MailgunMailer) Send(ctx context.Context, msg Message) error {
	message := m.mg.NewMessage(m.from, msg.Subject, msg.Text)
	if msg.HTML != "" {
		message.SetHtml(msg.HTML)
	}
	if err := message.AddRecipient(msg.To); err != nil {
		return fmt.Errorf("mailgun recipient: %w", err)
	}

	if _, _, err := m.mg.Send(ctx, message); err != nil {
		return fmt.Errorf("mailgun send: %w", err)
	}
	return nil
}
