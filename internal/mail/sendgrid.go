package mail

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

type SendGridMailer struct {
	client *sendgrid.Client
	from   *sgmail.Email
}

func NewSendGridMailer(apiKey, fromName, fromAddr string) *SendGridMailer {
	return &SendGridMailer{
		client: sendgrid.NewSendClient(apiKey),
		from:   sgmail.NewEmail(fromName, fromAddr),
	}
}

func (m *SendGridMailer) Send(ctx context.Context, msg Message) error {
	to := sgmail.NewEmail(msg.ToName, msg.To)
	message := sgmail.NewSingleEmail(m.from, msg.Subject, to, msg.Text, msg.HTML)

	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	return checkSendGridResponse(resp)
}

// SendGrid accepts a message with 202; anything else is a rejection.
func checkSendGridResponse(resp *rest.Response) error {
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("sendgrid rejected message: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
