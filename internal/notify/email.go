package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// EmailSender delivers alerts as plain-text email through SendGrid, for
// audiences that prefer an inbox over a chat channel.
type EmailSender struct {
	apiKey      string
	fromName    string
	fromAddress string
	to          string
	subject     string
}

func NewEmailSender(apiKey, fromName, fromAddress, to, subject string) *EmailSender {
	return &EmailSender{
		apiKey:      apiKey,
		fromName:    fromName,
		fromAddress: fromAddress,
		to:          to,
		subject:     subject,
	}
}

func (e *EmailSender) Send(_ context.Context, msg Message) error {
	from := mail.NewEmail(e.fromName, e.fromAddress)
	to := mail.NewEmail("", e.to)
	body := msg.PlainText()
	email := mail.NewSingleEmail(from, e.subject, to, body, body)

	client := sendgrid.NewSendClient(e.apiKey)
	response, err := client.Send(email)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: status %d", response.StatusCode)
	}

	return nil
}
