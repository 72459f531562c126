package notify

import (
	"context"
	"fmt"

	sendgrid "github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/tuumbleweed/xerr"
)

// SendgridSender sends through SendGrid's HTTP API, mirroring
// cmd/send-email/main.go's "sendgrid" provider branch.
type SendgridSender struct {
	APIKey   string
	FromName string
}

func (s SendgridSender) Name() string { return "sendgrid" }

func (s SendgridSender) Send(_ context.Context, msg Message) *xerr.Error {
	from := mail.NewEmail(s.FromName, msg.Sender)
	client := sendgrid.NewSendClient(s.APIKey)

	for _, recipient := range msg.Recipients {
		to := mail.NewEmail("", recipient)
		message := mail.NewSingleEmail(from, msg.Subject, to, msg.Text, msg.HTML)

		resp, err := client.Send(message)
		if err != nil {
			return xerr.NewError(err, "send email via SendGrid", recipient)
		}
		if resp.StatusCode >= 300 {
			return xerr.NewError(fmt.Errorf("sendgrid status %d", resp.StatusCode), "SendGrid rejected email", resp.Body)
		}
	}
	return nil
}
