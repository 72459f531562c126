package notify

import (
	"context"

	"github.com/mailgun/mailgun-go/v4"

	"github.com/tuumbleweed/xerr"
)

// MailgunSender sends through Mailgun's HTTP API, mirroring
// cmd/send-email/main.go's "mailgun" provider branch.
type MailgunSender struct {
	Domain string
	APIKey string
}

func (s MailgunSender) Name() string { return "mailgun" }

func (s MailgunSender) Send(ctx context.Context, msg Message) *xerr.Error {
	mg := mailgun.NewMailgun(s.Domain, s.APIKey)

	m := mg.NewMessage(msg.Sender, msg.Subject, msg.Text, msg.Recipients...)
	if msg.HTML != "" {
		m.SetHTML(msg.HTML)
	}

	_, _, err := mg.Send(ctx, m)
	if err != nil {
		return xerr.NewError(err, "send email via Mailgun", msg.Subject)
	}
	return nil
}
