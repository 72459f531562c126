package notify

import (
	"os"

	"receiptcore/internal/config"
)

// FromConfig builds the Sender named by cfg.NotifySender ("mailgun",
// "sendgrid", or "ses"), mirroring cmd/send-email/main.go's
// `-provider` flag switch but resolved from ambient configuration instead
// of a CLI flag, since the orchestrator has no interactive operator.
func FromConfig(cfg config.Config) Sender {
	switch cfg.NotifySender {
	case "mailgun":
		return MailgunSender{Domain: cfg.MailgunDomain, APIKey: os.Getenv("MAILGUN_API_KEY")}
	case "sendgrid":
		return SendgridSender{APIKey: os.Getenv("SENDGRID_API_KEY"), FromName: cfg.SendgridFromName}
	default:
		return &SESSender{Region: cfg.AWSRegion}
	}
}
