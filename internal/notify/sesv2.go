package notify

import (
	"context"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/tuumbleweed/xerr"
)

// SESSender sends through AWS SESv2, mirroring cmd/send-email/main.go's
// "ses" provider branch. It is the default backend FromConfig selects for
// the orchestrator's manual-review notification (the pipeline already
// depends on AWS for Textract); Mailgun and SendGrid remain selectable.
type SESSender struct {
	Region string

	client *sesv2.Client
}

func (s *SESSender) Name() string { return "ses" }

func (s *SESSender) ensureClient(ctx context.Context) (*sesv2.Client, *xerr.Error) {
	if s.client != nil {
		return s.client, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(s.Region))
	if err != nil {
		return nil, xerr.NewError(err, "load AWS config for SESv2 client", s.Region)
	}
	s.client = sesv2.NewFromConfig(cfg)
	return s.client, nil
}

func (s *SESSender) Send(ctx context.Context, msg Message) *xerr.Error {
	client, e := s.ensureClient(ctx)
	if e != nil {
		return e
	}

	body := &types.Body{
		Text: &types.Content{Data: &msg.Text},
	}
	if msg.HTML != "" {
		body.Html = &types.Content{Data: &msg.HTML}
	}

	_, err := client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: &msg.Sender,
		Destination:      &types.Destination{ToAddresses: msg.Recipients},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: &msg.Subject},
				Body:    body,
			},
		},
	})
	if err != nil {
		return xerr.NewError(err, "send email via SESv2", msg.Subject)
	}
	return nil
}
