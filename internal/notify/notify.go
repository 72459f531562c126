// Package notify sends the "receipt needs manual review" notification
// (SPEC_FULL.md's ambient-stack extension: observability on the manual
// review branch of spec §4.10's orchestrator). No teacher source exists
// under src/pkg/email despite cmd/send-email/main.go importing
// "expense-tracker/src/pkg/email" and driving it through an
// `email.Provider` string switch and an `email.SendMessage(provider,
// sendEmails, sender, recipients, subject, text, html, attachments)` call
// — this package is authored fresh from that call-site contract,
// generalized behind a narrow Sender interface instead of the missing
// package's single free function, selected by internal/config's
// NotifySender setting.
package notify

import (
	"context"

	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
	"github.com/tuumbleweed/xerr"
)

// Message is the notification payload: plain text and HTML bodies, mirroring
// the teacher's side-by-side text/html file pair.
type Message struct {
	Sender     string
	Recipients []string
	Subject    string
	Text       string
	HTML       string
}

// Sender delivers a Message through one concrete email provider.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg Message) *xerr.Error
}

// Dispatch sends msg through sender, logging success/failure in the
// teacher's tl.Log idiom. Receipt-review notification failures are
// deliberately non-fatal to the workflow: a lost email must never sink an
// otherwise-successful receipt processing run.
func Dispatch(ctx context.Context, sender Sender, msg Message) {
	tl.Log(tl.Info1, palette.Blue, "Sending %s notification via '%s' to %v", "receipt-review", sender.Name(), msg.Recipients)

	if e := sender.Send(ctx, msg); e != nil {
		tl.Log(tl.Warning, palette.YellowBold, "Failed to send %s notification via '%s': %s", "receipt-review", sender.Name(), e)
		return
	}
	tl.Log(tl.Info1, palette.Green, "Sent %s notification via '%s'", "receipt-review", sender.Name())
}
