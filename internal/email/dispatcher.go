package email

import (
	"context"
	"time"
)

// Dispatcher renders the service's mail templates and hands them to the
// SMTP sender. It satisfies the auth package's EmailDispatcher contract.
type Dispatcher struct {
	sender *Sender
}

func NewDispatcher(sender *Sender) *Dispatcher {
	return &Dispatcher{sender: sender}
}

func (d *Dispatcher) SendVerificationCode(ctx context.Context, to, code string, validFor time.Duration) error {
	content := VerificationEmail(code, int(validFor.Minutes()))
	return d.sender.Send(ctx, to, content.Subject, content.Text, content.HTML)
}

func (d *Dispatcher) SendMagicLink(ctx context.Context, to, link string, validFor time.Duration) error {
	content := MagicLinkEmail(link, int(validFor.Minutes()))
	return d.sender.Send(ctx, to, content.Subject, content.Text, content.HTML)
}
