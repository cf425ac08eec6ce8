// Package postmark implements a Transport that sends mail through the
// Postmark transactional API.
package postmark

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mrz1836/postmark"

	"github.com/shineum/form-mailer-lite/internal/mail"
	"github.com/shineum/form-mailer-lite/internal/transport"
)

// Config holds the Postmark credentials.
type Config struct {
	ServerToken  string
	AccountToken string
}

// EmailAPI is the subset of the Postmark client used by the transport.
type EmailAPI interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
}

// Transport sends mail via Postmark.
type Transport struct {
	client EmailAPI
	closed transport.Latch
}

// New creates a Transport. The server token is required.
func New(cfg Config) (*Transport, error) {
	if cfg.ServerToken == "" {
		return nil, fmt.Errorf("postmark server token is required")
	}
	return NewWithClient(postmark.NewClient(cfg.ServerToken, cfg.AccountToken)), nil
}

// NewWithClient creates a Transport with a custom client, used for testing.
func NewWithClient(client EmailAPI) *Transport {
	return &Transport{client: client}
}

// Send delivers one message. A non-zero Postmark error code is a failure.
func (t *Transport) Send(ctx context.Context, opts mail.Options) (*mail.Outcome, error) {
	if t.closed.Closed() {
		return nil, transport.ErrClosed
	}

	recipients := mail.Recipients(opts.To)
	if len(recipients) == 0 {
		return nil, fmt.Errorf("no recipients defined")
	}

	resp, err := t.client.SendEmail(ctx, postmark.Email{
		From:     opts.From,
		To:       strings.Join(recipients, ","),
		ReplyTo:  opts.ReplyTo,
		Subject:  opts.Subject,
		TextBody: opts.Text,
		HTMLBody: opts.HTML,
	})
	if err != nil {
		return nil, fmt.Errorf("postmark request failed: %w", err)
	}
	if resp.ErrorCode > 0 {
		return nil, fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message)
	}

	slog.Debug("postmark message sent", "message_id", resp.MessageID)

	return &mail.Outcome{
		Accepted:  recipients,
		Rejected:  []string{},
		Response:  fmt.Sprintf("250 %s", resp.Message),
		MessageID: resp.MessageID,
	}, nil
}

// Close marks the transport closed.
func (t *Transport) Close() error {
	t.closed.Close()
	return nil
}

// Name returns the transport name.
func (t *Transport) Name() string {
	return "postmark"
}
