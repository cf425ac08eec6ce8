// Package stdout implements a Transport that prints messages instead of
// delivering them. It is meant for local development.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/shineum/form-mailer-lite/internal/mail"
	"github.com/shineum/form-mailer-lite/internal/transport"
)

// Transport prints messages in a human-readable format.
type Transport struct {
	mu sync.Mutex
	// writer is the output destination, defaulting to os.Stdout.
	writer io.Writer
	closed transport.Latch
}

// New creates a Transport that writes to os.Stdout.
func New() *Transport {
	return &Transport{writer: os.Stdout}
}

// NewWithWriter creates a Transport that writes to w.
// This is useful for testing.
func NewWithWriter(w io.Writer) *Transport {
	return &Transport{writer: w}
}

// Send prints the message and reports every recipient as accepted.
func (t *Transport) Send(_ context.Context, opts mail.Options) (*mail.Outcome, error) {
	if t.closed.Closed() {
		return nil, transport.ErrClosed
	}

	recipients := mail.Recipients(opts.To)
	if len(recipients) == 0 {
		return nil, fmt.Errorf("no recipients defined")
	}
	messageID := mail.NewMessageID(opts.From)

	var b strings.Builder
	b.WriteString("========================================\n")
	fmt.Fprintf(&b, "Message-ID: %s\n", messageID)
	fmt.Fprintf(&b, "From: %s\n", opts.From)
	fmt.Fprintf(&b, "To: %s\n", strings.Join(recipients, ", "))
	if opts.ReplyTo != "" {
		fmt.Fprintf(&b, "Reply-To: %s\n", opts.ReplyTo)
	}
	fmt.Fprintf(&b, "Subject: %s\n", opts.Subject)
	b.WriteString("Body:\n")

	body := opts.Text
	if body == "" {
		body = opts.HTML
	}
	b.WriteString(body + "\n")
	b.WriteString("========================================\n")

	t.mu.Lock()
	_, err := io.WriteString(t.writer, b.String())
	t.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to print message: %w", err)
	}

	return &mail.Outcome{
		Accepted:  recipients,
		Rejected:  []string{},
		Response:  "250 Message printed",
		MessageID: messageID,
	}, nil
}

// Close marks the transport closed.
func (t *Transport) Close() error {
	t.closed.Close()
	return nil
}

// Name returns the transport name.
func (t *Transport) Name() string {
	return "stdout"
}
