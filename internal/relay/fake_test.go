package relay

import (
	"context"
	"errors"
	"sync"

	"github.com/shineum/form-mailer-lite/internal/mail"
	"github.com/shineum/form-mailer-lite/internal/transport"
)

// fakeTransport implements transport.Transport for testing.
type fakeTransport struct {
	mu       sync.Mutex
	sent     []mail.Options
	outcome  *mail.Outcome
	sendErr  error
	closeErr error
	closed   bool
}

func (f *fakeTransport) Send(_ context.Context, opts mail.Options) (*mail.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, transport.ErrClosed
	}
	f.sent = append(f.sent, opts)
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	if len(mail.Recipients(opts.To)) == 0 {
		return nil, errors.New("no recipients defined")
	}
	if f.outcome != nil {
		out := *f.outcome
		return &out, nil
	}
	return &mail.Outcome{
		Accepted:  []string{opts.To},
		Rejected:  []string{},
		Response:  "250 OK",
		MessageID: "id-1",
	}, nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return f.closeErr
}

func (f *fakeTransport) Name() string {
	return "fake"
}

func (f *fakeTransport) sends() []mail.Options {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]mail.Options, len(f.sent))
	copy(out, f.sent)
	return out
}

func openWith(tr transport.Transport) Opener {
	return func(context.Context) (transport.Transport, error) {
		return tr, nil
	}
}

func failingOpener(context.Context) (transport.Transport, error) {
	return nil, errors.New("connection refused")
}

var testDefaults = mail.MessageDefaults{
	From:    "welcome.team@example.com",
	Subject: "Welcome",
	Text:    "Thank you for signing up today.",
}
