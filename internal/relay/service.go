// Package relay turns form POSTs into outgoing mail: it owns the transport
// lifecycle, the dispatcher and the HTTP request handler.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/shineum/form-mailer-lite/internal/mail"
	"github.com/shineum/form-mailer-lite/internal/transport"
)

// Version identifies this build in the startup log line.
const Version = "1.0.0"

// ErrNoTransport is returned by Send when startup could not create a
// transport.
var ErrNoTransport = errors.New("transport unavailable")

// Opener creates the shared transport. It is called once by Startup.
type Opener func(ctx context.Context) (transport.Transport, error)

// Service owns the single shared transport and dispatches sends through it.
type Service struct {
	open     Opener
	defaults mail.MessageDefaults

	mu         sync.RWMutex
	transport  transport.Transport
	dispatcher *Dispatcher
}

// NewService returns a Service that will build its transport with open.
func NewService(open Opener, defaults mail.MessageDefaults) *Service {
	return &Service{open: open, defaults: defaults}
}

// Startup creates the transport. A failure is logged rather than returned:
// the service keeps running and every send reports ErrNoTransport.
func (s *Service) Startup(ctx context.Context) {
	slog.Debug("form-mailer-lite", "version", Version, "license", "MIT")

	tr, err := s.open(ctx)
	if err != nil {
		slog.Error("unable to create mail transport", "error", err)
		return
	}

	s.mu.Lock()
	s.transport = tr
	s.dispatcher = NewDispatcher(s.defaults, tr)
	s.mu.Unlock()

	slog.Info("mail transport ready", "transport", tr.Name())
}

// Shutdown closes the transport. Close errors are logged, never returned.
func (s *Service) Shutdown() {
	s.mu.RLock()
	tr := s.transport
	s.mu.RUnlock()

	if tr == nil {
		return
	}

	slog.Debug("shutting down mail transport", "transport", tr.Name())
	if err := tr.Close(); err != nil {
		slog.Error("failed to close mail transport", "transport", tr.Name(), "error", err)
	}
}

// Send dispatches the configured message to one recipient.
func (s *Service) Send(ctx context.Context, to string) (*mail.Outcome, error) {
	s.mu.RLock()
	d := s.dispatcher
	s.mu.RUnlock()

	if d == nil {
		return nil, ErrNoTransport
	}
	return d.Send(ctx, to)
}

// TransportName reports the active transport, or "none".
func (s *Service) TransportName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.transport == nil {
		return "none"
	}
	return s.transport.Name()
}
