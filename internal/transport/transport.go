// Package transport defines the interface for outgoing mail transports.
package transport

import (
	"context"
	"errors"

	"github.com/shineum/form-mailer-lite/internal/mail"
)

// ErrClosed is returned by Send once the transport has been closed.
var ErrClosed = errors.New("transport is closed")

// Transport is the interface that mail delivery backends must implement.
// Implementations must be safe for concurrent use; the relay shares one
// transport between all requests and performs no locking of its own.
type Transport interface {
	// Send delivers one message and reports what the server accepted.
	// A non-nil error means nothing was delivered.
	Send(ctx context.Context, opts mail.Options) (*mail.Outcome, error)

	// Close releases the transport. Sends that race with Close fail.
	Close() error

	// Name returns the human-readable name of this transport.
	Name() string
}
