package relay

import (
	"context"

	"github.com/shineum/form-mailer-lite/internal/mail"
	"github.com/shineum/form-mailer-lite/internal/transport"
)

// Dispatcher sends the configured message to one recipient per call.
type Dispatcher struct {
	defaults  mail.MessageDefaults
	transport transport.Transport
}

// NewDispatcher returns a Dispatcher bound to tr. The defaults are copied.
func NewDispatcher(defaults mail.MessageDefaults, tr transport.Transport) *Dispatcher {
	return &Dispatcher{defaults: defaults, transport: tr}
}

// Send merges the defaults with the recipient and hands the message to the
// transport. The request's recipient always replaces the default one, even
// when empty. The transport's outcome or error is returned unchanged.
func (d *Dispatcher) Send(ctx context.Context, to string) (*mail.Outcome, error) {
	opts := d.defaults.Merge(mail.Options{})
	opts.To = to
	return d.transport.Send(ctx, opts)
}
