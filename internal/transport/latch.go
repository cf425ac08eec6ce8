package transport

import "sync/atomic"

// Latch records that a transport has been closed. The zero value is open.
type Latch struct {
	closed atomic.Bool
}

// Close flips the latch. It is safe to call more than once.
func (l *Latch) Close() {
	l.closed.Store(true)
}

// Closed reports whether Close has been called.
func (l *Latch) Closed() bool {
	return l.closed.Load()
}
