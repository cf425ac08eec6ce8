// Package smtp implements a Transport that delivers mail to an SMTP server.
package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	stdmail "net/mail"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"

	"github.com/shineum/form-mailer-lite/internal/mail"
	"github.com/shineum/form-mailer-lite/internal/transport"
)

// DefaultCommandTimeout bounds the greeting and each command when the
// configuration leaves it unset.
const DefaultCommandTimeout = 30 * time.Second

// Transport sends each message over a fresh SMTP connection.
// @MX:ANCHOR: [AUTO] External system integration point for SMTP delivery
// @MX:REASON: Every relayed message flows through this transport when provider is smtp
type Transport struct {
	cfg mail.TransportConfig

	mu     sync.Mutex
	closed bool
	// conns tracks in-flight connections so Close can abort them.
	conns map[net.Conn]struct{}
}

// New validates cfg and returns a Transport. No connection is opened until
// the first Send.
func New(cfg mail.TransportConfig) (*Transport, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("smtp port must be between 1 and 65535, got %d", cfg.Port)
	}
	switch cfg.AuthMethod {
	case "", mail.AuthPlain, mail.AuthLogin:
	default:
		return nil, fmt.Errorf("unsupported auth method %q", cfg.AuthMethod)
	}
	if cfg.Secure && cfg.IgnoreTLS {
		return nil, fmt.Errorf("secure and ignore_tls are mutually exclusive")
	}
	if cfg.Name == "" {
		cfg.Name = "localhost"
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = DefaultCommandTimeout
	}

	return &Transport{
		cfg:   cfg,
		conns: make(map[net.Conn]struct{}),
	}, nil
}

// Name returns the transport name.
func (t *Transport) Name() string {
	return "smtp"
}

// Close marks the transport closed and aborts every in-flight connection.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	var errs []error
	for conn := range t.conns {
		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
		delete(t.conns, conn)
	}
	return errors.Join(errs...)
}

// Send runs one SMTP transaction. Recipients refused at RCPT are listed in
// Outcome.Rejected; the send only fails when every recipient is refused.
func (t *Transport) Send(ctx context.Context, opts mail.Options) (*mail.Outcome, error) {
	if t.isClosed() {
		return nil, transport.ErrClosed
	}

	recipients := mail.Recipients(opts.To)
	if len(recipients) == 0 {
		return nil, fmt.Errorf("no recipients defined")
	}

	messageID := mail.NewMessageID(opts.From)
	raw, err := mail.Compose(opts, messageID)
	if err != nil {
		return nil, err
	}

	outcome, err := t.deliver(ctx, opts.From, recipients, raw)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", ctxErr, err)
		}
		if t.isClosed() {
			return nil, fmt.Errorf("%w: %w", transport.ErrClosed, err)
		}
		return nil, err
	}
	outcome.MessageID = messageID

	slog.Debug("smtp message sent",
		"message_id", messageID,
		"accepted", len(outcome.Accepted),
		"rejected", len(outcome.Rejected),
	)
	return outcome, nil
}

func (t *Transport) deliver(ctx context.Context, from string, recipients []string, raw []byte) (*mail.Outcome, error) {
	c, release, err := t.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	defer c.Close()

	return t.transact(c, from, recipients, raw)
}

// connect returns a client that has completed EHLO and, unless disabled,
// STARTTLS. The release func must be called once the client is done.
func (t *Transport) connect(ctx context.Context) (*gosmtp.Client, func(), error) {
	if t.cfg.Secure || t.cfg.IgnoreTLS {
		return t.connectPlain(ctx)
	}

	conn, release, err := t.open(ctx)
	if err != nil {
		return nil, nil, err
	}

	// NewClientStartTLS greets and runs STARTTLS before the client's
	// CommandTimeout can be set, so bound that phase here.
	timer := time.AfterFunc(t.cfg.CommandTimeout, func() { conn.Close() })
	c, err := gosmtp.NewClientStartTLS(conn, t.tlsConfig())
	expired := !timer.Stop()

	if err != nil {
		conn.Close()
		release()
		switch {
		case expired:
			return nil, nil, fmt.Errorf("no greeting from SMTP server within %s: %w", t.cfg.CommandTimeout, err)
		case !isNoStartTLS(err):
			return nil, nil, fmt.Errorf("failed to start TLS: %w", err)
		case t.cfg.RequireTLS:
			return nil, nil, fmt.Errorf("server does not support STARTTLS")
		}
		slog.Debug("smtp server does not offer STARTTLS, continuing without TLS", "host", t.cfg.Host)
		return t.connectPlain(ctx)
	}

	c.CommandTimeout = t.cfg.CommandTimeout
	// STARTTLS resets the session, so this EHLO is the first on the
	// encrypted channel.
	if err := c.Hello(t.cfg.Name); err != nil {
		c.Close()
		release()
		return nil, nil, fmt.Errorf("EHLO failed: %w", err)
	}
	return c, release, nil
}

// connectPlain greets without STARTTLS. With Secure the connection is
// already TLS from the first byte.
func (t *Transport) connectPlain(ctx context.Context) (*gosmtp.Client, func(), error) {
	conn, release, err := t.open(ctx)
	if err != nil {
		return nil, nil, err
	}

	c := gosmtp.NewClient(conn)
	c.CommandTimeout = t.cfg.CommandTimeout
	if err := c.Hello(t.cfg.Name); err != nil {
		c.Close()
		release()
		return nil, nil, fmt.Errorf("EHLO failed: %w", err)
	}
	return c, release, nil
}

// open dials and tracks a connection. Cancelling ctx or closing the
// transport closes it.
func (t *Transport) open(ctx context.Context) (net.Conn, func(), error) {
	conn, err := t.dial(ctx)
	if err != nil {
		return nil, nil, err
	}
	if !t.track(conn) {
		conn.Close()
		return nil, nil, transport.ErrClosed
	}

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	return conn, func() {
		stop()
		t.untrack(conn)
	}, nil
}

// isNoStartTLS reports whether err is go-smtp's refusal to upgrade a server
// that does not advertise STARTTLS. The library exports no sentinel for it.
func isNoStartTLS(err error) bool {
	return err != nil && strings.Contains(err.Error(), "doesn't support STARTTLS")
}

func (t *Transport) transact(c *gosmtp.Client, from string, recipients []string, raw []byte) (*mail.Outcome, error) {
	if t.cfg.HasAuth() {
		if err := c.Auth(t.saslClient()); err != nil {
			return nil, fmt.Errorf("authentication failed: %w", err)
		}
	}

	if err := c.Mail(envelopeAddress(from), nil); err != nil {
		return nil, fmt.Errorf("sender rejected: %w", err)
	}

	outcome := &mail.Outcome{}
	var lastRejection error
	for _, rcpt := range recipients {
		err := c.Rcpt(envelopeAddress(rcpt), nil)
		if err == nil {
			outcome.Accepted = append(outcome.Accepted, rcpt)
			continue
		}
		var smtpErr *gosmtp.SMTPError
		if !errors.As(err, &smtpErr) {
			return nil, fmt.Errorf("recipient command failed: %w", err)
		}
		slog.Debug("smtp recipient rejected", "recipient", rcpt, "code", smtpErr.Code)
		outcome.Rejected = append(outcome.Rejected, rcpt)
		lastRejection = err
	}
	if len(outcome.Accepted) == 0 {
		return nil, fmt.Errorf("can't send mail - all recipients were rejected: %w", lastRejection)
	}

	w, err := c.Data()
	if err != nil {
		return nil, fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to write message: %w", err)
	}
	resp, err := w.CloseWithResponse()
	if err != nil {
		return nil, fmt.Errorf("message not accepted: %w", err)
	}
	outcome.Response = fmt.Sprintf("250 %s", resp.StatusText)

	// The message is queued; a failed QUIT does not change that.
	if err := c.Quit(); err != nil {
		slog.Debug("smtp quit failed", "error", err)
	}
	return outcome, nil
}

func (t *Transport) dial(ctx context.Context) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: t.cfg.ConnectionTimeout}
	addr := t.cfg.Addr()

	if t.cfg.Secure {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: t.tlsConfig()}
		conn, err := tlsDialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to SMTP server with TLS: %w", err)
		}
		return conn, nil
	}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	return conn, nil
}

func (t *Transport) tlsConfig() *tls.Config {
	return &tls.Config{
		ServerName:         t.cfg.Host,
		InsecureSkipVerify: t.cfg.InsecureSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}
}

func (t *Transport) saslClient() sasl.Client {
	if t.cfg.AuthMethod == mail.AuthLogin {
		return sasl.NewLoginClient(t.cfg.AuthUser, t.cfg.AuthPassword)
	}
	return sasl.NewPlainClient("", t.cfg.AuthUser, t.cfg.AuthPassword)
}

func (t *Transport) track(conn net.Conn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	t.conns[conn] = struct{}{}
	return true
}

func (t *Transport) untrack(conn net.Conn) {
	t.mu.Lock()
	delete(t.conns, conn)
	t.mu.Unlock()
}

func (t *Transport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// envelopeAddress strips any display name from addr. Unparseable input is
// passed through so the server can reject it.
func envelopeAddress(addr string) string {
	if parsed, err := stdmail.ParseAddress(addr); err == nil {
		return parsed.Address
	}
	return addr
}
