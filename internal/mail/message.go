// Package mail defines the message and transport data model shared by the
// relay, the configuration loader and every transport implementation.
package mail

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// AuthMethod names the SASL mechanism used to authenticate against the
// SMTP server.
type AuthMethod string

const (
	AuthPlain AuthMethod = "PLAIN"
	AuthLogin AuthMethod = "LOGIN"
)

// ParseAuthMethod maps a configured mechanism name onto an AuthMethod.
// Matching is case-insensitive; an empty name selects PLAIN.
func ParseAuthMethod(s string) (AuthMethod, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(AuthPlain):
		return AuthPlain, nil
	case string(AuthLogin):
		return AuthLogin, nil
	default:
		return "", fmt.Errorf("unsupported auth method %q", s)
	}
}

// TransportConfig holds the connection settings of the outgoing transport.
// It is built once at startup and never modified afterwards.
type TransportConfig struct {
	Host              string
	Port              int
	AuthMethod        AuthMethod
	AuthUser          string
	AuthPassword      string
	ConnectionTimeout time.Duration
	// CommandTimeout bounds the greeting and each command reply.
	CommandTimeout time.Duration

	// Secure dials the server with implicit TLS (usually port 465).
	Secure bool
	// RequireTLS fails the send when the server does not offer STARTTLS.
	RequireTLS bool
	// IgnoreTLS never upgrades a plain connection, even if STARTTLS is offered.
	IgnoreTLS bool
	// InsecureSkipVerify disables certificate verification.
	InsecureSkipVerify bool
	// Name is the hostname announced in EHLO.
	Name string
}

// HasAuth reports whether both credentials are present. Authentication is
// only attempted when it returns true.
func (c TransportConfig) HasAuth() bool {
	return c.AuthUser != "" && c.AuthPassword != ""
}

// Addr returns host:port.
func (c TransportConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MessageDefaults are the statically configured parts of every outgoing
// message. Only the recipient normally varies per request.
type MessageDefaults struct {
	From    string
	To      string
	Subject string
	Text    string
	HTML    string
	ReplyTo string
}

// Options describes a single message to send.
type Options struct {
	From    string
	To      string
	Subject string
	Text    string
	HTML    string
	ReplyTo string
}

// Merge overlays the non-empty fields of o on top of the defaults and
// returns the result. The receiver is a value, so defaults stay untouched.
func (d MessageDefaults) Merge(o Options) Options {
	merged := Options{
		From:    d.From,
		To:      d.To,
		Subject: d.Subject,
		Text:    d.Text,
		HTML:    d.HTML,
		ReplyTo: d.ReplyTo,
	}
	if o.From != "" {
		merged.From = o.From
	}
	if o.To != "" {
		merged.To = o.To
	}
	if o.Subject != "" {
		merged.Subject = o.Subject
	}
	if o.Text != "" {
		merged.Text = o.Text
	}
	if o.HTML != "" {
		merged.HTML = o.HTML
	}
	if o.ReplyTo != "" {
		merged.ReplyTo = o.ReplyTo
	}
	return merged
}

// Recipients splits a comma separated address list, dropping blanks.
func Recipients(to string) []string {
	var out []string
	for _, addr := range strings.Split(to, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

// Outcome is the result of a successful send.
type Outcome struct {
	Accepted  []string `json:"accepted"`
	Rejected  []string `json:"rejected"`
	Response  string   `json:"response"`
	MessageID string   `json:"messageId"`
}

// ReplyCode returns the leading three characters of the server response,
// which carry the numeric SMTP reply code.
func (o Outcome) ReplyCode() string {
	if len(o.Response) < 3 {
		return o.Response
	}
	return o.Response[:3]
}

// MarshalJSON encodes nil address lists as empty arrays.
func (o Outcome) MarshalJSON() ([]byte, error) {
	type outcome Outcome
	out := outcome(o)
	if out.Accepted == nil {
		out.Accepted = []string{}
	}
	if out.Rejected == nil {
		out.Rejected = []string{}
	}
	return json.Marshal(out)
}
