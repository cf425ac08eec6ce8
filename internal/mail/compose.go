package mail

import (
	"bytes"
	"fmt"
	stdmail "net/mail"
	"strings"

	"github.com/google/uuid"
	gomail "gopkg.in/mail.v2"
)

// NewMessageID returns a globally unique Message-ID in angle brackets. The
// domain part is taken from the sender address when it can be parsed.
func NewMessageID(from string) string {
	domain := "localhost"
	if addr, err := stdmail.ParseAddress(from); err == nil {
		if at := strings.LastIndex(addr.Address, "@"); at >= 0 && at < len(addr.Address)-1 {
			domain = addr.Address[at+1:]
		}
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}

// Compose renders opts as an RFC 5322 message. When both text and HTML are
// set the message is multipart/alternative with the text part first.
func Compose(opts Options, messageID string) ([]byte, error) {
	to := Recipients(opts.To)
	if len(to) == 0 {
		return nil, fmt.Errorf("no recipients defined")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", opts.From)
	m.SetHeader("To", to...)
	if opts.ReplyTo != "" {
		m.SetHeader("Reply-To", opts.ReplyTo)
	}
	m.SetHeader("Subject", opts.Subject)
	if messageID != "" {
		m.SetHeader("Message-ID", messageID)
	}

	switch {
	case opts.HTML != "" && opts.Text != "":
		m.SetBody("text/plain", opts.Text)
		m.AddAlternative("text/html", opts.HTML)
	case opts.HTML != "":
		m.SetBody("text/html", opts.HTML)
	default:
		m.SetBody("text/plain", opts.Text)
	}

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to compose message: %w", err)
	}
	return buf.Bytes(), nil
}
