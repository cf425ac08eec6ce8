package smtptest

import (
	"strings"
	"testing"
)

func TestParseMessage_PlainQuotedPrintable(t *testing.T) {
	t.Parallel()

	raw := "From: Welcome Team <welcome.team@example.com>\r\n" +
		"To: a@b.com, c@d.com\r\n" +
		"Reply-To: help@example.com\r\n" +
		"Subject: =?UTF-8?q?Caf=C3=A9?=\r\n" +
		"Message-ID: <1@example.com>\r\n" +
		"Content-Type: text/plain; charset=UTF-8\r\n" +
		"Content-Transfer-Encoding: quoted-printable\r\n" +
		"\r\n" +
		"Thanks=0D=0Afor signing up=\r\n" +
		" today.\r\n"

	msg, err := ParseMessage(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Subject != "Café" {
		t.Errorf("Subject: got %q", msg.Subject)
	}
	if len(msg.To) != 2 || msg.To[0] != "a@b.com" || msg.To[1] != "c@d.com" {
		t.Errorf("To: got %v", msg.To)
	}
	if msg.ReplyTo != "help@example.com" || msg.MessageID != "<1@example.com>" {
		t.Errorf("headers: got %+v", msg)
	}
	if !strings.HasPrefix(msg.Text, "Thanks\r\nfor signing up today.") {
		t.Errorf("Text: got %q", msg.Text)
	}
}

func TestParseMessage_Alternative(t *testing.T) {
	t.Parallel()

	raw := "From: a@example.com\r\n" +
		"To: b@example.com\r\n" +
		"Subject: Hi\r\n" +
		"Content-Type: multipart/alternative; boundary=xyz\r\n" +
		"\r\n" +
		"--xyz\r\n" +
		"Content-Type: text/plain; charset=UTF-8\r\n" +
		"Content-Transfer-Encoding: quoted-printable\r\n" +
		"\r\n" +
		"plain body\r\n" +
		"--xyz\r\n" +
		"Content-Type: text/html; charset=UTF-8\r\n" +
		"Content-Transfer-Encoding: base64\r\n" +
		"\r\n" +
		"PGI+aHRtbDwvYj4=\r\n" +
		"--xyz--\r\n"

	msg, err := ParseMessage(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(msg.Text) != "plain body" {
		t.Errorf("Text: got %q", msg.Text)
	}
	if msg.HTML != "<b>html</b>" {
		t.Errorf("HTML: got %q", msg.HTML)
	}
}

func TestParseMessage_Errors(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"no header separator": "not a message",
		"missing boundary":    "Content-Type: multipart/alternative\r\n\r\nbody",
		"bad base64":          "Content-Transfer-Encoding: base64\r\n\r\n!!!",
	}
	for name, raw := range tests {
		if _, err := ParseMessage(raw); err == nil {
			t.Errorf("%s: expected error, got nil", name)
		}
	}
}
