package stdout

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shineum/form-mailer-lite/internal/mail"
	"github.com/shineum/form-mailer-lite/internal/transport"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestSend_PrintsMessage(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tr := NewWithWriter(&buf)

	out, err := tr.Send(context.Background(), mail.Options{
		From:    "sender@example.com",
		To:      "alice@example.com,bob@example.com",
		Subject: "Monthly Report",
		Text:    "Please find the report attached.",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	for _, want := range []string{
		"From: sender@example.com",
		"To: alice@example.com, bob@example.com",
		"Subject: Monthly Report",
		"Please find the report attached.",
		"Message-ID: " + out.MessageID,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if strings.Contains(output, "Reply-To:") {
		t.Error("output should not contain Reply-To when unset")
	}
	if !strings.HasPrefix(output, "========================================\n") {
		t.Error("output should start with separator line")
	}

	if out.Response != "250 Message printed" {
		t.Errorf("Response: got %q", out.Response)
	}
	if len(out.Accepted) != 2 {
		t.Errorf("Accepted: got %v", out.Accepted)
	}
}

func TestSend_HTMLFallback(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tr := NewWithWriter(&buf)

	if _, err := tr.Send(context.Background(), mail.Options{From: "a@b.com", To: "c@d.com", HTML: "<p>Hi</p>"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "<p>Hi</p>") {
		t.Error("output should fall back to the HTML body")
	}
}

func TestSend_WriteError(t *testing.T) {
	t.Parallel()

	tr := NewWithWriter(failingWriter{})
	if _, err := tr.Send(context.Background(), mail.Options{From: "a@b.com", To: "c@d.com"}); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestSend_AfterClose(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tr := NewWithWriter(&buf)
	tr.Close()

	_, err := tr.Send(context.Background(), mail.Options{From: "a@b.com", To: "c@d.com"})
	if !errors.Is(err, transport.ErrClosed) {
		t.Errorf("error: got %v, want ErrClosed", err)
	}
	if buf.Len() != 0 {
		t.Error("nothing should be printed after Close")
	}
}

func TestName(t *testing.T) {
	t.Parallel()
	if got := New().Name(); got != "stdout" {
		t.Errorf("Name(): got %q, want %q", got, "stdout")
	}
}
