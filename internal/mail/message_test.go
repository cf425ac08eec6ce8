package mail

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseAuthMethod(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    AuthMethod
		wantErr bool
	}{
		{"", AuthPlain, false},
		{"PLAIN", AuthPlain, false},
		{"plain", AuthPlain, false},
		{" Login ", AuthLogin, false},
		{"CRAM-MD5", "", true},
	}

	for _, tt := range tests {
		got, err := ParseAuthMethod(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseAuthMethod(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAuthMethod(%q): unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseAuthMethod(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTransportConfig_HasAuth(t *testing.T) {
	t.Parallel()

	if (TransportConfig{AuthUser: "u"}).HasAuth() {
		t.Error("user without password should not enable auth")
	}
	if (TransportConfig{AuthPassword: "p"}).HasAuth() {
		t.Error("password without user should not enable auth")
	}
	if !(TransportConfig{AuthUser: "u", AuthPassword: "p"}).HasAuth() {
		t.Error("user and password should enable auth")
	}
}

func TestMerge_OverrideRecipientOnly(t *testing.T) {
	t.Parallel()

	defaults := MessageDefaults{
		From:    "welcome.team@example.com",
		To:      "",
		Subject: "Welcome",
		Text:    "Thank you for signing up today.",
	}

	got := defaults.Merge(Options{To: "a@b.com"})

	if got.To != "a@b.com" {
		t.Errorf("To: got %q, want %q", got.To, "a@b.com")
	}
	if got.From != defaults.From {
		t.Errorf("From: got %q, want %q", got.From, defaults.From)
	}
	if got.Subject != defaults.Subject {
		t.Errorf("Subject: got %q, want %q", got.Subject, defaults.Subject)
	}
	if got.Text != defaults.Text {
		t.Errorf("Text: got %q, want %q", got.Text, defaults.Text)
	}
	if defaults.To != "" {
		t.Errorf("defaults mutated: To = %q", defaults.To)
	}
}

func TestMerge_EmptyOverrideKeepsDefault(t *testing.T) {
	t.Parallel()

	defaults := MessageDefaults{To: "fallback@example.com"}
	if got := defaults.Merge(Options{}); got.To != "fallback@example.com" {
		t.Errorf("To: got %q, want default", got.To)
	}
}

func TestRecipients(t *testing.T) {
	t.Parallel()

	got := Recipients(" a@x.com, ,b@y.com ")
	if len(got) != 2 || got[0] != "a@x.com" || got[1] != "b@y.com" {
		t.Errorf("Recipients: got %v", got)
	}
	if got := Recipients(""); len(got) != 0 {
		t.Errorf("Recipients(\"\"): got %v, want none", got)
	}
}

func TestOutcome_ReplyCode(t *testing.T) {
	t.Parallel()

	if got := (Outcome{Response: "250 2.0.0 OK: queued"}).ReplyCode(); got != "250" {
		t.Errorf("ReplyCode: got %q, want %q", got, "250")
	}
	if got := (Outcome{Response: "25"}).ReplyCode(); got != "25" {
		t.Errorf("ReplyCode short: got %q, want %q", got, "25")
	}
}

func TestOutcome_MarshalJSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(Outcome{
		Accepted:  []string{"x@y.com"},
		Response:  "250 OK",
		MessageID: "id-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := string(data)
	for _, want := range []string{
		`"accepted":["x@y.com"]`,
		`"rejected":[]`,
		`"response":"250 OK"`,
		`"messageId":"id-1"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("JSON %s missing %s", got, want)
		}
	}
}
