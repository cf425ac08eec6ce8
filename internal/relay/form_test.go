package relay

import (
	"errors"
	"testing"
)

func TestCheckContentType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		contentType string
		wantErr     bool
	}{
		{"application/x-www-form-urlencoded", false},
		{"application/json", true},
		{"application/x-www-form-urlencoded; charset=utf-8", true},
		{"", true},
	}

	for _, tt := range tests {
		err := checkContentType(tt.contentType)
		if (err != nil) != tt.wantErr {
			t.Errorf("checkContentType(%q): got err %v, wantErr %v", tt.contentType, err, tt.wantErr)
		}
	}
}

func TestRecipientFrom(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		want    string
		wantErr error
	}{
		{name: "plain", body: "recipient=friendly@mailinator.com", want: "friendly@mailinator.com"},
		{name: "percent encoded", body: "recipient=a%40b.com", want: "a@b.com"},
		{name: "plus is literal", body: "recipient=a+b%40c.com", want: "a+b@c.com"},
		{name: "other keys ignored", body: "name=Ann&recipient=a%40b.com&source=web", want: "a@b.com"},
		{name: "last duplicate wins", body: "recipient=first%40x.com&recipient=second%40x.com", want: "second@x.com"},
		{name: "value keeps later equals", body: "recipient=a=b", want: "a=b"},
		{name: "key without value", body: "recipient", want: ""},
		{name: "empty", body: "", wantErr: ErrEmptyPayload},
		{name: "missing recipient", body: "foo=bar", wantErr: ErrMissingRecipient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := recipientFrom(tt.body)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error: got %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("recipient: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseForm_MalformedEscape(t *testing.T) {
	t.Parallel()

	if _, err := parseForm("recipient=%zz"); err == nil {
		t.Error("expected error for malformed escape, got nil")
	}
}
