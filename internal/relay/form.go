package relay

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// FormContentType is the only request content type the handler accepts.
const FormContentType = "application/x-www-form-urlencoded"

// RecipientField is the form key holding the recipient address.
const RecipientField = "recipient"

var (
	// ErrEmptyPayload is returned for a request without a body.
	ErrEmptyPayload = errors.New("empty payload")
	// ErrMissingRecipient is returned when the form has no recipient key.
	ErrMissingRecipient = errors.New("Payload missing 'recipient'")
	// ErrPayloadTooLarge is returned when the body exceeds the size limit.
	ErrPayloadTooLarge = errors.New("payload too large")
)

// checkContentType requires an exact match; parameters such as a charset
// are not accepted.
func checkContentType(contentType string) error {
	if contentType != FormContentType {
		return fmt.Errorf("content-type header should be %s but was %s", FormContentType, contentType)
	}
	return nil
}

// parseForm splits body on '&' and each pair on its first '='. Values are
// percent-decoded without turning '+' into a space. Keys are taken as
// written. A later duplicate key replaces an earlier one.
func parseForm(body string) (map[string]string, error) {
	if body == "" {
		return nil, ErrEmptyPayload
	}

	pairs := make(map[string]string)
	for _, part := range strings.Split(body, "&") {
		key, raw, _ := strings.Cut(part, "=")
		value, err := url.PathUnescape(raw)
		if err != nil {
			return nil, fmt.Errorf("malformed value for %q: %w", key, err)
		}
		pairs[key] = value
	}
	return pairs, nil
}

// recipientFrom validates and parses body and returns the recipient value.
func recipientFrom(body string) (string, error) {
	form, err := parseForm(body)
	if err != nil {
		return "", err
	}
	recipient, ok := form[RecipientField]
	if !ok {
		return "", ErrMissingRecipient
	}
	return recipient, nil
}
