package smtptest

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
)

// Message is the decoded view of a received message.
type Message struct {
	From      string
	To        []string
	ReplyTo   string
	Subject   string
	MessageID string
	Date      string
	Text      string
	HTML      string
}

// Message parses the delivered DATA.
func (d Delivery) Message() (*Message, error) {
	return ParseMessage(d.Data)
}

// ParseMessage decodes an RFC 5322 message with a text/plain, text/html or
// multipart/alternative body.
func ParseMessage(data string) (*Message, error) {
	msg, err := mail.ReadMessage(strings.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	dec := new(mime.WordDecoder)
	subject, err := dec.DecodeHeader(msg.Header.Get("Subject"))
	if err != nil {
		subject = msg.Header.Get("Subject")
	}

	result := &Message{
		From:      msg.Header.Get("From"),
		To:        addressList(msg.Header.Get("To")),
		ReplyTo:   msg.Header.Get("Reply-To"),
		Subject:   subject,
		MessageID: msg.Header.Get("Message-Id"),
		Date:      msg.Header.Get("Date"),
	}

	contentType := msg.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("bad content type %q: %w", contentType, err)
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		if err := parseParts(msg.Body, params["boundary"], result); err != nil {
			return nil, err
		}
		return result, nil
	}

	body, err := decodeBody(msg.Body, msg.Header.Get("Content-Transfer-Encoding"))
	if err != nil {
		return nil, err
	}
	result.assign(mediaType, body)
	return result, nil
}

func parseParts(body io.Reader, boundary string, result *Message) error {
	if boundary == "" {
		return fmt.Errorf("multipart message missing boundary")
	}

	reader := multipart.NewReader(body, boundary)
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read next part: %w", err)
		}

		partType := part.Header.Get("Content-Type")
		if partType == "" {
			partType = "text/plain"
		}
		mediaType, params, err := mime.ParseMediaType(partType)
		if err != nil {
			return fmt.Errorf("bad part content type %q: %w", partType, err)
		}

		if strings.HasPrefix(mediaType, "multipart/") {
			if err := parseParts(part, params["boundary"], result); err != nil {
				return err
			}
			continue
		}

		// NextPart strips the quoted-printable header after decoding, so
		// only base64 is left to undo here.
		content, err := decodeBody(part, part.Header.Get("Content-Transfer-Encoding"))
		if err != nil {
			return err
		}
		result.assign(mediaType, content)
	}
}

func (m *Message) assign(mediaType, content string) {
	switch mediaType {
	case "text/html":
		if m.HTML == "" {
			m.HTML = content
		}
	default:
		if m.Text == "" {
			m.Text = content
		}
	}
}

func decodeBody(r io.Reader, encoding string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		r = quotedprintable.NewReader(r)
	case "base64":
		raw, err := io.ReadAll(r)
		if err != nil {
			return "", err
		}
		cleaned := strings.NewReplacer("\r", "", "\n", "").Replace(string(raw))
		decoded, err := base64.StdEncoding.DecodeString(cleaned)
		if err != nil {
			return "", fmt.Errorf("failed to decode base64 content: %w", err)
		}
		return string(decoded), nil
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}
	return string(raw), nil
}

func addressList(raw string) []string {
	if raw == "" {
		return nil
	}
	addresses, err := mail.ParseAddressList(raw)
	if err != nil {
		return []string{raw}
	}
	out := make([]string, 0, len(addresses))
	for _, a := range addresses {
		out = append(out, a.Address)
	}
	return out
}
