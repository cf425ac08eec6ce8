package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/shineum/form-mailer-lite/internal/mail"
)

// Response headers.
const (
	// HeaderSMTPReply carries the three digit SMTP reply code on success.
	HeaderSMTPReply = "nodemailer-smtp-reply"
	// HeaderFailed is set to "failed" on every failure.
	HeaderFailed = "rw-nodemailer"
	// HeaderFailedMessage carries the failure message.
	HeaderFailedMessage = "rw-nodemailer-message"
)

// Sender sends the configured message to one recipient.
type Sender interface {
	Send(ctx context.Context, to string) (*mail.Outcome, error)
}

// Handler answers form POSTs by sending mail. Requests with any other
// method are passed through.
type Handler struct {
	sender       Sender
	maxBodyBytes int64
}

// NewHandler returns a Handler that reads at most maxBodyBytes of payload.
func NewHandler(sender Sender, maxBodyBytes int64) *Handler {
	return &Handler{sender: sender, maxBodyBytes: maxBodyBytes}
}

// Wrap returns middleware that serves POST requests itself and forwards
// everything else to next without touching the response.
func (h *Handler) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// ServeHTTP handles one POST. Every failure, whether bad input or a
// delivery error, is answered with 400.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.process(w, r)
	if err != nil {
		slog.Warn("mail request failed", "path", r.URL.Path, "error", err)
		writeFailure(w, err)
		return
	}

	body, err := json.MarshalIndent(outcome, "", "    ")
	if err != nil {
		writeFailure(w, fmt.Errorf("failed to encode outcome: %w", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(HeaderSMTPReply, outcome.ReplyCode())
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (h *Handler) process(w http.ResponseWriter, r *http.Request) (*mail.Outcome, error) {
	if err := checkContentType(r.Header.Get("Content-Type")); err != nil {
		return nil, err
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, ErrPayloadTooLarge
		}
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}

	recipient, err := recipientFrom(string(payload))
	if err != nil {
		return nil, err
	}

	return h.sender.Send(r.Context(), recipient)
}

func writeFailure(w http.ResponseWriter, err error) {
	w.Header().Set(HeaderFailed, "failed")
	w.Header().Set(HeaderFailedMessage, err.Error())
	w.WriteHeader(http.StatusBadRequest)
}
