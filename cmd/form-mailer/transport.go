package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shineum/form-mailer-lite/internal/config"
	"github.com/shineum/form-mailer-lite/internal/relay"
	"github.com/shineum/form-mailer-lite/internal/transport"
	"github.com/shineum/form-mailer-lite/internal/transport/postmark"
	"github.com/shineum/form-mailer-lite/internal/transport/ses"
	"github.com/shineum/form-mailer-lite/internal/transport/smtp"
	"github.com/shineum/form-mailer-lite/internal/transport/stdout"
)

// opener returns the relay.Opener for the configured provider.
func opener(cfg *config.Config) relay.Opener {
	return func(ctx context.Context) (transport.Transport, error) {
		return selectTransport(ctx, cfg)
	}
}

// selectTransport builds the mail transport named by transport.provider.
func selectTransport(ctx context.Context, cfg *config.Config) (transport.Transport, error) {
	switch cfg.Transport.Provider {
	case "", "smtp":
		settings := cfg.TransportSettings()
		slog.Info("using SMTP transport",
			"host", settings.Host,
			"port", settings.Port,
			"secure", settings.Secure,
			"auth_enabled", settings.HasAuth(),
		)
		t, err := smtp.New(settings)
		if err != nil {
			return nil, err
		}
		return t, nil

	case "ses":
		slog.Info("using AWS SES transport", "region", cfg.Transport.SES.Region)
		t, err := ses.New(ctx, ses.Config{
			Region:          cfg.Transport.SES.Region,
			AccessKeyID:     cfg.Transport.SES.AccessKeyID,
			SecretAccessKey: cfg.Transport.SES.SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		return t, nil

	case "postmark":
		slog.Info("using Postmark transport")
		t, err := postmark.New(postmark.Config{
			ServerToken:  cfg.Transport.Postmark.ServerToken,
			AccountToken: cfg.Transport.Postmark.AccountToken,
		})
		if err != nil {
			return nil, err
		}
		return t, nil

	case "stdout":
		slog.Info("using stdout transport")
		return stdout.New(), nil

	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Transport.Provider)
	}
}
