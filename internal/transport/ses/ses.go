// Package ses implements a Transport that sends mail via AWS SES v2.
package ses

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/shineum/form-mailer-lite/internal/mail"
	"github.com/shineum/form-mailer-lite/internal/transport"
)

// Config holds the configuration for creating a Transport.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// Transport sends mail via the AWS SES v2 API.
// @MX:ANCHOR: [AUTO] External system integration point for AWS SES
// @MX:REASON: All mail delivery flows through this transport when provider is ses
type Transport struct {
	client SendEmailAPI
	closed transport.Latch
}

// SendEmailAPI is the interface for the SES v2 SendEmail operation.
// Used for testing with mock implementations.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// New creates a Transport backed by the default AWS credential chain, or by
// static credentials when both keys are set.
func New(ctx context.Context, cfg Config) (*Transport, error) {
	if cfg.Region == "" {
		return nil, fmt.Errorf("ses region is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewWithClient(sesv2.NewFromConfig(awsCfg)), nil
}

// NewWithClient creates a Transport with a custom client, used for testing.
func NewWithClient(client SendEmailAPI) *Transport {
	return &Transport{client: client}
}

// Send delivers one message through SES. SES has no SMTP dialogue, so the
// response line is synthesised from the returned message id.
func (t *Transport) Send(ctx context.Context, opts mail.Options) (*mail.Outcome, error) {
	if t.closed.Closed() {
		return nil, transport.ErrClosed
	}

	recipients := mail.Recipients(opts.To)
	if len(recipients) == 0 {
		return nil, fmt.Errorf("no recipients defined")
	}

	out, err := t.client.SendEmail(ctx, buildInput(opts, recipients))
	if err != nil {
		return nil, fmt.Errorf("SES API request failed: %w", err)
	}

	messageID := aws.ToString(out.MessageId)
	slog.Debug("ses message sent", "message_id", messageID)

	return &mail.Outcome{
		Accepted:  recipients,
		Rejected:  []string{},
		Response:  fmt.Sprintf("250 Ok %s", messageID),
		MessageID: messageID,
	}, nil
}

// Close marks the transport closed. The SES client holds no connection.
func (t *Transport) Close() error {
	t.closed.Close()
	return nil
}

// Name returns the transport name.
func (t *Transport) Name() string {
	return "ses"
}

func buildInput(opts mail.Options, recipients []string) *sesv2.SendEmailInput {
	body := &types.Body{}
	if opts.HTML != "" {
		body.Html = &types.Content{
			Data:    aws.String(opts.HTML),
			Charset: aws.String("UTF-8"),
		}
	}
	if opts.Text != "" || opts.HTML == "" {
		body.Text = &types.Content{
			Data:    aws.String(opts.Text),
			Charset: aws.String("UTF-8"),
		}
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(opts.From),
		Destination:      &types.Destination{ToAddresses: recipients},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(opts.Subject),
					Charset: aws.String("UTF-8"),
				},
				Body: body,
			},
		},
	}
	if opts.ReplyTo != "" {
		input.ReplyToAddresses = []string{opts.ReplyTo}
	}
	return input
}
