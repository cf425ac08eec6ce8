// Package config provides environment-variable-first configuration loading
// with optional YAML file fallback for the form mailer.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/shineum/form-mailer-lite/internal/mail"
)

// Transport defaults, applied when a field is absent or zero.
const (
	defaultHost              = "localhost"
	defaultPort              = 25
	defaultConnectionTimeout = 2000  // milliseconds
	defaultCommandTimeout    = 30000 // milliseconds
)

// defaultMaxBodyBytes bounds the form payload; a recipient form is tiny.
const defaultMaxBodyBytes = 8 * 1024

// Providers lists the supported transport provider names.
var Providers = []string{"smtp", "ses", "postmark", "stdout"}

// Config holds the complete application configuration.
type Config struct {
	HTTP            HTTPConfig            `yaml:"http"`
	Transport       TransportConfig       `yaml:"transport"`
	MessageDefaults MessageDefaultsConfig `yaml:"message_defaults"`
	Logging         LoggingConfig         `yaml:"logging"`
}

// HTTPConfig holds the HTTP listener configuration.
type HTTPConfig struct {
	Listen       string    `yaml:"listen" env:"HTTP_LISTEN"`
	Path         string    `yaml:"path" env:"HTTP_PATH"`
	MaxBodyBytes int64     `yaml:"max_body_bytes" env:"HTTP_MAX_BODY_BYTES"`
	TLS          TLSConfig `yaml:"tls"`
}

// TLSConfig holds optional HTTPS settings. With TLS enabled and no files
// given, a self-signed certificate is generated at startup.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled" env:"HTTP_TLS_ENABLED"`
	CertFile string `yaml:"cert_file" env:"TLS_CERT_FILE"`
	KeyFile  string `yaml:"key_file" env:"TLS_KEY_FILE"`
}

// TransportConfig holds outgoing transport settings.
type TransportConfig struct {
	Provider string `yaml:"provider" env:"PROVIDER"`

	Host              string `yaml:"host" env:"SMTP_HOST"`
	Port              int    `yaml:"port" env:"SMTP_PORT"`
	AuthMethod        string `yaml:"auth_method" env:"SMTP_AUTH_METHOD"`
	AuthUser          string `yaml:"auth_user" env:"SMTP_AUTH_USER"`
	AuthPassword      string `yaml:"auth_password" env:"SMTP_AUTH_PASSWORD"`
	ConnectionTimeout int    `yaml:"connection_timeout" env:"SMTP_CONNECTION_TIMEOUT"`
	CommandTimeout    int    `yaml:"command_timeout" env:"SMTP_COMMAND_TIMEOUT"`

	Secure             bool   `yaml:"secure" env:"SMTP_SECURE"`
	RequireTLS         bool   `yaml:"require_tls" env:"SMTP_REQUIRE_TLS"`
	IgnoreTLS          bool   `yaml:"ignore_tls" env:"SMTP_IGNORE_TLS"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify" env:"SMTP_INSECURE_SKIP_VERIFY"`
	Name               string `yaml:"name" env:"SMTP_NAME"`

	SES      SESConfig      `yaml:"ses"`
	Postmark PostmarkConfig `yaml:"postmark"`
}

// SESConfig holds AWS SES credentials.
type SESConfig struct {
	Region          string `yaml:"region" env:"SES_REGION"`
	AccessKeyID     string `yaml:"access_key_id" env:"SES_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"SES_SECRET_ACCESS_KEY"`
}

// PostmarkConfig holds Postmark API tokens.
type PostmarkConfig struct {
	ServerToken  string `yaml:"server_token" env:"POSTMARK_SERVER_TOKEN"`
	AccountToken string `yaml:"account_token" env:"POSTMARK_ACCOUNT_TOKEN"`
}

// MessageDefaultsConfig holds the fixed parts of every outgoing message.
type MessageDefaultsConfig struct {
	From    string `yaml:"from" env:"MESSAGE_FROM"`
	To      string `yaml:"to" env:"MESSAGE_TO"`
	Subject string `yaml:"subject" env:"MESSAGE_SUBJECT"`
	Text    string `yaml:"text" env:"MESSAGE_TEXT"`
	HTML    string `yaml:"html" env:"MESSAGE_HTML"`
	ReplyTo string `yaml:"reply_to" env:"MESSAGE_REPLY_TO"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL"`
}

// Load loads configuration from environment variables with sensible defaults.
// Environment variables always take precedence.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	if err := cfg.applyEnvVars(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// LoadFromFile loads configuration from a YAML file as the base layer,
// then overrides with environment variables. Returns an error if the
// specified file path does not exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment variables always override YAML values
	if err := cfg.applyEnvVars(); err != nil {
		return nil, err
	}

	return cfg, cfg.Validate()
}

// Validate rejects structurally malformed configuration. It performs no
// network access.
func (c *Config) Validate() error {
	if !isProvider(c.Transport.Provider) {
		return fmt.Errorf("unknown provider %q, want one of %s", c.Transport.Provider, strings.Join(Providers, ", "))
	}
	if _, err := mail.ParseAuthMethod(c.Transport.AuthMethod); err != nil {
		return err
	}
	if c.Transport.Port < 0 || c.Transport.Port > 65535 {
		return fmt.Errorf("transport port must be between 1 and 65535, got %d", c.Transport.Port)
	}
	if c.Transport.ConnectionTimeout < 0 {
		return fmt.Errorf("transport connection_timeout must not be negative")
	}
	if c.Transport.CommandTimeout < 0 {
		return fmt.Errorf("transport command_timeout must not be negative")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return fmt.Errorf("http max_body_bytes must be positive")
	}
	if !strings.HasPrefix(c.HTTP.Path, "/") {
		return fmt.Errorf("http path must start with '/', got %q", c.HTTP.Path)
	}
	return nil
}

// TransportSettings returns the fully defaulted transport settings. The
// credential pair is dropped unless both halves are present.
func (c *Config) TransportSettings() mail.TransportConfig {
	t := c.Transport

	host := t.Host
	if host == "" {
		host = defaultHost
	}
	port := t.Port
	if port == 0 {
		port = defaultPort
	}
	timeout := t.ConnectionTimeout
	if timeout == 0 {
		timeout = defaultConnectionTimeout
	}
	commandTimeout := t.CommandTimeout
	if commandTimeout == 0 {
		commandTimeout = defaultCommandTimeout
	}
	method, err := mail.ParseAuthMethod(t.AuthMethod)
	if err != nil {
		method = mail.AuthPlain
	}

	settings := mail.TransportConfig{
		Host:               host,
		Port:               port,
		AuthMethod:         method,
		ConnectionTimeout:  time.Duration(timeout) * time.Millisecond,
		CommandTimeout:     time.Duration(commandTimeout) * time.Millisecond,
		Secure:             t.Secure,
		RequireTLS:         t.RequireTLS,
		IgnoreTLS:          t.IgnoreTLS,
		InsecureSkipVerify: t.InsecureSkipVerify,
		Name:               t.Name,
	}
	if t.AuthUser != "" && t.AuthPassword != "" {
		settings.AuthUser = t.AuthUser
		settings.AuthPassword = t.AuthPassword
	}
	return settings
}

// Defaults returns the message defaults. Percent escapes in the text body
// (such as %0D%0A) are decoded; undecodable text is kept as written.
func (c *Config) Defaults() mail.MessageDefaults {
	m := c.MessageDefaults

	text := m.Text
	if decoded, err := url.PathUnescape(text); err == nil {
		text = decoded
	}

	return mail.MessageDefaults{
		From:    m.From,
		To:      m.To,
		Subject: m.Subject,
		Text:    text,
		HTML:    m.HTML,
		ReplyTo: m.ReplyTo,
	}
}

// applyDefaults sets sensible default values for non-transport fields.
// Transport defaults are applied by TransportSettings.
func (c *Config) applyDefaults() {
	c.HTTP.Listen = ":7080"
	c.HTTP.Path = "/customer-service/signup"
	c.HTTP.MaxBodyBytes = defaultMaxBodyBytes
	c.Transport.Provider = "smtp"
	c.Logging.Level = "info"
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values.
func (c *Config) applyEnvVars() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	c.Transport.Provider = strings.ToLower(c.Transport.Provider)
	if c.Transport.Provider == "" {
		c.Transport.Provider = "smtp"
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	return nil
}

func isProvider(name string) bool {
	for _, p := range Providers {
		if p == name {
			return true
		}
	}
	return false
}
