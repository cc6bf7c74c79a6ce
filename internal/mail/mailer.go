// Package mail sends transactional email through the Resend HTTP API.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"dreambook/internal/middleware"
	"dreambook/internal/observability"
)

// DefaultEndpoint is the Resend send-email endpoint.
const DefaultEndpoint = "https://api.resend.com/emails"

// Message kinds, used as metric labels.
const (
	KindVerification = "verification"
	KindOwnerNotice  = "owner_notice"
)

// Message is one outbound email.
type Message struct {
	Kind    string   `json:"-"`
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Mailer delivers messages. Callers treat failures as non-fatal.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// ResendMailer posts messages to the Resend API.
type ResendMailer struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// ResendOption configures a ResendMailer.
type ResendOption func(*ResendMailer)

// WithEndpoint overrides the API endpoint.
func WithEndpoint(url string) ResendOption {
	return func(m *ResendMailer) { m.endpoint = url }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) ResendOption {
	return func(m *ResendMailer) { m.client = c }
}

// NewResendMailer returns a mailer authenticated with apiKey.
func NewResendMailer(apiKey string, opts ...ResendOption) *ResendMailer {
	m := &ResendMailer{
		apiKey:   apiKey,
		endpoint: DefaultEndpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Send posts msg and fails on any non-2xx response.
func (m *ResendMailer) Send(ctx context.Context, msg Message) error {
	err := m.send(ctx, msg)
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	observability.EmailsSent.WithLabelValues(kindLabel(msg.Kind), outcome).Inc()
	return err
}

func (m *ResendMailer) send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("send email: resend returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}

// LogMailer logs messages instead of sending them. Used when no API key is configured.
type LogMailer struct{}

// Send logs the recipient and subject.
func (LogMailer) Send(ctx context.Context, msg Message) error {
	middleware.Logger.InfoContext(ctx, "email not sent (no provider configured)",
		slog.String("kind", kindLabel(msg.Kind)),
		slog.String("to", strings.Join(msg.To, ",")),
		slog.String("subject", msg.Subject))
	observability.EmailsSent.WithLabelValues(kindLabel(msg.Kind), "logged").Inc()
	return nil
}

// New picks ResendMailer when apiKey is set and LogMailer otherwise.
func New(apiKey string) Mailer {
	if strings.TrimSpace(apiKey) == "" {
		return LogMailer{}
	}
	return NewResendMailer(apiKey)
}

func kindLabel(kind string) string {
	if kind == "" {
		return "other"
	}
	return kind
}
