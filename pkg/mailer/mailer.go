// Package mailer is a thin HTTP client for the transactional email provider.
// It sends one message per call; retry policy lives with the caller, which
// classifies failures via IsRetryable.
package mailer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultTimeout = 10 * time.Second

// Attachment is a base64-encoded file attached to a message.
type Attachment struct {
	Filename    string `json:"filename"`
	Content     string `json:"content"` // base64
	ContentType string `json:"content_type,omitempty"`
}

// Message is one outbound email. DedupKey is passed to the provider as an
// Idempotency-Key header so repeated sends of the same logical message
// collapse into one delivery. Tags are flat "prefix:value" strings the
// provider echoes back on delivery webhooks.
type Message struct {
	To          string       `json:"to"`
	Subject     string       `json:"subject"`
	HTML        string       `json:"html"`
	Text        string       `json:"text,omitempty"`
	ReplyTo     string       `json:"reply_to,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Tags        []string     `json:"tags,omitempty"`

	DedupKey string `json:"-"`
}

// StatusError is a non-2xx response from the provider.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("email provider status %d: %s", e.Code, e.Body)
}

// Retryable reports whether the provider response warrants a retry
// (rate limit or server-side failure).
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// IsRetryable classifies a Send error. Provider 429/5xx and transport-level
// failures (timeouts, connection errors) are retryable; everything else
// (bad request, invalid address) is terminal.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return true
}

// Client sends messages through the provider's HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	from       string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a mailer client. The API key is never logged; only a
// fingerprint and its length appear in diagnostics.
func NewClient(baseURL, apiKey, fromName, fromAddress string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	from := fromAddress
	if fromName != "" {
		from = fmt.Sprintf("%s <%s>", fromName, fromAddress)
	}
	logger.Info("mailer configured",
		zap.String("endpoint", baseURL),
		zap.String("api_key_fingerprint", keyFingerprint(apiKey)),
		zap.Int("api_key_len", len(apiKey)))
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		from:       from,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
}

// Send delivers one message. The context bounds the whole request.
func (c *Client) Send(ctx context.Context, msg Message) error {
	payload := struct {
		From string `json:"from"`
		Message
	}{From: c.from, Message: msg}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if msg.DedupKey != "" {
		req.Header.Set("Idempotency-Key", msg.DedupKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return nil
}

func keyFingerprint(apiKey string) string {
	if apiKey == "" {
		return "unset"
	}
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])[:8]
}
