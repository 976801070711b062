package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultWebhookTimeout = 5 * time.Second

// WebhookClient posts login/logout notifications to an HTTP endpoint.
type WebhookClient struct {
	URL        string
	HTTPClient *http.Client
	now        func() time.Time
}

// NewWebhookClient creates a client posting to url. A zero timeout uses 5s.
func NewWebhookClient(url string, timeout time.Duration) *WebhookClient {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &WebhookClient{
		URL:        url,
		HTTPClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

// IsConfigured reports whether a target URL is set.
func (c *WebhookClient) IsConfigured() bool {
	return c != nil && c.URL != ""
}

type webhookPayload struct {
	Event    Event     `json:"event"`
	Email    string    `json:"email,omitempty"`
	Sub      string    `json:"sub,omitempty"`
	ClientIP string    `json:"client_ip,omitempty"`
	Time     time.Time `json:"time"`
}

// Send posts one notification. Any non-2xx response is an error.
func (c *WebhookClient) Send(ctx context.Context, call Call) error {
	if !c.IsConfigured() {
		return errors.New("webhook url not configured")
	}

	payload := webhookPayload{
		Event:    call.Event,
		Email:    stringField(call.Payload, "email"),
		Sub:      stringField(call.Payload, "sub"),
		ClientIP: clientIP(call),
		Time:     c.now().UTC(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Hook adapts the client to a hook Func.
func (c *WebhookClient) Hook() Func {
	return c.Send
}
