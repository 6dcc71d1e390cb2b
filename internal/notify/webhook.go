package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"example.com/tierrun/internal/domain"
)

// WebhookPayload is the body posted for each transition.
type WebhookPayload struct {
	RunnerID string `json:"runner_id"`
	TransitionPayload
}

// Webhook posts tier transitions to an upstream push endpoint. Scored runs
// without a transition are not forwarded.
type Webhook struct {
	client *http.Client
	url    string
	token  string
}

// NewWebhook constructs a Webhook.
func NewWebhook(endpoint, token string, timeout time.Duration) *Webhook {
	return &Webhook{
		client: &http.Client{Timeout: timeout},
		url:    strings.TrimRight(endpoint, "/"),
		token:  token,
	}
}

var _ domain.Notifier = (*Webhook)(nil)

// NotifyRunScored implements domain.Notifier.
func (w *Webhook) NotifyRunScored(context.Context, domain.Run, domain.TierRecord) error { return nil }

// NotifyTransition implements domain.Notifier.
func (w *Webhook) NotifyTransition(ctx context.Context, t domain.TierTransition) error {
	body, err := json.Marshal(WebhookPayload{
		RunnerID: t.RunnerID,
		TransitionPayload: TransitionPayload{
			Role:       string(t.Role),
			Kind:       t.Kind.String(),
			From:       t.From.String(),
			To:         t.To.String(),
			LP:         t.LP,
			OccurredAt: t.OccurredAt,
		},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if w.token != "" {
		req.Header.Set("Authorization", "Bearer "+w.token)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &WebhookError{Status: resp.StatusCode}
	}
	return nil
}

// WebhookError represents a non-successful webhook response.
type WebhookError struct {
	Status int
}

func (e *WebhookError) Error() string {
	return "transition webhook failed with status " + http.StatusText(e.Status)
}
