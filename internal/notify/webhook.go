package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookSink POSTs notifications as JSON to a subscriber endpoint.
type WebhookSink struct {
	endpoint   string
	httpClient *http.Client
}

// NewWebhookSink constructs a sink for the given endpoint URL.
func NewWebhookSink(endpoint string) *WebhookSink {
	return &WebhookSink{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type webhookEnvelope struct {
	EventID   string          `json:"event_id"`
	Topic     string          `json:"topic"`
	Subject   string          `json:"subject"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Deliver POSTs the record. Any non-2xx response is a failed delivery.
func (s *WebhookSink) Deliver(ctx context.Context, rec Record) error {
	body, err := json.Marshal(webhookEnvelope{
		EventID:   rec.EventID.String(),
		Topic:     rec.Topic,
		Subject:   rec.Subject,
		Payload:   rec.Payload,
		CreatedAt: rec.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("notify: encode webhook body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Ping checks whether the subscriber endpoint is reachable.
func (s *WebhookSink) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("webhook endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
