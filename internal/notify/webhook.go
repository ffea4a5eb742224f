package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const defaultWebhookTimeout = 10 * time.Second

// WebhookSender POSTs events as JSON. Deliveries are never retried.
type WebhookSender struct {
	url    string
	client *http.Client
	log    zerolog.Logger
}

// NewWebhookSender creates a sender for url. A nil client gets one with
// timeout, or a default timeout when that is zero.
func NewWebhookSender(url string, client *http.Client, timeout time.Duration, logger zerolog.Logger) *WebhookSender {
	if client == nil {
		if timeout <= 0 {
			timeout = defaultWebhookTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &WebhookSender{url: url, client: client, log: logger}
}

// Send delivers one event. Non-2xx responses and transport failures are
// logged and returned.
func (s *WebhookSender) Send(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		s.log.Error().Err(err).Str("url", s.url).Msg("Webhook error")
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Error().Err(err).Str("url", s.url).Msg("Webhook error")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.log.Error().Int("status", resp.StatusCode).Str("url", s.url).Msg("Webhook failed")
		return fmt.Errorf("webhook %s: %s", s.url, resp.Status)
	}
	s.log.Info().Str("event", string(ev.Event)).Str("schema", ev.Schema).Msg("Webhook sent")
	return nil
}
