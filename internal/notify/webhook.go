package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"confreg/internal/observability/metrics"
)

// WebhookNotifier posts registration notices to an organizer webhook.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

type webhookPayload struct {
	MsgType      string             `json:"msgtype"`
	Text         webhookText        `json:"text"`
	Registration RegistrationNotice `json:"registration"`
}

type webhookText struct {
	Content string `json:"content"`
}

// NewWebhookNotifier constructs a notifier.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// NotifyRegistration posts the notice.
func (n *WebhookNotifier) NotifyRegistration(ctx context.Context, notice RegistrationNotice) error {
	if n == nil || n.url == "" {
		return errors.New("webhook notifier: empty url")
	}
	content, err := FormatRegistration(notice)
	if err != nil {
		return err
	}
	body, err := json.Marshal(webhookPayload{
		MsgType:      "text",
		Text:         webhookText{Content: content},
		Registration: notice,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		metrics.IncNotify("webhook", metrics.ResultError)
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		metrics.IncNotify("webhook", metrics.ResultError)
		return errors.New("webhook notifier: non-2xx")
	}
	metrics.IncNotify("webhook", metrics.ResultSuccess)
	return nil
}
