package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tadbeer/helpdesk/internal/domain"
)

// WebhookSender POSTs each notification as JSON to a fixed URL.
type WebhookSender struct {
	url    string
	client *http.Client
}

// NewWebhookSender returns nil when url is empty so callers can pass the
// result straight into NotificationDependencies.
func NewWebhookSender(url string, timeout time.Duration) Sender {
	if url == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookSender{url: url, client: &http.Client{Timeout: timeout}}
}

type webhookPayload struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Link      string    `json:"link"`
	CreatedAt time.Time `json:"createdAt"`
	// Text lets chat webhooks that only read "text" render something useful.
	Text string `json:"text"`
}

func (w *WebhookSender) Send(ctx context.Context, n *domain.Notification) error {
	body, err := json.Marshal(webhookPayload{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		Link:      n.Link,
		CreatedAt: n.CreatedAt,
		Text:      fmt.Sprintf("%s: %s", n.Title, n.Message),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
