package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

type Color int

const (
	ColorGreen Color = 0x2ecc71
	ColorTeal  Color = 0x1abc9c
	ColorRed   Color = 0xe74c3c
)

type Notification struct {
	Title string
	Body  string
	Color Color
	URL   string
}

type embed struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Color       Color  `json:"color"`
	URL         string `json:"url,omitempty"`
}

type webhookMessage struct {
	Embeds []embed `json:"embeds"`
}

// Discord posts notifications as embeds to a Discord webhook.
type Discord struct {
	webhookURL string
	client     *retryablehttp.Client
}

func NewDiscord(webhookURL string) *Discord {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = 2
	client.HTTPClient.Timeout = 30 * time.Second
	return &Discord{webhookURL: webhookURL, client: client}
}

func (d *Discord) Notify(ctx context.Context, n Notification) error {
	body, err := json.Marshal(webhookMessage{Embeds: []embed{{
		Title:       n.Title,
		Description: truncate(n.Body, 4096),
		Color:       n.Color,
		URL:         n.URL,
	}}})
	if err != nil {
		return err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}

// discord rejects embed descriptions longer than 4096 characters
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
