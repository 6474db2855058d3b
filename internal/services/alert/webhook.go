package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/LeonardoBeccarini/growbox_control/internal/model/messages"
)

// Webhook posts alerts as Discord-style embeds.
type Webhook struct {
	url    string
	client *http.Client
	cb     *gobreaker.CircuitBreaker
}

func NewWebhook(url string, client *http.Client, cb *gobreaker.CircuitBreaker) *Webhook {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &Webhook{url: url, client: client, cb: cb}
}

type embed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
	Timestamp   string `json:"timestamp,omitempty"`
}

type webhookBody struct {
	Embeds []embed `json:"embeds"`
}

func (w *Webhook) Deliver(ctx context.Context, a messages.Alert) error {
	if w.cb == nil {
		return w.post(ctx, a)
	}
	_, err := w.cb.Execute(func() (interface{}, error) {
		return nil, w.post(ctx, a)
	})
	return err
}

func (w *Webhook) post(ctx context.Context, a messages.Alert) error {
	e := embed{Title: a.Title, Description: a.Body, Color: a.Color}
	if !a.Timestamp.IsZero() {
		e.Timestamp = a.Timestamp.UTC().Format(time.RFC3339)
	}
	body, err := json.Marshal(webhookBody{Embeds: []embed{e}})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("POST webhook -> %s", res.Status)
	}
	return nil
}
