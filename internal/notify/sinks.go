package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// LogSink writes notifications to the log.
type LogSink struct {
	Logger *slog.Logger
}

// Send implements Sink.
func (s LogSink) Send(_ context.Context, n Notification) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notify: reminder",
		slog.String("id", n.ID),
		slog.String("channel", n.Channel),
		slog.String("title", n.Title),
		slog.String("text", n.Body))
	return nil
}

// WebhookSink posts notifications as JSON.
type WebhookSink struct {
	url  string
	http *http.Client
}

// NewWebhookSink creates a sink posting to url.
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{url: url, http: &http.Client{Timeout: 10 * time.Second}}
}

type webhookBody struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Text    string    `json:"text"`
	Channel string    `json:"channel"`
	At      time.Time `json:"at"`
}

// Send implements Sink.
func (s *WebhookSink) Send(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(webhookBody{ID: n.ID, Title: n.Title, Text: n.Body, Channel: n.Channel, At: n.At})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notify: webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("notify: webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notify: webhook: HTTP %d", resp.StatusCode)
	}
	return nil
}

// BrokerSink publishes notifications as alarm.fired events.
type BrokerSink struct {
	Publish func(kind string, data any)
}

// Send implements Sink.
func (s BrokerSink) Send(_ context.Context, n Notification) error {
	if s.Publish != nil {
		s.Publish("alarm.fired", n)
	}
	return nil
}
