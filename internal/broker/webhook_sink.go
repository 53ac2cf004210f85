package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shaiso/Acquire/internal/domain"
)

const defaultWebhookTimeout = 10 * time.Second

// WebhookConfig — настройки WebhookSink.
type WebhookConfig struct {
	// URL — адрес, на который отправляются документы (POST). Обязателен.
	URL string

	// Headers — дополнительные заголовки (например, Authorization).
	Headers map[string]string

	// Timeout — таймаут одного запроса (default: 10s).
	Timeout time.Duration
}

// WebhookSink отправляет каждый документ POST-запросом в JSON:
// {"name": "...", "body": {...}}.
//
// Ответ HTTP >= 400 считается отказом sink.
type WebhookSink struct {
	url     string
	headers map[string]string
	client  *http.Client
}

var _ Sink = (*WebhookSink)(nil)

// NewWebhookSink создаёт новый WebhookSink.
func NewWebhookSink(cfg WebhookConfig) *WebhookSink {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &WebhookSink{
		url:     cfg.URL,
		headers: cfg.Headers,
		client:  &http.Client{Timeout: timeout},
	}
}

// Name возвращает имя sink.
func (s *WebhookSink) Name() string {
	return "webhook"
}

// Consume отправляет документ.
func (s *WebhookSink) Consume(ctx context.Context, doc domain.LifecycleDocument) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s document: %w", doc.Name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, val := range s.headers {
		req.Header.Set(key, val)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 201))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return nil
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
