package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/warp/match-engine/engine"
)

// =============================================================================
// LOG SENDER - Development and audit trail of deliveries
// =============================================================================

type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(ctx context.Context, intent engine.Intent) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	if intent.Urgent {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, "notification",
		"kind", intent.Kind,
		"recipient", intent.Recipient,
		"work", intent.Work.String(),
		"urgent", intent.Urgent,
		"payload", intent.Payload,
	)
	return nil
}

// =============================================================================
// WEBHOOK SENDER - POSTs intents as JSON to a delivery service
// =============================================================================

// Message is the JSON body posted by WebhookSender.
type Message struct {
	Kind      string         `json:"kind"`
	Recipient string         `json:"recipient"`
	WorkKind  string         `json:"work_kind"`
	WorkID    string         `json:"work_id"`
	Urgent    bool           `json:"urgent"`
	Payload   map[string]any `json:"payload,omitempty"`
}

func MessageFor(intent engine.Intent) Message {
	return Message{
		Kind:      string(intent.Kind),
		Recipient: string(intent.Recipient),
		WorkKind:  string(intent.Work.Kind),
		WorkID:    intent.Work.ID,
		Urgent:    intent.Urgent,
		Payload:   intent.Payload,
	}
}

type WebhookSender struct {
	URL    string
	Client *http.Client
}

func NewWebhookSender(url string) *WebhookSender {
	return &WebhookSender{URL: url, Client: &http.Client{Timeout: 15 * time.Second}}
}

func (s *WebhookSender) Send(ctx context.Context, intent engine.Intent) error {
	body, err := json.Marshal(MessageFor(intent))
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
