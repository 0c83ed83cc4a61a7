package ha

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/micro-ha/connectivity-monitor/addon/internal/model"
)

const (
	notificationID = "connectivity_monitor_connection_lost"
	// EventConnectionLost is fired on the Home Assistant event bus.
	EventConnectionLost = "connectivity_monitor_connection_lost"
)

// Notifier raises the connection-lost alert in Home Assistant as a persistent
// notification and a bus event automations can react to.
type Notifier struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewNotifier(baseURL, token string) *Notifier {
	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "http://supervisor/core"
	}
	return &Notifier{
		baseURL: baseURL,
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *Notifier) NotifyConnectionLost(ctx context.Context, snapshot model.ConnectivitySnapshot) error {
	notification := map[string]any{
		"notification_id": notificationID,
		"title":           model.ConnectionLostHead,
		"message":         model.ConnectionLostText,
	}
	if err := n.post(ctx, "/api/services/persistent_notification/create", notification); err != nil {
		return fmt.Errorf("create persistent notification: %w", err)
	}

	event := map[string]any{
		"type":      string(snapshot.Type),
		"connected": snapshot.Connected,
	}
	if err := n.post(ctx, "/api/events/"+EventConnectionLost, event); err != nil {
		return fmt.Errorf("fire %s event: %w", EventConnectionLost, err)
	}
	return nil
}

func (n *Notifier) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}
	resp, err := n.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(msg))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
