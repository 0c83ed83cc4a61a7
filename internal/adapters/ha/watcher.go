package ha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// EventRefreshRequested lets Home Assistant automations ask for an immediate
// connectivity re-read.
const EventRefreshRequested = "connectivity_monitor_refresh_requested"

var errAuthRejected = errors.New("home assistant rejected websocket auth")

// Watcher listens on the Home Assistant websocket API for refresh requests.
type Watcher struct {
	baseURL    string
	token      string
	logger     *slog.Logger
	idleLimit  time.Duration
	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewWatcher(baseURL, token string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		baseURL:    strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		token:      token,
		logger:     logger,
		idleLimit:  120 * time.Second,
		minBackoff: time.Second,
		maxBackoff: 20 * time.Second,
	}
}

// Run keeps a session open until ctx is cancelled, reconnecting with backoff.
func (w *Watcher) Run(ctx context.Context, onRefresh func()) {
	backoff := w.minBackoff
	for {
		if ctx.Err() != nil {
			return
		}
		authenticated, err := w.runSession(ctx, onRefresh)
		if err != nil && ctx.Err() == nil {
			w.logger.Warn("home assistant event watcher disconnected", "err", err)
		}
		if authenticated {
			// Idle disconnects after an accepted session reconnect at the minimum delay.
			backoff = w.minBackoff
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < w.maxBackoff {
			backoff *= 2
		}
	}
}

// runSession reports whether Home Assistant accepted the token before the
// session ended.
func (w *Watcher) runSession(ctx context.Context, onRefresh func()) (bool, error) {
	wsURL, err := toWebsocketURL(w.baseURL + "/api/websocket")
	if err != nil {
		return false, err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if kind, err := readType(conn); err != nil {
		return false, err
	} else if kind != "auth_required" {
		return false, fmt.Errorf("unexpected greeting %q", kind)
	}
	if err := conn.WriteJSON(map[string]any{"type": "auth", "access_token": w.token}); err != nil {
		return false, err
	}
	if kind, err := readType(conn); err != nil {
		return false, err
	} else if kind != "auth_ok" {
		return false, errAuthRejected
	}

	subscribe := map[string]any{"id": 1, "type": "subscribe_events", "event_type": EventRefreshRequested}
	if err := conn.WriteJSON(subscribe); err != nil {
		return true, err
	}

	for {
		if err := conn.SetReadDeadline(time.Now().Add(w.idleLimit)); err != nil {
			return true, err
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		if isRefreshEvent(msg) {
			w.logger.Debug("refresh requested from home assistant")
			onRefresh()
		}
	}
}

func readType(conn *websocket.Conn) (string, error) {
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", err
	}
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &envelope); err != nil {
		return "", err
	}
	return envelope.Type, nil
}

func isRefreshEvent(body []byte) bool {
	var envelope struct {
		Type  string `json:"type"`
		Event struct {
			EventType string `json:"event_type"`
		} `json:"event"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return false
	}
	return envelope.Type == "event" && envelope.Event.EventType == EventRefreshRequested
}

func toWebsocketURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	return u.String(), nil
}
