package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/micro-ha/connectivity-monitor/addon/internal/domain/connectivity"
	"github.com/micro-ha/connectivity-monitor/addon/internal/model"
	"github.com/micro-ha/connectivity-monitor/addon/internal/storage"
)

// EventStore lists journaled connectivity events.
type EventStore interface {
	ListEvents(ctx context.Context, filter storage.EventFilter) ([]model.JournalEvent, error)
}

// API groups HTTP handlers and dependencies.
type API struct {
	monitor   connectivity.Service
	events    EventStore
	hub       *Hub
	logger    *slog.Logger
	staticDir string
}

// New creates HTTP handlers with explicit dependencies.
func New(
	monitor connectivity.Service,
	events EventStore,
	hub *Hub,
	logger *slog.Logger,
	staticDir string,
) *API {
	a := &API{
		monitor:   monitor,
		events:    events,
		hub:       hub,
		logger:    logger,
		staticDir: staticDir,
	}
	if hub != nil {
		hub.bind(func() (statusResponse, historyResponse) {
			return a.status(), buildHistory(a.monitor.History())
		})
	}
	return a
}

// Logger returns request logger used by HTTP middleware.
func (a *API) Logger() *slog.Logger {
	return a.logger
}

// Health reports service liveness and whether the monitor is running.
func (a *API) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "monitoring": a.monitor.Running()})
}

// Stream upgrades to a websocket carrying live status updates.
func (a *API) Stream(w http.ResponseWriter, r *http.Request) {
	if a.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "stream_disabled", "Live stream is not available")
		return
	}
	a.hub.ServeWS(w, r)
}

// Static serves frontend assets and SPA fallback.
func (a *API) Static(w http.ResponseWriter, r *http.Request) {
	if a.staticDir == "" {
		writeError(w, http.StatusNotFound, "frontend_missing", "Frontend dist not found")
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/")
	if path == "" {
		path = "index.html"
	}
	cleanPath := strings.TrimPrefix(filepath.Clean("/"+path), "/")
	fullPath := filepath.Join(a.staticDir, cleanPath)
	if info, err := os.Stat(fullPath); err == nil && !info.IsDir() {
		http.ServeFile(w, r, fullPath)
		return
	}
	index := filepath.Join(a.staticDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		writeError(w, http.StatusNotFound, "frontend_missing", "Frontend dist not found")
		return
	}
	http.ServeFile(w, r, index)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
