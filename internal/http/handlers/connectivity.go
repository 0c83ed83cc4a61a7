package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/micro-ha/connectivity-monitor/addon/internal/domain/connectivity"
	"github.com/micro-ha/connectivity-monitor/addon/internal/model"
	"github.com/micro-ha/connectivity-monitor/addon/internal/storage"
)

const maxEventsLimit = 500

type statusResponse struct {
	Running  bool                        `json:"running"`
	Display  model.Display               `json:"display"`
	Current  *model.ConnectivitySnapshot `json:"current"`
	Previous *model.ConnectivitySnapshot `json:"previous"`
}

type historyItem struct {
	model.HistoryEntry
	Text string `json:"text"`
}

type historyResponse struct {
	Items     []historyItem `json:"items"`
	EmptyText string        `json:"empty_text,omitempty"`
}

// Status returns display strings together with the raw snapshots.
func (a *API) Status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.status())
}

func (a *API) status() statusResponse {
	state := a.monitor.State()
	return statusResponse{
		Running:  a.monitor.Running(),
		Display:  a.monitor.DisplaySnapshot(),
		Current:  state.Current,
		Previous: state.Previous,
	}
}

// History returns the connection history log, newest first.
func (a *API) History(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, buildHistory(a.monitor.History()))
}

func buildHistory(entries []model.HistoryEntry) historyResponse {
	out := historyResponse{Items: make([]historyItem, 0, len(entries))}
	for _, entry := range entries {
		out.Items = append(out.Items, historyItem{HistoryEntry: entry, Text: entry.String()})
	}
	if len(out.Items) == 0 {
		out.EmptyText = model.EmptyHistoryText
	}
	return out
}

// Refresh re-reads connectivity now and returns the resulting status.
func (a *API) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := a.monitor.Refresh(r.Context()); err != nil {
		switch {
		case errors.Is(err, connectivity.ErrNotStarted):
			writeError(w, http.StatusConflict, "monitor_not_running", "Connectivity monitor is not running")
		case errors.Is(err, connectivity.ErrFetchFailed):
			writeError(w, http.StatusBadGateway, "fetch_failed", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "refresh_failed", err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, a.status())
}

// ListEvents returns journaled updates and alerts, newest first.
func (a *API) ListEvents(w http.ResponseWriter, r *http.Request) {
	if a.events == nil {
		writeError(w, http.StatusServiceUnavailable, "journal_disabled", "Event journal is not available")
		return
	}
	filter := storage.EventFilter{Kind: strings.TrimSpace(r.URL.Query().Get("kind"))}
	switch filter.Kind {
	case "", model.EventKindSnapshot, model.EventKindConnectionLost:
	default:
		writeError(w, http.StatusBadRequest, "invalid_kind", "kind must be snapshot or connection_lost")
		return
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 || limit > maxEventsLimit {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be between 1 and 500")
			return
		}
		filter.Limit = limit
	}

	items, err := a.events.ListEvents(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
