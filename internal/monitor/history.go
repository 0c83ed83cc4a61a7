package monitor

import "github.com/micro-ha/connectivity-monitor/addon/internal/model"

// MaxHistory bounds the connection history log.
const MaxHistory = 10

// prependHistory adds entry at the head unless the newest entry already has the
// same status text. Only the head is compared, so A, B, A keeps three entries.
func prependHistory(history []model.HistoryEntry, entry model.HistoryEntry, limit int) ([]model.HistoryEntry, bool) {
	if len(history) > 0 && history[0].StatusText == entry.StatusText {
		return history, false
	}
	if limit <= 0 {
		limit = MaxHistory
	}
	next := make([]model.HistoryEntry, 0, min(len(history)+1, limit))
	next = append(next, entry)
	next = append(next, history...)
	if len(next) > limit {
		next = next[:limit]
	}
	return next, true
}
