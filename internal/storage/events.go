package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/micro-ha/connectivity-monitor/addon/internal/model"
)

const defaultListLimit = 100

// EventFilter narrows ListEvents. Zero values mean no constraint.
type EventFilter struct {
	Kind  string
	Limit int
}

func (r *Repository) AppendEvents(ctx context.Context, events []model.JournalEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO connectivity_events (id, kind, status_text, connected, connection_type, ssid, reachable, appended, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, event := range events {
		if _, err := stmt.ExecContext(
			ctx,
			event.ID,
			event.Kind,
			event.StatusText,
			event.Connected,
			event.ConnectionType,
			fromStringPtr(event.SSID),
			fromBoolPtr(event.Reachable),
			event.Appended,
			event.ObservedAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListEvents returns events newest first.
func (r *Repository) ListEvents(ctx context.Context, filter EventFilter) ([]model.JournalEvent, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `
		SELECT id, kind, status_text, connected, connection_type, ssid, reachable, appended, observed_at
		FROM connectivity_events`
	args := []any{}
	if filter.Kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, filter.Kind)
	}
	query += ` ORDER BY seq DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []model.JournalEvent{}
	for rows.Next() {
		var (
			event      model.JournalEvent
			ssid       sql.NullString
			reachable  sql.NullBool
			observedAt string
		)
		if err := rows.Scan(&event.ID, &event.Kind, &event.StatusText, &event.Connected, &event.ConnectionType, &ssid, &reachable, &event.Appended, &observedAt); err != nil {
			return nil, err
		}
		event.SSID = strPtr(ssid)
		event.Reachable = boolPtr(reachable)
		event.ObservedAt = parseTime(observedAt)
		result = append(result, event)
	}
	return result, rows.Err()
}

// PruneEvents keeps the newest keep rows.
func (r *Repository) PruneEvents(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM connectivity_events
		WHERE seq <= (SELECT seq FROM connectivity_events ORDER BY seq DESC LIMIT 1 OFFSET ?)`, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
