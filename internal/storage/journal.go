package storage

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/micro-ha/connectivity-monitor/addon/internal/model"
)

const (
	defaultJournalBuffer    = 256
	defaultJournalRetention = 5000
	journalFlushInterval    = time.Second
)

type eventWriter interface {
	AppendEvents(ctx context.Context, events []model.JournalEvent) error
	PruneEvents(ctx context.Context, keep int) (int64, error)
}

// Journal records monitor updates in the background. Observe never blocks;
// when the buffer is full the update is dropped and counted.
type Journal struct {
	repo      eventWriter
	logger    *slog.Logger
	retention int
	queue     chan model.Update
	dropped   atomic.Int64
}

func NewJournal(repo eventWriter, retention int, logger *slog.Logger) *Journal {
	if retention <= 0 {
		retention = defaultJournalRetention
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{
		repo:      repo,
		logger:    logger,
		retention: retention,
		queue:     make(chan model.Update, defaultJournalBuffer),
	}
}

func (j *Journal) Observe(update model.Update) {
	select {
	case j.queue <- update:
	default:
		j.dropped.Add(1)
	}
}

func (j *Journal) Dropped() int64 {
	return j.dropped.Load()
}

// Run drains the queue until ctx is cancelled, then flushes what is left.
func (j *Journal) Run(ctx context.Context) {
	ticker := time.NewTicker(journalFlushInterval)
	defer ticker.Stop()

	var pending []model.JournalEvent
	flush := func(ctx context.Context) {
		if len(pending) == 0 {
			return
		}
		if err := j.repo.AppendEvents(ctx, pending); err != nil {
			j.logger.Warn("journal write failed", "events", len(pending), "err", err)
			pending = pending[:0]
			return
		}
		pending = pending[:0]
		if removed, err := j.repo.PruneEvents(ctx, j.retention); err != nil {
			j.logger.Warn("journal prune failed", "err", err)
		} else if removed > 0 {
			j.logger.Debug("journal pruned", "removed", removed)
		}
	}

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case update := <-j.queue:
					pending = append(pending, eventsFor(update)...)
				default:
					shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
					flush(shutdownCtx)
					cancel()
					if n := j.dropped.Load(); n > 0 {
						j.logger.Warn("journal dropped updates", "dropped", n)
					}
					return
				}
			}
		case update := <-j.queue:
			pending = append(pending, eventsFor(update)...)
			if len(pending) >= defaultJournalBuffer {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		}
	}
}

func eventsFor(update model.Update) []model.JournalEvent {
	snapshot := update.Snapshot
	base := model.JournalEvent{
		Kind:           model.EventKindSnapshot,
		StatusText:     update.StatusText,
		Connected:      snapshot.Connected,
		ConnectionType: string(snapshot.Type),
		Reachable:      snapshot.InternetReachable,
		Appended:       update.Entry != nil,
		ObservedAt:     update.ObservedAt,
	}
	if ssid, ok := snapshot.SSID(); ok {
		base.SSID = &ssid
	}
	base.ID = uuid.NewString()

	events := []model.JournalEvent{base}
	if update.ConnectionLost {
		lost := base
		lost.ID = uuid.NewString()
		lost.Kind = model.EventKindConnectionLost
		lost.Appended = false
		events = append(events, lost)
	}
	return events
}
