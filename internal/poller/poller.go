package poller

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/micro-ha/connectivity-monitor/addon/internal/domain/connectivity"
)

const defaultInterval = 30 * time.Second

// Refresher is the part of the monitor the poller drives.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Poller re-reads connectivity on a fixed interval so reachability changes
// that raise no interface event still reach the monitor.
type Poller struct {
	monitor   Refresher
	interval  time.Duration
	refreshCh chan struct{}
	logger    *slog.Logger
}

func New(monitor Refresher, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = defaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{monitor: monitor, interval: interval, refreshCh: make(chan struct{}, 1), logger: logger}
}

func (p *Poller) TriggerRefresh() {
	select {
	case p.refreshCh <- struct{}{}:
	default:
	}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		timer := time.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-p.refreshCh:
			timer.Stop()
		case <-timer.C:
		}
		if err := p.monitor.Refresh(ctx); err != nil {
			if errors.Is(err, connectivity.ErrNotStarted) {
				p.logger.Info("refresh skipped; monitor not running")
				continue
			}
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("refresh failed", "err", err)
		}
	}
}
