package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/micro-ha/connectivity-monitor/addon/internal/domain/connectivity"
	"github.com/micro-ha/connectivity-monitor/addon/internal/model"
)

const (
	defaultQueueSize    = 64
	defaultAlertTimeout = 10 * time.Second
)

// Option customises a Monitor.
type Option func(*Monitor)

// WithClock overrides the wall clock used for history timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// WithPermissions sets the provider asked for SSID access on Start. Without
// one, SSIDs reported by the source are shown as-is.
func WithPermissions(p connectivity.PermissionProvider) Option {
	return func(m *Monitor) {
		m.permissions = p
		if p != nil {
			m.permission = model.PermissionDenied
		}
	}
}

// WithObservers registers listeners called after every processed snapshot.
func WithObservers(observers ...connectivity.Observer) Option {
	return func(m *Monitor) {
		for _, o := range observers {
			if o != nil {
				m.observers = append(m.observers, o)
			}
		}
	}
}

// WithAlertTimeout bounds a single connection-lost notification.
func WithAlertTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.alertTimeout = d
		}
	}
}

// Monitor turns a stream of connectivity snapshots into a connection-lost
// alert and a bounded, de-duplicated history log.
type Monitor struct {
	source       connectivity.Source
	sink         connectivity.NotificationSink
	permissions  connectivity.PermissionProvider
	observers    []connectivity.Observer
	logger       *slog.Logger
	now          func() time.Time
	alertTimeout time.Duration
	historyLimit int

	// lifecycle guards the subscription slot and the delivery loop.
	lifecycle sync.Mutex
	running   bool
	sub       connectivity.Subscription
	stopCh    chan struct{}
	doneCh    chan struct{}

	// mu serializes OnSnapshot and guards state and permission.
	mu         sync.Mutex
	state      model.MonitorState
	permission model.PermissionStatus
}

var _ connectivity.Service = (*Monitor)(nil)

// New creates a stopped monitor. sink may be nil when alerts are not wanted.
func New(source connectivity.Source, sink connectivity.NotificationSink, logger *slog.Logger, opts ...Option) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Monitor{
		source:       source,
		sink:         sink,
		logger:       logger,
		now:          time.Now,
		alertTimeout: defaultAlertTimeout,
		historyLimit: MaxHistory,
		permission:   model.PermissionGranted,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start subscribes to connectivity changes and processes the current state
// once before returning. Calling Start on a running monitor does nothing.
//
// A subscribe failure leaves the monitor stopped. A failure of the initial
// fetch is returned but the subscription stays active.
func (m *Monitor) Start(ctx context.Context) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	if m.running {
		return nil
	}

	permission := m.requestPermission(ctx)

	stopCh := make(chan struct{})
	queue := make(chan model.ConnectivitySnapshot, defaultQueueSize)
	sub, err := m.source.Subscribe(ctx, func(s model.ConnectivitySnapshot) {
		select {
		case queue <- s:
		case <-stopCh:
		}
	})
	if err != nil {
		return fmt.Errorf("%w: %w", connectivity.ErrSubscribeFailed, err)
	}

	m.mu.Lock()
	m.state = model.MonitorState{}
	m.permission = permission
	m.mu.Unlock()

	m.sub = sub
	m.stopCh = stopCh
	m.doneCh = make(chan struct{})
	m.running = true
	m.logger.Info("connectivity monitor started", "permission", string(permission))

	go m.run(queue, stopCh, m.doneCh)
	return m.fetchAndProcess(ctx)
}

// Stop cancels the subscription and discards the session state. No queued
// snapshot is applied after Stop returns.
func (m *Monitor) Stop() {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	if !m.running {
		return
	}
	// Closing stopCh first releases source callbacks blocked on a full queue.
	close(m.stopCh)
	if m.sub != nil {
		m.sub.Unsubscribe()
	}
	<-m.doneCh

	m.sub = nil
	m.stopCh = nil
	m.doneCh = nil
	m.running = false

	m.mu.Lock()
	m.state = model.MonitorState{}
	m.mu.Unlock()
	m.logger.Info("connectivity monitor stopped")
}

// Running reports whether a subscription is active.
func (m *Monitor) Running() bool {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	return m.running
}

// Refresh fetches the current connectivity once and applies it.
func (m *Monitor) Refresh(ctx context.Context) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	if !m.running {
		return connectivity.ErrNotStarted
	}
	return m.fetchAndProcess(ctx)
}

// OnSnapshot applies one snapshot. It is the only operation that mutates the
// monitor state and calls never interleave.
func (m *Monitor) OnSnapshot(snapshot model.ConnectivitySnapshot) model.Update {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.permission != model.PermissionGranted {
		snapshot = snapshot.WithoutSSID()
	}

	now := m.now()
	previous := m.state.Current
	current := snapshot
	m.state.Previous = previous
	m.state.Current = &current

	update := model.Update{
		Snapshot:       snapshot,
		StatusText:     snapshot.StatusText(),
		ConnectionLost: previous != nil && previous.Connected && !snapshot.Connected,
		ObservedAt:     now,
	}

	entry := model.NewHistoryEntry(now, update.StatusText)
	history, appended := prependHistory(m.state.History, entry, m.historyLimit)
	m.state.History = history
	if appended {
		update.Entry = &entry
	}

	if update.ConnectionLost {
		m.logger.Warn("connection lost", "previous_type", string(previous.Type))
		m.dispatchAlert(snapshot)
	}
	for _, o := range m.observers {
		o.Observe(update)
	}
	return update
}

// State returns a copy of the session state.
func (m *Monitor) State() model.MonitorState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// History returns the history log, newest first.
func (m *Monitor) History() []model.HistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.state.History) == 0 {
		return []model.HistoryEntry{}
	}
	out := make([]model.HistoryEntry, len(m.state.History))
	copy(out, m.state.History)
	return out
}

// DisplaySnapshot derives the human-readable connection summary.
func (m *Monitor) DisplaySnapshot() model.Display {
	m.mu.Lock()
	defer m.mu.Unlock()
	return model.BuildDisplay(m.state.Current, m.permission)
}

// Permission returns the last location permission outcome.
func (m *Monitor) Permission() model.PermissionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.permission
}

func (m *Monitor) run(queue <-chan model.ConnectivitySnapshot, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)
	for {
		select {
		case <-stopCh:
			return
		case snapshot := <-queue:
			select {
			case <-stopCh:
				return
			default:
			}
			m.OnSnapshot(snapshot)
		}
	}
}

// fetchAndProcess leaves state untouched when the fetch fails.
func (m *Monitor) fetchAndProcess(ctx context.Context) error {
	snapshot, err := m.source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", connectivity.ErrFetchFailed, err)
	}
	m.OnSnapshot(snapshot)
	return nil
}

func (m *Monitor) requestPermission(ctx context.Context) model.PermissionStatus {
	if m.permissions == nil {
		return model.PermissionGranted
	}
	status, err := m.permissions.RequestForegroundLocation(ctx)
	if err != nil {
		if !errors.Is(err, connectivity.ErrPermissionDenied) {
			m.logger.Warn("location permission request failed", "err", err)
		}
		return model.PermissionDenied
	}
	if status != model.PermissionGranted {
		m.logger.Info("location permission not granted; wifi names hidden")
		return model.PermissionDenied
	}
	return model.PermissionGranted
}

func (m *Monitor) dispatchAlert(snapshot model.ConnectivitySnapshot) {
	if m.sink == nil {
		return
	}
	go func() {
		defer func() {
			if recovered := recover(); recovered != nil {
				m.logger.Error("connection lost notification panicked", "panic", fmt.Sprint(recovered))
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), m.alertTimeout)
		defer cancel()
		if err := m.sink.NotifyConnectionLost(ctx, snapshot); err != nil {
			m.logger.Warn("connection lost notification failed", "err", err)
		}
	}()
}
