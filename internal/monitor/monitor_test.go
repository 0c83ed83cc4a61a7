package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/micro-ha/connectivity-monitor/addon/internal/domain/connectivity"
	"github.com/micro-ha/connectivity-monitor/addon/internal/model"
)

type fakeSubscription struct {
	source *fakeSource
}

func (s *fakeSubscription) Unsubscribe() {
	s.source.mu.Lock()
	defer s.source.mu.Unlock()
	s.source.fn = nil
	s.source.unsubscribed++
}

type fakeSource struct {
	mu           sync.Mutex
	fn           func(model.ConnectivitySnapshot)
	subscribes   int
	unsubscribed int
	subscribeErr error
	fetchErr     error
	fetchResult  model.ConnectivitySnapshot
}

func (s *fakeSource) Subscribe(_ context.Context, fn func(model.ConnectivitySnapshot)) (connectivity.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subscribeErr != nil {
		return nil, s.subscribeErr
	}
	s.subscribes++
	s.fn = fn
	return &fakeSubscription{source: s}, nil
}

func (s *fakeSource) Fetch(context.Context) (model.ConnectivitySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return model.ConnectivitySnapshot{}, s.fetchErr
	}
	return s.fetchResult, nil
}

func (s *fakeSource) setFetch(snap model.ConnectivitySnapshot, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchResult = snap
	s.fetchErr = err
}

func (s *fakeSource) emit(snap model.ConnectivitySnapshot) {
	s.mu.Lock()
	fn := s.fn
	s.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

type fakeSink struct {
	lost chan model.ConnectivitySnapshot
}

func newFakeSink() *fakeSink {
	return &fakeSink{lost: make(chan model.ConnectivitySnapshot, 16)}
}

func (s *fakeSink) NotifyConnectionLost(_ context.Context, snap model.ConnectivitySnapshot) error {
	s.lost <- snap
	return nil
}

type panicSink struct{}

func (panicSink) NotifyConnectionLost(context.Context, model.ConnectivitySnapshot) error {
	panic("dialog crashed")
}

type fakePermissions struct {
	status model.PermissionStatus
	err    error
}

func (p fakePermissions) RequestForegroundLocation(context.Context) (model.PermissionStatus, error) {
	return p.status, p.err
}

type recordingObserver struct {
	mu      sync.Mutex
	updates []model.Update
}

func (o *recordingObserver) Observe(u model.Update) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.updates = append(o.updates, u)
}

func (o *recordingObserver) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.updates)
}

var (
	wifiHome     = model.ConnectivitySnapshot{Connected: true, Type: model.ConnectionWiFi, Details: &model.ConnectionDetails{SSID: "Home"}}
	wifiNoSSID   = model.ConnectivitySnapshot{Connected: true, Type: model.ConnectionWiFi}
	cellular     = model.ConnectivitySnapshot{Connected: true, Type: model.ConnectionCellular}
	disconnected = model.ConnectivitySnapshot{Connected: false, Type: model.ConnectionUnknown}
)

func fixedClock() func() time.Time {
	at := time.Date(2024, 5, 10, 14, 7, 0, 0, time.Local)
	return func() time.Time { return at }
}

func newTestMonitor(t *testing.T, source *fakeSource, sink connectivity.NotificationSink, opts ...Option) *Monitor {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]Option{WithClock(fixedClock())}, opts...)
	m := New(source, sink, logger, opts...)
	t.Cleanup(m.Stop)
	return m
}

func requireAlert(t *testing.T, sink *fakeSink) model.ConnectivitySnapshot {
	t.Helper()
	select {
	case snap := <-sink.lost:
		return snap
	case <-time.After(2 * time.Second):
		t.Fatalf("expected connection lost notification")
	}
	return model.ConnectivitySnapshot{}
}

func TestStartProcessesCurrentWiFi(t *testing.T) {
	source := &fakeSource{fetchResult: wifiHome}
	m := newTestMonitor(t, source, newFakeSink())

	require.NoError(t, m.Start(context.Background()))

	history := m.History()
	require.Len(t, history, 1)
	require.Equal(t, "14:07 - conectado ao Wi-Fi Home", history[0].String())

	state := m.State()
	require.NotNil(t, state.Current)
	require.Nil(t, state.Previous)
}

func TestIdenticalSnapshotsAreCollapsed(t *testing.T) {
	m := newTestMonitor(t, &fakeSource{}, newFakeSink())

	first := m.OnSnapshot(wifiNoSSID)
	second := m.OnSnapshot(wifiNoSSID)

	require.NotNil(t, first.Entry)
	require.Nil(t, second.Entry)
	require.False(t, first.ConnectionLost)
	require.False(t, second.ConnectionLost)
	require.Len(t, m.History(), 1)
}

func TestConnectedToDisconnectedRaisesOneAlert(t *testing.T) {
	sink := newFakeSink()
	m := newTestMonitor(t, &fakeSource{}, sink)

	require.False(t, m.OnSnapshot(cellular).ConnectionLost)
	update := m.OnSnapshot(disconnected)
	require.True(t, update.ConnectionLost)

	got := requireAlert(t, sink)
	require.False(t, got.Connected)

	history := m.History()
	require.Len(t, history, 2)
	require.Equal(t, "desconectado", history[0].StatusText)
	require.Equal(t, "conectado via cellular", history[1].StatusText)

	require.False(t, m.OnSnapshot(disconnected).ConnectionLost)
	select {
	case <-sink.lost:
		t.Fatalf("unexpected second alert")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFirstSnapshotNeverAlerts(t *testing.T) {
	m := newTestMonitor(t, &fakeSource{}, newFakeSink())
	require.False(t, m.OnSnapshot(disconnected).ConnectionLost)
}

func TestHistoryKeepsTenNewestEntries(t *testing.T) {
	at := time.Date(2024, 5, 10, 8, 0, 0, 0, time.Local)
	tick := 0
	clock := func() time.Time {
		tick++
		return at.Add(time.Duration(tick) * time.Minute)
	}
	m := newTestMonitor(t, &fakeSource{}, nil, WithClock(clock))

	for i := 0; i < 11; i++ {
		if i%2 == 0 {
			m.OnSnapshot(cellular)
		} else {
			m.OnSnapshot(disconnected)
		}
	}

	history := m.History()
	require.Len(t, history, MaxHistory)
	require.Equal(t, "08:11", history[0].Timestamp)
	require.Equal(t, "08:02", history[MaxHistory-1].Timestamp)
}

func TestRefreshFailureLeavesStateUnchanged(t *testing.T) {
	source := &fakeSource{fetchResult: cellular}
	m := newTestMonitor(t, source, newFakeSink())
	require.NoError(t, m.Start(context.Background()))
	before := m.State()

	boom := errors.New("netinfo unavailable")
	source.setFetch(model.ConnectivitySnapshot{}, boom)
	err := m.Refresh(context.Background())

	require.ErrorIs(t, err, connectivity.ErrFetchFailed)
	require.ErrorIs(t, err, boom)
	require.Equal(t, before, m.State())
}

func TestRefreshAppliesFetchedSnapshot(t *testing.T) {
	source := &fakeSource{fetchResult: cellular}
	m := newTestMonitor(t, source, newFakeSink())
	require.NoError(t, m.Start(context.Background()))

	source.setFetch(wifiHome, nil)
	require.NoError(t, m.Refresh(context.Background()))

	state := m.State()
	require.Equal(t, cellular.Type, state.Previous.Type)
	require.Equal(t, "conectado ao Wi-Fi Home", m.History()[0].StatusText)
	require.Equal(t, 1, source.subscribes)
}

func TestRefreshRequiresRunningMonitor(t *testing.T) {
	m := newTestMonitor(t, &fakeSource{}, nil)
	require.ErrorIs(t, m.Refresh(context.Background()), connectivity.ErrNotStarted)
}

func TestDisplayBeforeFirstSnapshot(t *testing.T) {
	m := newTestMonitor(t, &fakeSource{}, nil)
	display := m.DisplaySnapshot()
	require.False(t, display.Loaded)
	require.Equal(t, "Carregando...", display.ConnectionTypeText)
	require.Equal(t, "Não aplicável", display.SSIDText)
}

func TestStartIsIdempotent(t *testing.T) {
	source := &fakeSource{fetchResult: cellular}
	m := newTestMonitor(t, source, nil)

	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Start(context.Background()))
	require.Equal(t, 1, source.subscribes)
	require.Len(t, m.History(), 1)
}

func TestStartSubscribeFailureKeepsMonitorStopped(t *testing.T) {
	boom := errors.New("no netlink socket")
	m := newTestMonitor(t, &fakeSource{subscribeErr: boom}, nil)

	err := m.Start(context.Background())
	require.ErrorIs(t, err, connectivity.ErrSubscribeFailed)
	require.ErrorIs(t, err, boom)
	require.False(t, m.Running())
	require.Empty(t, m.History())
}

func TestStartFetchFailureKeepsSubscription(t *testing.T) {
	source := &fakeSource{fetchErr: errors.New("timeout")}
	m := newTestMonitor(t, source, nil)

	err := m.Start(context.Background())
	require.ErrorIs(t, err, connectivity.ErrFetchFailed)
	require.True(t, m.Running())
	require.Nil(t, m.State().Current)

	source.emit(cellular)
	require.Eventually(t, func() bool { return len(m.History()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestSubscriptionDeliveriesAreApplied(t *testing.T) {
	source := &fakeSource{fetchResult: cellular}
	sink := newFakeSink()
	observer := &recordingObserver{}
	m := newTestMonitor(t, source, sink, WithObservers(observer))
	require.NoError(t, m.Start(context.Background()))

	source.emit(disconnected)
	source.emit(wifiHome)

	require.Eventually(t, func() bool { return observer.count() == 3 }, time.Second, 5*time.Millisecond)
	requireAlert(t, sink)

	history := m.History()
	require.Len(t, history, 3)
	require.Equal(t, "conectado ao Wi-Fi Home", history[0].StatusText)
}

func TestStopDiscardsStateAndCancelsSubscription(t *testing.T) {
	source := &fakeSource{fetchResult: cellular}
	m := newTestMonitor(t, source, nil)
	require.NoError(t, m.Start(context.Background()))

	m.Stop()
	m.Stop()

	require.False(t, m.Running())
	require.Equal(t, 1, source.unsubscribed)
	require.Empty(t, m.History())
	require.Nil(t, m.State().Current)

	source.emit(disconnected)
	require.Empty(t, m.History())
}

func TestStopWhenNeverStarted(t *testing.T) {
	m := newTestMonitor(t, &fakeSource{}, nil)
	m.Stop()
	require.False(t, m.Running())
}

func TestDeniedPermissionHidesSSID(t *testing.T) {
	source := &fakeSource{fetchResult: wifiHome}
	m := newTestMonitor(t, source, nil, WithPermissions(fakePermissions{status: model.PermissionDenied}))

	require.NoError(t, m.Start(context.Background()))

	require.Equal(t, model.PermissionDenied, m.Permission())
	require.Equal(t, "conectado via wifi", m.History()[0].StatusText)
	display := m.DisplaySnapshot()
	require.Equal(t, "Wi-Fi", display.ConnectionTypeText)
	require.Equal(t, "Não aplicável", display.SSIDText)
	require.Equal(t, "Não concedida", display.PermissionText)
}

func TestPermissionErrorDegradesToDenied(t *testing.T) {
	source := &fakeSource{fetchResult: cellular}
	perms := fakePermissions{err: errors.New("prompt dismissed")}
	m := newTestMonitor(t, source, nil, WithPermissions(perms))

	require.NoError(t, m.Start(context.Background()))
	require.True(t, m.Running())
	require.Equal(t, model.PermissionDenied, m.Permission())
}

func TestPanickingSinkDoesNotReachMonitor(t *testing.T) {
	m := newTestMonitor(t, &fakeSource{}, panicSink{})
	m.OnSnapshot(cellular)
	require.NotPanics(t, func() { m.OnSnapshot(disconnected) })
	require.Len(t, m.History(), 2)
}

func TestRandomSequencesKeepInvariants(t *testing.T) {
	snapshots := []model.ConnectivitySnapshot{wifiHome, wifiNoSSID, cellular, disconnected}
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 50; run++ {
		m := New(&fakeSource{}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), WithClock(fixedClock()))
		var previous *model.ConnectivitySnapshot
		for step := 0; step < 40; step++ {
			snap := snapshots[rng.Intn(len(snapshots))]
			update := m.OnSnapshot(snap)

			wantLost := previous != nil && previous.Connected && !snap.Connected
			require.Equal(t, wantLost, update.ConnectionLost)

			state := m.State()
			require.LessOrEqual(t, len(state.History), MaxHistory)
			for i := 0; i+1 < len(state.History); i++ {
				require.NotEqual(t, state.History[i].StatusText, state.History[i+1].StatusText)
			}
			if previous == nil {
				require.Nil(t, state.Previous)
			} else {
				require.Equal(t, *previous, *state.Previous)
			}

			s := snap
			previous = &s
		}
	}
}

// changeDuringFetchSource reports a change through the subscription while the
// initial fetch is still in flight, then returns a newer reading.
type changeDuringFetchSource struct {
	*fakeSource
	observer *recordingObserver
	early    model.ConnectivitySnapshot
}

func (s *changeDuringFetchSource) Fetch(ctx context.Context) (model.ConnectivitySnapshot, error) {
	s.emit(s.early)
	deadline := time.Now().Add(2 * time.Second)
	for s.observer.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	return s.fakeSource.Fetch(ctx)
}

func TestStartAppliesChangesDuringInitialFetchInOrder(t *testing.T) {
	observer := &recordingObserver{}
	source := &changeDuringFetchSource{
		fakeSource: &fakeSource{fetchResult: wifiHome},
		observer:   observer,
		early:      cellular,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := New(source, nil, logger, WithClock(fixedClock()), WithObservers(observer))
	t.Cleanup(m.Stop)

	require.NoError(t, m.Start(context.Background()))

	history := m.History()
	require.Len(t, history, 2)
	require.Equal(t, "conectado ao Wi-Fi Home", history[0].StatusText)
	require.Equal(t, "conectado via cellular", history[1].StatusText)
	require.Equal(t, wifiHome.Type, m.State().Current.Type)
}
