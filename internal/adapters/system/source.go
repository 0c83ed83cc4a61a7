package system

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/micro-ha/connectivity-monitor/addon/internal/domain/connectivity"
	"github.com/micro-ha/connectivity-monitor/addon/internal/model"
)

const (
	defaultDebounce     = 500 * time.Millisecond
	defaultPollInterval = 5 * time.Second
)

// Config tunes the host connectivity source.
type Config struct {
	ProbeTarget      string
	ProbeTimeout     time.Duration
	Debounce         time.Duration
	PollInterval     time.Duration
	OnlyInterfaces   []string
	IgnoreInterfaces []string
}

// linkInfo is the platform neutral view of one network interface.
type linkInfo struct {
	Index    int
	Name     string
	Up       bool
	Loopback bool
	Wireless bool
	HasAddr  bool
}

// Source reads connectivity from the host network stack.
type Source struct {
	cfg    Config
	logger *slog.Logger
	prober *Prober

	listLinks   func() ([]linkInfo, map[int]bool, error)
	watchEvents func(stop <-chan struct{}) (<-chan struct{}, error)
	readSSID    func(ctx context.Context, iface string) (string, error)
}

var _ connectivity.Source = (*Source)(nil)

// NewSource builds a source backed by the platform network API.
func NewSource(cfg Config, logger *slog.Logger) *Source {
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Source{
		cfg:      cfg,
		logger:   logger,
		prober:   NewProber(cfg.ProbeTarget, cfg.ProbeTimeout),
		readSSID: readSSID,
	}
	s.listLinks = platformListLinks
	s.watchEvents = func(stop <-chan struct{}) (<-chan struct{}, error) {
		return platformWatch(stop, s.cfg.PollInterval, s.logger)
	}
	return s
}

// Fetch reads the current uplink state.
func (s *Source) Fetch(ctx context.Context) (model.ConnectivitySnapshot, error) {
	links, defaults, err := s.listLinks()
	if err != nil {
		return model.ConnectivitySnapshot{}, fmt.Errorf("list interfaces: %w", err)
	}
	uplink, ok := selectUplink(s.filter(links), defaults)
	if !ok {
		unreachable := false
		return model.ConnectivitySnapshot{
			Connected:         false,
			InternetReachable: &unreachable,
			Type:              model.ConnectionUnknown,
		}, nil
	}

	snapshot := model.ConnectivitySnapshot{
		Connected: true,
		Type:      ClassifyInterface(uplink.Name, uplink.Wireless),
		Details:   &model.ConnectionDetails{},
	}
	if snapshot.Type == model.ConnectionWiFi && s.readSSID != nil {
		ssid, err := s.readSSID(ctx, uplink.Name)
		if err != nil {
			s.logger.Debug("ssid lookup failed", "interface", uplink.Name, "err", err)
		}
		snapshot.Details.SSID = ssid
	}
	snapshot.InternetReachable = s.prober.Reachable(ctx)
	return snapshot, nil
}

// Subscribe watches the host for link, address and route changes and calls
// fn with a fresh snapshot whenever the derived snapshot changes.
func (s *Source) Subscribe(ctx context.Context, fn func(model.ConnectivitySnapshot)) (connectivity.Subscription, error) {
	stop := make(chan struct{})
	events, err := s.watchEvents(stop)
	if err != nil {
		close(stop)
		return nil, err
	}

	sub := &subscription{stop: stop, done: make(chan struct{})}
	go s.deliver(context.WithoutCancel(ctx), events, sub, fn)
	return sub, nil
}

func (s *Source) deliver(ctx context.Context, events <-chan struct{}, sub *subscription, fn func(model.ConnectivitySnapshot)) {
	defer close(sub.done)

	var (
		last    *model.ConnectivitySnapshot
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-sub.stop:
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			if timer == nil {
				timer = time.NewTimer(s.cfg.Debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(s.cfg.Debounce)
			}
			timerCh = timer.C
		case <-timerCh:
			timerCh = nil
			snapshot, err := s.Fetch(ctx)
			if err != nil {
				s.logger.Warn("connectivity read after change failed", "err", err)
				continue
			}
			if last != nil && sameSnapshot(*last, snapshot) {
				continue
			}
			last = &snapshot
			fn(snapshot)
		}
	}
}

func (s *Source) filter(links []linkInfo) []linkInfo {
	out := make([]linkInfo, 0, len(links))
	for _, l := range links {
		if s.monitored(l.Name) {
			out = append(out, l)
		}
	}
	return out
}

func (s *Source) monitored(name string) bool {
	for _, ignored := range s.cfg.IgnoreInterfaces {
		if name == ignored {
			return false
		}
	}
	if len(s.cfg.OnlyInterfaces) == 0 {
		return true
	}
	for _, allowed := range s.cfg.OnlyInterfaces {
		if name == allowed {
			return true
		}
	}
	return false
}

// selectUplink picks the interface carrying the default route, falling back to
// any non-loopback interface that is up and addressed.
func selectUplink(links []linkInfo, defaults map[int]bool) (linkInfo, bool) {
	var fallback *linkInfo
	for i := range links {
		l := links[i]
		if l.Loopback || !l.Up {
			continue
		}
		if defaults[l.Index] {
			return l, true
		}
		if fallback == nil && l.HasAddr && len(defaults) == 0 {
			fallback = &links[i]
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return linkInfo{}, false
}

func sameSnapshot(a, b model.ConnectivitySnapshot) bool {
	if a.Connected != b.Connected || a.Type != b.Type {
		return false
	}
	if (a.InternetReachable == nil) != (b.InternetReachable == nil) {
		return false
	}
	if a.InternetReachable != nil && *a.InternetReachable != *b.InternetReachable {
		return false
	}
	if (a.Details == nil) != (b.Details == nil) {
		return false
	}
	return a.Details == nil || a.Details.SSID == b.Details.SSID
}

type subscription struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		close(s.stop)
		<-s.done
	})
}

// wake performs a non-blocking send so bursts collapse into one pending signal.
func wake(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
