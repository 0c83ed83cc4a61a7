package system

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/micro-ha/connectivity-monitor/addon/internal/model"
)

func newTestSource(links []linkInfo, defaults map[int]bool) *Source {
	s := NewSource(Config{ProbeTarget: "off", Debounce: 10 * time.Millisecond}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.listLinks = func() ([]linkInfo, map[int]bool, error) { return links, defaults, nil }
	s.readSSID = func(context.Context, string) (string, error) { return "Home", nil }
	return s
}

func TestClassifyInterface(t *testing.T) {
	tests := map[string]model.ConnectionType{
		"wlan0":     model.ConnectionWiFi,
		"wlp3s0":    model.ConnectionWiFi,
		"wwan0":     model.ConnectionCellular,
		"rmnet0":    model.ConnectionCellular,
		"wg0":       model.ConnectionVPN,
		"tun0":      model.ConnectionVPN,
		"bnep0":     model.ConnectionBluetooth,
		"eth0":      model.ConnectionEthernet,
		"enp0s31f6": model.ConnectionEthernet,
		"docker0":   model.ConnectionOther,
		"":          model.ConnectionUnknown,
	}
	for name, want := range tests {
		require.Equal(t, want, ClassifyInterface(name, false), name)
	}
	require.Equal(t, model.ConnectionWiFi, ClassifyInterface("eth1", true))
}

func TestIsWirelessReadsSysfs(t *testing.T) {
	root := t.TempDir()
	prev := sysClassNet
	sysClassNet = root
	t.Cleanup(func() { sysClassNet = prev })

	require.NoError(t, os.MkdirAll(filepath.Join(root, "mlan0", "wireless"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "eth0"), 0o755))

	require.True(t, isWireless("mlan0"))
	require.False(t, isWireless("eth0"))
}

func TestSelectUplinkPrefersDefaultRoute(t *testing.T) {
	links := []linkInfo{
		{Index: 1, Name: "lo", Up: true, Loopback: true, HasAddr: true},
		{Index: 2, Name: "eth0", Up: true, HasAddr: true},
		{Index: 3, Name: "wlan0", Up: true, HasAddr: true, Wireless: true},
	}
	got, ok := selectUplink(links, map[int]bool{3: true})
	require.True(t, ok)
	require.Equal(t, "wlan0", got.Name)

	_, ok = selectUplink(links, map[int]bool{9: true})
	require.False(t, ok, "default route on an unknown link means no usable uplink")

	got, ok = selectUplink(links, map[int]bool{})
	require.True(t, ok)
	require.Equal(t, "eth0", got.Name)

	_, ok = selectUplink([]linkInfo{{Index: 2, Name: "eth0", Up: false, HasAddr: true}}, map[int]bool{2: true})
	require.False(t, ok)
}

func TestFetchWiFiUplink(t *testing.T) {
	s := newTestSource([]linkInfo{{Index: 3, Name: "wlan0", Up: true, HasAddr: true, Wireless: true}}, map[int]bool{3: true})

	snap, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.True(t, snap.Connected)
	require.Equal(t, model.ConnectionWiFi, snap.Type)
	require.Nil(t, snap.InternetReachable)
	ssid, ok := snap.SSID()
	require.True(t, ok)
	require.Equal(t, "Home", ssid)
}

func TestFetchWithoutUplinkIsDisconnected(t *testing.T) {
	s := newTestSource([]linkInfo{{Index: 1, Name: "lo", Up: true, Loopback: true}}, map[int]bool{})

	snap, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.False(t, snap.Connected)
	require.Nil(t, snap.Details)
	require.NotNil(t, snap.InternetReachable)
	require.False(t, *snap.InternetReachable)
}

func TestFetchHonoursIgnoreList(t *testing.T) {
	s := newTestSource([]linkInfo{{Index: 2, Name: "eth0", Up: true, HasAddr: true}}, map[int]bool{2: true})
	s.cfg.IgnoreInterfaces = []string{"eth0"}

	snap, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.False(t, snap.Connected)
}

func TestFetchPropagatesListError(t *testing.T) {
	s := newTestSource(nil, nil)
	boom := errors.New("netlink socket closed")
	s.listLinks = func() ([]linkInfo, map[int]bool, error) { return nil, nil, boom }

	_, err := s.Fetch(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestSubscribeDeliversOnlyChanges(t *testing.T) {
	var mu sync.Mutex
	links := []linkInfo{{Index: 2, Name: "eth0", Up: true, HasAddr: true}}
	s := newTestSource(nil, nil)
	s.listLinks = func() ([]linkInfo, map[int]bool, error) {
		mu.Lock()
		defer mu.Unlock()
		return links, map[int]bool{2: true}, nil
	}
	trigger := make(chan struct{}, 1)
	s.watchEvents = func(<-chan struct{}) (<-chan struct{}, error) { return trigger, nil }

	got := make(chan model.ConnectivitySnapshot, 8)
	sub, err := s.Subscribe(context.Background(), func(snap model.ConnectivitySnapshot) { got <- snap })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	trigger <- struct{}{}
	first := <-got
	require.True(t, first.Connected)

	trigger <- struct{}{}
	select {
	case snap := <-got:
		t.Fatalf("unexpected duplicate delivery: %+v", snap)
	case <-time.After(50 * time.Millisecond):
	}

	mu.Lock()
	links = []linkInfo{{Index: 2, Name: "eth0", Up: false}}
	mu.Unlock()
	trigger <- struct{}{}

	select {
	case snap := <-got:
		require.False(t, snap.Connected)
	case <-time.After(time.Second):
		t.Fatalf("expected disconnected delivery")
	}
}

func TestSubscribeWatchError(t *testing.T) {
	s := newTestSource(nil, nil)
	boom := errors.New("operation not permitted")
	s.watchEvents = func(<-chan struct{}) (<-chan struct{}, error) { return nil, boom }

	_, err := s.Subscribe(context.Background(), func(model.ConnectivitySnapshot) {})
	require.ErrorIs(t, err, boom)
}

func TestProberReachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	p := NewProber(ln.Addr().String(), time.Second)
	got := p.Reachable(context.Background())
	require.NotNil(t, got)
	require.True(t, *got)

	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	got = NewProber(addr, 200*time.Millisecond).Reachable(context.Background())
	require.NotNil(t, got)
	require.False(t, *got)

	require.Nil(t, NewProber("off", 0).Reachable(context.Background()))
}

func TestStaticPermissions(t *testing.T) {
	status, err := StaticPermissions{AllowSSID: true}.RequestForegroundLocation(context.Background())
	require.NoError(t, err)
	require.Equal(t, model.PermissionGranted, status)

	status, err = StaticPermissions{}.RequestForegroundLocation(context.Background())
	require.NoError(t, err)
	require.Equal(t, model.PermissionDenied, status)
}
