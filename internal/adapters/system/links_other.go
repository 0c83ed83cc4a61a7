//go:build !linux

package system

import (
	"fmt"
	"log/slog"
	"net"
	"time"
)

// Without netlink there is no route table access; selectUplink falls back to
// the first addressed interface.
func platformListLinks() ([]linkInfo, map[int]bool, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, nil, fmt.Errorf("list interfaces: %w", err)
	}
	items := make([]linkInfo, 0, len(ifaces))
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		items = append(items, linkInfo{
			Index:    iface.Index,
			Name:     iface.Name,
			Up:       iface.Flags&net.FlagUp != 0,
			Loopback: iface.Flags&net.FlagLoopback != 0,
			HasAddr:  err == nil && hasGlobalAddr(addrs),
		})
	}
	return items, map[int]bool{}, nil
}

func hasGlobalAddr(addrs []net.Addr) bool {
	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok && ipNet.IP.IsGlobalUnicast() {
			return true
		}
	}
	return false
}

// platformWatch polls on interval; the source drops unchanged snapshots.
func platformWatch(stop <-chan struct{}, interval time.Duration, _ *slog.Logger) (<-chan struct{}, error) {
	events := make(chan struct{}, 1)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				wake(events)
			}
		}
	}()
	return events, nil
}
