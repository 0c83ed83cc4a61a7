//go:build linux

package system

import (
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/vishvananda/netlink"
)

func platformListLinks() ([]linkInfo, map[int]bool, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return nil, nil, fmt.Errorf("netlink link list: %w", err)
	}
	routes, err := netlink.RouteList(nil, netlink.FAMILY_ALL)
	if err != nil {
		return nil, nil, fmt.Errorf("netlink route list: %w", err)
	}

	defaults := map[int]bool{}
	for _, route := range routes {
		if route.LinkIndex > 0 && isDefaultRoute(route) {
			defaults[route.LinkIndex] = true
		}
	}

	items := make([]linkInfo, 0, len(links))
	for _, link := range links {
		attrs := link.Attrs()
		if attrs == nil {
			continue
		}
		addrs, err := netlink.AddrList(link, netlink.FAMILY_ALL)
		items = append(items, linkInfo{
			Index:    attrs.Index,
			Name:     attrs.Name,
			Up:       attrs.Flags&net.FlagUp != 0 && attrs.OperState != netlink.OperDown,
			Loopback: attrs.Flags&net.FlagLoopback != 0,
			Wireless: isWireless(attrs.Name),
			HasAddr:  err == nil && hasGlobalAddr(addrs),
		})
	}
	return items, defaults, nil
}

func isDefaultRoute(route netlink.Route) bool {
	if route.Dst == nil {
		return true
	}
	ones, _ := route.Dst.Mask.Size()
	return ones == 0 && route.Dst.IP.IsUnspecified()
}

func hasGlobalAddr(addrs []netlink.Addr) bool {
	for _, addr := range addrs {
		if addr.IP != nil && addr.IP.IsGlobalUnicast() {
			return true
		}
	}
	return false
}

// platformWatch turns netlink link, address and route notifications into a
// coalesced change signal.
func platformWatch(stop <-chan struct{}, _ time.Duration, logger *slog.Logger) (<-chan struct{}, error) {
	done := make(chan struct{})
	linkUpdates := make(chan netlink.LinkUpdate)
	addrUpdates := make(chan netlink.AddrUpdate)
	routeUpdates := make(chan netlink.RouteUpdate)

	if err := netlink.LinkSubscribe(linkUpdates, done); err != nil {
		close(done)
		return nil, fmt.Errorf("subscribe link updates: %w", err)
	}
	if err := netlink.AddrSubscribe(addrUpdates, done); err != nil {
		close(done)
		go drain(linkUpdates)
		return nil, fmt.Errorf("subscribe address updates: %w", err)
	}
	if err := netlink.RouteSubscribe(routeUpdates, done); err != nil {
		close(done)
		go drain(linkUpdates)
		go drain(addrUpdates)
		return nil, fmt.Errorf("subscribe route updates: %w", err)
	}

	events := make(chan struct{}, 1)
	go func() {
		defer func() {
			close(done)
			go drain(linkUpdates)
			go drain(addrUpdates)
			go drain(routeUpdates)
			close(events)
		}()
		for {
			select {
			case <-stop:
				return
			case _, ok := <-linkUpdates:
				if !ok {
					logger.Warn("netlink link subscription closed")
					return
				}
			case _, ok := <-addrUpdates:
				if !ok {
					logger.Warn("netlink address subscription closed")
					return
				}
			case _, ok := <-routeUpdates:
				if !ok {
					logger.Warn("netlink route subscription closed")
					return
				}
			}
			wake(events)
		}
	}()
	return events, nil
}

// drain consumes updates until netlink closes the channel after done.
func drain[T any](ch chan T) {
	for range ch {
	}
}
