package system

import (
	"context"
	"net"
	"strings"
	"time"
)

const (
	defaultProbeTarget  = "1.1.1.1"
	defaultProbeTimeout = 4 * time.Second
)

// Prober checks internet reachability with a TCP dial to a DNS endpoint.
type Prober struct {
	address string
	timeout time.Duration
}

// NewProber returns nil when target is "off", which reports reachability as unknown.
func NewProber(target string, timeout time.Duration) *Prober {
	target = strings.TrimSpace(target)
	if strings.EqualFold(target, "off") {
		return nil
	}
	if target == "" {
		target = defaultProbeTarget
	}
	address := target
	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(address, "53")
	}
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return &Prober{address: address, timeout: timeout}
}

// Reachable dials the probe address. A nil prober yields nil (unknown).
func (p *Prober) Reachable(ctx context.Context) *bool {
	if p == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", p.address)
	ok := err == nil
	if ok {
		_ = conn.Close()
	}
	return &ok
}
