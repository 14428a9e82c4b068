package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// Result is a resolved device server advertisement.
type Result struct {
	InstanceName string
	Addresses    []net.IP
	Port         int
}

// Address returns the first resolved address formatted as "host:port",
// suitable for passing straight to net.Dial.
func (r Result) Address() string {
	if len(r.Addresses) == 0 {
		return ""
	}
	return net.JoinHostPort(r.Addresses[0].String(), strconv.Itoa(r.Port))
}

// BrowseOnce looks for a single ServiceType advertisement and returns as
// soon as one resolves, or when timeout elapses. Device clients run with
// -discover use this once at startup, and fall back to backoff-dialing
// their configured -server-addr, if any, on failure.
func BrowseOnce(ctx context.Context, timeout time.Duration) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func() {
		_ = zeroconf.Browse(ctx, ServiceType, Domain, entries, removed)
	}()

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return Result{}, fmt.Errorf("discovery: no %s service found", ServiceType)
			}
			if len(entry.AddrIPv4) == 0 && len(entry.AddrIPv6) == 0 {
				continue
			}
			addrs := make([]net.IP, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
			addrs = append(addrs, entry.AddrIPv4...)
			addrs = append(addrs, entry.AddrIPv6...)
			return Result{
				InstanceName: entry.Instance,
				Addresses:    addrs,
				Port:         entry.Port,
			}, nil
		case <-removed:
			// Not interesting for a single-shot lookup.
		case <-ctx.Done():
			return Result{}, fmt.Errorf("discovery: browse for %s: %w", ServiceType, ctx.Err())
		}
	}
}
