package discovery

import (
	"fmt"
	"net"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

// Advertiser publishes the device server's TCP port as an mDNS service so
// device clients on the LAN can resolve it without a hardcoded address.
type Advertiser struct {
	mu     sync.Mutex
	server *zeroconf.Server
}

// Advertise registers instanceName under ServiceType on port and starts
// responding to mDNS queries. iface restricts advertisement to a single
// network interface; an empty string advertises on all of them. The
// returned Advertiser must be shut down with Shutdown when the device
// server stops listening.
func Advertise(instanceName string, port int, txt []string, iface string) (*Advertiser, error) {
	server, err := zeroconf.Register(instanceName, ServiceType, Domain, port, txt, getInterfaces(iface))
	if err != nil {
		return nil, fmt.Errorf("discovery: register %q: %w", instanceName, err)
	}
	return &Advertiser{server: server}, nil
}

// Shutdown stops responding to mDNS queries and withdraws the service
// record. It is safe to call more than once.
func (a *Advertiser) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return
	}
	a.server.Shutdown()
	a.server = nil
}

// getInterfaces is kept as a seam for tests that need to pin advertisement
// to a single interface; nil (all interfaces) is the production default.
func getInterfaces(name string) []net.Interface {
	if name == "" {
		return nil
	}
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}
