package azddns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
)

// InterfaceResolver constructs a resolver that reads the public IPv4 address straight off network interfaces,
// for hosts (routers, VPS) whose WAN interface holds the public address.
// If no interfaces are provided then all interfaces will be used.
// Loopback, link-local and private addresses are always skipped.
func InterfaceResolver(iface ...string) Resolver {
	return interfaceResolver{ifaces: iface, addrs: interfaceAddrs}
}

type interfaceResolver struct {
	ifaces []string
	addrs  func(name string) ([]net.Addr, error)
}

// interfaceAddrs returns the addresses of the named interface, or of every interface when name is empty.
func interfaceAddrs(name string) ([]net.Addr, error) {
	if name == "" {
		return net.InterfaceAddrs()
	}
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, err
	}
	return iface.Addrs()
}

func (r interfaceResolver) Resolve(ctx context.Context) (addrs []netip.Addr, err error) {
	names := r.ifaces
	if len(names) == 0 {
		names = []string{""}
	}
	var errs []error
	for _, name := range names {
		a, err := r.addrs(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("error looking up addresses for interface %q: %w", name, err))
			continue
		}
		// addr: ip+net:192.168.86.253/24
		// addr: ip+net:fe80::2cc9:801b:3551:9a43/64
		for _, addr := range a {
			prefix, err := netip.ParsePrefix(addr.String())
			if err != nil {
				errs = append(errs, fmt.Errorf("error parsing local ip %s for interface %q: %s", addr.String(), name, err))
				continue
			}
			ip := prefix.Addr()
			if !ip.Is4() || !ip.IsGlobalUnicast() || ip.IsPrivate() {
				continue
			}
			addrs = append(addrs, ip)
		}
	}
	if len(addrs) == 0 {
		errs = append(errs, errors.New("no public IPv4 address found on the local interfaces"))
		return nil, errors.Join(errs...)
	}
	return addrs, nil
}
