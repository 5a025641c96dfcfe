package azddns

import (
	"context"
	"fmt"
	"net/netip"
)

// FromString constructs a resolver that always returns the IPv4 address addr.
// It is used to pin the public IP instead of asking a web service.
func FromString(addr string) (Resolver, error) {
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse IP: %w", err)
	}
	if !ip.Is4() {
		return nil, fmt.Errorf("%s is not an IPv4 address", ip)
	}
	return staticResolver{ip}, nil
}

type staticResolver struct {
	addr netip.Addr
}

func (s staticResolver) Resolve(context.Context) ([]netip.Addr, error) {
	return []netip.Addr{s.addr}, nil
}
