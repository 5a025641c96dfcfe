package azddns

import (
	"context"
	"errors"
	"net/netip"

	"go.uber.org/zap"
)

// Observe collects the four observations, one attempt each.
// A failing source is logged and left absent; it never stops the others,
// except the public IP: without it nothing else is looked up.
func (c *Client) Observe(ctx context.Context) Observations {
	obs := Observations{Public: c.observe(ctx, PublicIP, c.public.Resolve)}
	if !obs.Public.IsValid() {
		return obs
	}
	obs.Resolved = c.observe(ctx, LocalResolvedIP, c.resolver.Resolve)
	obs.Provider = c.observe(ctx, ProviderIP, c.providerAddrs)
	obs.Cached = c.observe(ctx, CachedLastIP, c.cachedAddrs)
	return obs
}

func (c *Client) observe(ctx context.Context, src Source, lookup func(context.Context) ([]netip.Addr, error)) netip.Addr {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	addrs, err := onlyIPv4(lookup(ctx))
	if err != nil {
		lerr := &LookupError{Source: src, Err: err}
		c.logger.Warn("observation unavailable", zap.Stringer("source", src), zap.Error(err))
		c.record(lerr.Error())
		return netip.Addr{}
	}
	if len(addrs) == 0 {
		c.logger.Debug("observation empty", zap.Stringer("source", src))
		return netip.Addr{}
	}
	c.logger.Debug("observed", zap.Stringer("source", src), zap.Stringer("addr", addrs[0]))
	return addrs[0]
}

// providerAddrs treats a missing record set as "not set" rather than as a failure.
func (c *Client) providerAddrs(ctx context.Context) ([]netip.Addr, error) {
	rec, err := c.provider.GetRecord(ctx)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil || rec == nil {
		return nil, err
	}
	return rec.Addrs, nil
}

func (c *Client) cachedAddrs(context.Context) ([]netip.Addr, error) {
	ip, err := c.store.LastIP()
	if err != nil || !ip.IsValid() {
		return nil, err
	}
	return []netip.Addr{ip}, nil
}

func onlyIPv4(addrs []netip.Addr, e error) (filtered []netip.Addr, err error) {
	if e != nil {
		return nil, e
	}

	for _, a := range addrs {
		if a.Is4() {
			filtered = append(filtered, a)
		}
	}
	return filtered, nil
}
