package azddns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/miekg/dns"
)

const fallbackNameserver = "1.1.1.1:53"

// DNSResolver constructs a resolver that looks up the A records of name the way an end client would,
// by asking a recursive nameserver.
// An empty server means the first nameserver listed in /etc/resolv.conf.
func DNSResolver(name, server string) Resolver {
	return &dnsResolver{
		name:   dns.Fqdn(name),
		server: server,
		client: &dns.Client{Timeout: 5 * time.Second},
	}
}

type dnsResolver struct {
	name   string
	server string
	client *dns.Client
}

func (r *dnsResolver) Resolve(ctx context.Context) ([]netip.Addr, error) {
	server := normalizeServer(r.server)

	m := new(dns.Msg)
	m.SetQuestion(r.name, dns.TypeA)
	m.RecursionDesired = true

	resp, _, err := r.client.ExchangeContext(ctx, m, server)
	if err != nil {
		return nil, fmt.Errorf("error querying %s for %s: %w", server, r.name, err)
	}
	if resp.Truncated {
		tcp := &dns.Client{Net: "tcp", Timeout: r.client.Timeout}
		if resp, _, err = tcp.ExchangeContext(ctx, m, server); err != nil {
			return nil, fmt.Errorf("error querying %s over tcp for %s: %w", server, r.name, err)
		}
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("%s answered %s for %s", server, dns.RcodeToString[resp.Rcode], r.name)
	}

	var addrs []netip.Addr
	for _, rr := range resp.Answer {
		a, ok := rr.(*dns.A)
		if !ok {
			continue
		}
		if ip, ok := netip.AddrFromSlice(a.A.To4()); ok {
			addrs = append(addrs, ip)
		}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no A records for %s", r.name)
	}
	return addrs, nil
}

// SystemNameserver returns host:port of the first nameserver in /etc/resolv.conf.
func SystemNameserver() (string, error) {
	conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil {
		return "", fmt.Errorf("error reading resolv.conf: %w", err)
	}
	if len(conf.Servers) == 0 {
		return "", errors.New("no nameservers in resolv.conf")
	}
	return net.JoinHostPort(conf.Servers[0], conf.Port), nil
}

func normalizeServer(server string) string {
	if server == "" {
		s, err := SystemNameserver()
		if err != nil {
			return fallbackNameserver
		}
		return s
	}
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}
	if ip, err := netip.ParseAddr(server); err == nil {
		return netip.AddrPortFrom(ip, 53).String()
	}
	return net.JoinHostPort(server, "53")
}
