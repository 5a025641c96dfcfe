package azddns

import (
	"context"
	"net"
	"net/netip"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startDNSServer(t *testing.T) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	handler := dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		switch r.Question[0].Name {
		case "home.example.com.":
			a, _ := dns.NewRR("home.example.com. 60 IN A 198.51.100.7")
			m.Answer = append(m.Answer, a)
		case "alias.example.com.":
			cname, _ := dns.NewRR("alias.example.com. 60 IN CNAME home.example.com.")
			a, _ := dns.NewRR("home.example.com. 60 IN A 198.51.100.7")
			m.Answer = append(m.Answer, cname, a)
		case "empty.example.com.":
		default:
			m.SetRcode(r, dns.RcodeNameError)
		}
		w.WriteMsg(m)
	})

	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: handler, NotifyStartedFunc: func() { close(started) }}
	go srv.ActivateAndServe()
	<-started
	t.Cleanup(func() { srv.Shutdown() })
	return pc.LocalAddr().String()
}

func TestDNSResolver(t *testing.T) {
	server := startDNSServer(t)
	want := []netip.Addr{netip.MustParseAddr("198.51.100.7")}

	addrs, err := DNSResolver("home.example.com", server).Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, addrs)

	addrs, err = DNSResolver("alias.example.com.", server).Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, addrs)

	_, err = DNSResolver("missing.example.com", server).Resolve(context.Background())
	assert.ErrorContains(t, err, "NXDOMAIN")

	_, err = DNSResolver("empty.example.com", server).Resolve(context.Background())
	assert.ErrorContains(t, err, "no A records")
}

func TestNormalizeServer(t *testing.T) {
	assert.Equal(t, "192.0.2.53:53", normalizeServer("192.0.2.53"))
	assert.Equal(t, "192.0.2.53:5353", normalizeServer("192.0.2.53:5353"))
	assert.Equal(t, "[2001:db8::53]:53", normalizeServer("2001:db8::53"))
	assert.Equal(t, "ns.example.net:53", normalizeServer("ns.example.net"))
	assert.NotEmpty(t, normalizeServer(""))
}
