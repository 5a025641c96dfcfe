package azddns_test

import (
	"context"
	"net/netip"
	"sync"

	"github.com/Travis-Britz/azddns"
)

// fakeProvider is an in-memory Provider that records every write.
type fakeProvider struct {
	mu      sync.Mutex
	rec     *azddns.Record
	getErr  error
	putErr  error
	nilRec  bool // GetRecord answers (nil, nil)
	hang    bool // GetRecord blocks until its context is done
	gets    int
	history []azddns.Record
}

func newFakeProvider(addr string, ttl int64) *fakeProvider {
	p := &fakeProvider{}
	if addr != "" {
		p.rec = &azddns.Record{Addrs: []netip.Addr{netip.MustParseAddr(addr)}, TTL: ttl}
	}
	return p
}

func (p *fakeProvider) GetRecord(ctx context.Context) (*azddns.Record, error) {
	p.mu.Lock()
	p.gets++
	hang := p.hang
	p.mu.Unlock()
	if hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.nilRec {
		return nil, nil
	}
	if p.getErr != nil {
		return nil, p.getErr
	}
	if p.rec == nil {
		return nil, azddns.ErrRecordNotFound
	}
	cp := *p.rec
	cp.Addrs = append([]netip.Addr(nil), p.rec.Addrs...)
	return &cp, nil
}

func (p *fakeProvider) PutRecord(_ context.Context, rec *azddns.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.putErr != nil {
		return p.putErr
	}
	cp := *rec
	p.rec = &cp
	p.history = append(p.history, cp)
	return nil
}

func (p *fakeProvider) current() netip.Addr {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rec.First()
}

func (p *fakeProvider) reads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gets
}

func (p *fakeProvider) puts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.history)
}

type message struct {
	subject, body string
}

type fakeNotifier struct {
	mu   sync.Mutex
	err  error
	sent []message
}

func (n *fakeNotifier) Notify(_ context.Context, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, message{subject, body})
	return nil
}

func fixed(addr string) azddns.Resolver {
	return azddns.ResolverFunc(func(context.Context) ([]netip.Addr, error) {
		return []netip.Addr{netip.MustParseAddr(addr)}, nil
	})
}

func failing(err error) azddns.Resolver {
	return azddns.ResolverFunc(func(context.Context) ([]netip.Addr, error) {
		return nil, err
	})
}
