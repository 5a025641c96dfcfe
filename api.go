package azddns

import (
	"context"
	"errors"
	"net/netip"
)

// Resolver returns the addresses some source believes are correct.
type Resolver interface {
	Resolve(context.Context) ([]netip.Addr, error)
}

// ResolverFunc adapts an ordinary function to the Resolver interface.
type ResolverFunc func(context.Context) ([]netip.Addr, error)

func (f ResolverFunc) Resolve(ctx context.Context) ([]netip.Addr, error) {
	return f(ctx)
}

// Provider reads and writes the single managed A record.
//
// GetRecord returns ErrRecordNotFound when the record set does not exist yet.
// PutRecord is a create-or-update of the whole record set.
type Provider interface {
	GetRecord(ctx context.Context) (*Record, error)
	PutRecord(ctx context.Context, rec *Record) error
}

// Notifier delivers a change notification.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// Record is the provider-side view of the A record set.
type Record struct {
	Addrs    []netip.Addr
	TTL      int64
	Metadata map[string]string
}

// First returns the first IPv4 address of the record, or the zero Addr.
func (r *Record) First() netip.Addr {
	if r == nil {
		return netip.Addr{}
	}
	for _, a := range r.Addrs {
		if a.Is4() {
			return a
		}
	}
	return netip.Addr{}
}

var ErrRecordNotFound = errors.New("record set not found")
