package azddns

import (
	"context"
	"errors"
	"fmt"
	"net/netip"

	"go.uber.org/zap"
)

// Apply writes res.Target to the provider when res asks for an update.
//
// On success the target becomes the last known IP, the change is logged and
// the notifier is told; a notification failure is logged and otherwise ignored.
// On failure nothing local changes and a *ProviderWriteError is returned.
func (c *Client) Apply(ctx context.Context, res Result) error {
	if res.Action != UpdateNeeded {
		return nil
	}
	if !res.Target.Is4() {
		return &ProviderWriteError{Err: fmt.Errorf("invalid target address %q", res.Target)}
	}

	rec, err := c.currentRecord(ctx)
	if err != nil {
		// the write below is authoritative; an unreadable record is provisioned from scratch
		c.logger.Warn("error reading record set before update", zap.Error(err))
		c.record(fmt.Sprintf("Could not read current record set for %s, creating a new one: %s", c.fqdn, err))
		rec = &Record{}
	}
	old := rec.First()

	rec.Addrs = []netip.Addr{res.Target}
	rec.TTL = c.ttl

	wctx, cancel := context.WithTimeout(ctx, c.timeout)
	err = c.provider.PutRecord(wctx, rec)
	cancel()
	if err != nil {
		werr := &ProviderWriteError{Err: err}
		c.logger.Error("update failed", zap.Stringer("target", res.Target), zap.Error(err))
		c.record(fmt.Sprintf("Failed to update %s to %s: %s", c.fqdn, res.Target, err))
		return werr
	}

	if err := c.store.SetLastIP(res.Target); err != nil {
		c.logger.Error("error saving last IP", zap.Error(err))
		c.record(fmt.Sprintf("Could not save last IP %s: %s", res.Target, err))
	}
	msg := fmt.Sprintf("%s updated in Azure from %s to %s", c.fqdn, addrOrNone(old), res.Target)
	c.record(msg)

	c.notify(ctx, "Azure DNS Updated: "+c.fqdn, msg)
	return nil
}

// currentRecord returns the provider's record set, or an empty one when it does not exist yet.
func (c *Client) currentRecord(ctx context.Context) (*Record, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rec, err := c.provider.GetRecord(ctx)
	if errors.Is(err, ErrRecordNotFound) {
		c.record(fmt.Sprintf("Creating new DNS record set for %s", c.fqdn))
		return &Record{}, nil
	}
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = &Record{}
	}
	return rec, nil
}

func (c *Client) notify(ctx context.Context, subject, body string) {
	if c.notifier == nil {
		c.logger.Debug("no notifier registered")
		return
	}
	if err := c.notifier.Notify(ctx, subject, body); err != nil {
		nerr := &NotificationError{Err: err}
		c.logger.Warn("notification failed", zap.Error(err))
		c.record(nerr.Error())
		return
	}
	c.record(fmt.Sprintf("Notification sent: %s", subject))
}

func addrOrNone(a netip.Addr) string {
	if !a.IsValid() {
		return "(none)"
	}
	return a.String()
}
