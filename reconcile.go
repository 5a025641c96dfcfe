package azddns

import (
	"fmt"
	"net/netip"
)

// Source names one of the four independent observations of the record.
type Source int

const (
	PublicIP Source = iota
	LocalResolvedIP
	ProviderIP
	CachedLastIP
)

func (s Source) String() string {
	switch s {
	case PublicIP:
		return "public IP"
	case LocalResolvedIP:
		return "local resolver"
	case ProviderIP:
		return "Azure DNS"
	case CachedLastIP:
		return "last known IP"
	}
	return fmt.Sprintf("Source(%d)", int(s))
}

// Observations holds one address per Source.
// The zero netip.Addr means the lookup failed or returned nothing.
type Observations struct {
	Public   netip.Addr
	Resolved netip.Addr
	Provider netip.Addr
	Cached   netip.Addr
}

type Action int

const (
	NoOp Action = iota
	UpdateNeeded
)

func (a Action) String() string {
	if a == UpdateNeeded {
		return "update-needed"
	}
	return "no-op"
}

// Result is the outcome of Reconcile.
// Target is only valid when Action is UpdateNeeded, and then always equals the public IP.
type Result struct {
	Action    Action
	Target    netip.Addr
	Narrative []string
}

// Reconcile decides whether the provider record needs to be written.
//
// The public IP is the only source of the target value.
// The resolver and provider views can suppress a write when both agree with it;
// the cached last IP only changes the narrative.
func Reconcile(obs Observations, fqdn string) Result {
	var r Result
	say := func(format string, args ...any) {
		r.Narrative = append(r.Narrative, fmt.Sprintf(format, args...))
	}

	if !obs.Public.IsValid() {
		say("Could not retrieve public IP.")
		return r
	}

	if obs.Resolved.IsValid() {
		say("Current DNS for %s resolves to %s", fqdn, obs.Resolved)
	} else {
		say("Could not resolve DNS for %s", fqdn)
	}
	if obs.Provider.IsValid() {
		say("Azure DNS for %s is set to %s", fqdn, obs.Provider)
	} else {
		say("Azure DNS for %s is not set", fqdn)
	}

	if obs.Public == obs.Resolved && obs.Public == obs.Provider {
		say("Public IP, DNS record, and Azure DNS already in sync (%s). Nothing to do.", obs.Public)
		return r
	}

	r.Action = UpdateNeeded
	r.Target = obs.Public
	if obs.Public == obs.Cached && obs.Public == obs.Provider {
		say("IP %s unchanged since last run and matches Azure; local resolver view is stale; pushing update anyway.", obs.Public)
	} else {
		say("IP changed, DNS or Azure out of sync. Updating Azure DNS to %s.", obs.Public)
	}
	return r
}
