package policy

import (
	"strings"

	"mailgate/utils"
)

// OutboundPolicy decides who may receive mail. With both sets empty every
// recipient is allowed unless DenyWhenUnconfigured is set.
type OutboundPolicy struct {
	Addresses map[string]struct{}
	Domains   map[string]struct{}

	DenyWhenUnconfigured bool
}

// NewOutboundPolicy lower-cases and indexes the allowlists
func NewOutboundPolicy(addresses, domains []string) OutboundPolicy {
	return OutboundPolicy{
		Addresses: toSet(addresses),
		Domains:   toSet(domains),
	}
}

// ParseCSV splits a comma-separated setting, dropping blanks
func ParseCSV(value string) []string {
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

// Configured reports whether any allowlist entry exists
func (p OutboundPolicy) Configured() bool {
	return len(p.Addresses) > 0 || len(p.Domains) > 0
}

// Enforce fails on the first recipient that is neither an allowed address
// nor at an allowed domain. One bad recipient blocks the whole send.
func (p OutboundPolicy) Enforce(recipients RecipientSet) error {
	if !p.Configured() {
		if p.DenyWhenUnconfigured {
			return utils.PolicyError("no recipient allowlist configured")
		}
		return nil
	}

	for _, r := range recipients {
		addr := strings.ToLower(r)
		if _, ok := p.Addresses[addr]; ok {
			continue
		}
		_, domain, _ := strings.Cut(addr, "@")
		if _, ok := p.Domains[domain]; ok {
			continue
		}
		return utils.PolicyError("recipient not allowed by policy: " + r)
	}
	return nil
}
