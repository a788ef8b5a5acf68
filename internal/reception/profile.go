package reception

import "github.com/tradewire/synapse/internal/signal"

// ConsumerProfile declares what a consumer process is tuned to. Registered
// once at consumer startup; re-registration overwrites.
type ConsumerProfile struct {
	ConsumerID       string          `json:"consumer_id" yaml:"consumer_id"`
	PrimaryDomains   []signal.Domain `json:"primary_domains" yaml:"primary_domains"`
	SecondaryDomains []signal.Domain `json:"secondary_domains" yaml:"secondary_domains"`
	Tiers            []string        `json:"tiers,omitempty" yaml:"tiers,omitempty"`
}

// HasPrimary reports whether d is one of the consumer's primary domains.
func (p ConsumerProfile) HasPrimary(d signal.Domain) bool {
	return containsDomain(p.PrimaryDomains, d)
}

// HasSecondary reports whether d is one of the consumer's secondary domains.
func (p ConsumerProfile) HasSecondary(d signal.Domain) bool {
	return containsDomain(p.SecondaryDomains, d)
}

// MemberOfTier reports whether the consumer belongs to the named tier.
func (p ConsumerProfile) MemberOfTier(name string) bool {
	for _, t := range p.Tiers {
		if t == name {
			return true
		}
	}
	return false
}

func containsDomain(domains []signal.Domain, d signal.Domain) bool {
	for _, candidate := range domains {
		if candidate == d {
			return true
		}
	}
	return false
}
