package reception

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tradewire/synapse/internal/signal"
)

func scannerProfile() ConsumerProfile {
	return ConsumerProfile{
		ConsumerID:       "market-scanner",
		PrimaryDomains:   []signal.Domain{signal.DomainTrading, signal.DomainDirection},
		SecondaryDomains: []signal.Domain{signal.DomainHealth},
	}
}

func broadcast(severity signal.Severity, domain signal.Domain) *signal.Signal {
	return &signal.Signal{
		ID:       "test",
		Severity: severity,
		Domain:   domain,
		Scope:    signal.Broadcast(),
		Content:  "test",
	}
}

func TestWants_CriticalOverridesEverything(t *testing.T) {
	// Pain signals reach every consumer regardless of domain, scope or profile.
	profiles := []ConsumerProfile{
		scannerProfile(),
		{ConsumerID: "empty-profile"},
		{ConsumerID: "learner", PrimaryDomains: []signal.Domain{signal.DomainLearning}},
	}
	scopes := []signal.Scope{
		signal.Broadcast(),
		signal.Directed("someone-else"),
		signal.RestrictedTier("consciousness"),
	}

	for _, profile := range profiles {
		for _, scope := range scopes {
			sig := &signal.Signal{
				Severity: signal.SeverityCritical,
				Domain:   signal.DomainLifecycle,
				Scope:    scope,
				Content:  "pain",
			}
			assert.Equal(t, ResponseAct, Wants(profile, sig),
				"consumer %s scope %s", profile.ConsumerID, scope)
		}
	}
}

func TestWants_DirectedAtConsumer(t *testing.T) {
	profile := scannerProfile()
	sig := &signal.Signal{
		Severity: signal.SeverityInfo,
		Domain:   signal.DomainLearning, // not in any of the scanner's domains
		Scope:    signal.Directed("market-scanner"),
		Content:  "do this",
	}

	assert.Equal(t, ResponseAct, Wants(profile, sig))
}

func TestWants_DirectedAtOtherConsumer(t *testing.T) {
	profile := scannerProfile()
	sig := &signal.Signal{
		Severity: signal.SeverityWarning,
		Domain:   signal.DomainTrading, // primary domain, but not addressed to us
		Scope:    signal.Directed("trade-executor"),
		Content:  "do this",
	}

	assert.Equal(t, ResponseIgnore, Wants(profile, sig))
}

func TestWants_RestrictedTier(t *testing.T) {
	member := ConsumerProfile{ConsumerID: "brain", Tiers: []string{"consciousness"}}
	outsider := scannerProfile()

	sig := &signal.Signal{
		Severity: signal.SeverityWarning,
		Domain:   signal.DomainTrading,
		Scope:    signal.RestrictedTier("consciousness"),
		Content:  "tier only",
	}

	assert.Equal(t, ResponseAct, Wants(member, sig))
	// Non-members hard stop regardless of matching domains.
	assert.Equal(t, ResponseIgnore, Wants(outsider, sig))
}

func TestWants_Broadcast(t *testing.T) {
	profile := scannerProfile()

	tests := []struct {
		name     string
		severity signal.Severity
		domain   signal.Domain
		want     ResponseClass
	}{
		{"primary_domain_acts", signal.SeverityObserve, signal.DomainTrading, ResponseAct},
		{"primary_domain_acts_on_warning", signal.SeverityWarning, signal.DomainDirection, ResponseAct},
		{"secondary_domain_warning_acknowledges", signal.SeverityWarning, signal.DomainHealth, ResponseAcknowledge},
		{"secondary_domain_info_ignored", signal.SeverityInfo, signal.DomainHealth, ResponseIgnore},
		{"secondary_domain_observe_ignored", signal.SeverityObserve, signal.DomainHealth, ResponseIgnore},
		{"unrelated_domain_ignored", signal.SeverityWarning, signal.DomainLearning, ResponseIgnore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Wants(profile, broadcast(tt.severity, tt.domain)))
		})
	}
}

func TestWants_PrimaryBroadcastAlwaysActs(t *testing.T) {
	// Property: for every severity, a broadcast in a primary domain is ACT.
	profile := scannerProfile()
	for _, severity := range []signal.Severity{
		signal.SeverityCritical, signal.SeverityWarning, signal.SeverityInfo, signal.SeverityObserve,
	} {
		assert.Equal(t, ResponseAct, Wants(profile, broadcast(severity, signal.DomainTrading)),
			"severity %s", severity)
	}
}

func TestResponseClass_Deliverable(t *testing.T) {
	assert.True(t, ResponseAct.Deliverable())
	assert.True(t, ResponseAdapt.Deliverable())
	assert.True(t, ResponseAcknowledge.Deliverable())
	assert.False(t, ResponseIgnore.Deliverable())
}
