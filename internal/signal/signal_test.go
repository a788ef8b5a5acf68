package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignal_Validate(t *testing.T) {
	now := time.Now()
	expires := now.Add(time.Hour)

	tests := []struct {
		name    string
		sig     Signal
		wantErr bool
	}{
		{
			name: "valid_warning",
			sig: Signal{
				ID:        "s1",
				Severity:  SeverityWarning,
				Domain:    DomainHealth,
				Scope:     Broadcast(),
				Content:   "api degraded",
				CreatedAt: now,
				ExpiresAt: &expires,
			},
		},
		{
			name: "empty_content",
			sig: Signal{
				ID:       "s2",
				Severity: SeverityInfo,
				Domain:   DomainTrading,
				Scope:    Broadcast(),
				Content:  "   ",
			},
			wantErr: true,
		},
		{
			name: "critical_with_expiry",
			sig: Signal{
				ID:        "s3",
				Severity:  SeverityCritical,
				Domain:    DomainHealth,
				Scope:     Broadcast(),
				Content:   "organ failure",
				ExpiresAt: &expires,
			},
			wantErr: true,
		},
		{
			name: "critical_without_expiry",
			sig: Signal{
				ID:       "s4",
				Severity: SeverityCritical,
				Domain:   DomainHealth,
				Scope:    Broadcast(),
				Content:  "organ failure",
			},
		},
		{
			name: "unknown_severity",
			sig: Signal{
				ID:       "s5",
				Severity: Severity("PANIC"),
				Domain:   DomainRisk,
				Scope:    Broadcast(),
				Content:  "x",
			},
			wantErr: true,
		},
		{
			name: "unknown_domain",
			sig: Signal{
				ID:       "s6",
				Severity: SeverityInfo,
				Domain:   Domain("WEATHER"),
				Scope:    Broadcast(),
				Content:  "x",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sig.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidSignal)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestScope_RoundTrip(t *testing.T) {
	scopes := []Scope{
		Broadcast(),
		Directed("trade-executor"),
		RestrictedTier("consciousness"),
	}

	for _, scope := range scopes {
		t.Run(scope.String(), func(t *testing.T) {
			parsed, err := ParseScope(scope.String())
			require.NoError(t, err)
			assert.Equal(t, scope, parsed)
		})
	}
}

func TestParseScope_Malformed(t *testing.T) {
	for _, raw := range []string{"", "DIRECTED:", "DIRECTED", "TIER:", "WHISPER:x"} {
		if _, err := ParseScope(raw); err == nil {
			t.Errorf("ParseScope(%q) expected error, got nil", raw)
		}
	}
}

func TestSeverity_Rank(t *testing.T) {
	if SeverityCritical.Rank() >= SeverityWarning.Rank() {
		t.Error("CRITICAL must rank before WARNING")
	}
	if SeverityWarning.Rank() >= SeverityInfo.Rank() {
		t.Error("WARNING must rank before INFO")
	}
	if SeverityInfo.Rank() >= SeverityObserve.Rank() {
		t.Error("INFO must rank before OBSERVE")
	}
}

func TestSignal_Live(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name string
		sig  Signal
		want bool
	}{
		{"no_expiry", Signal{}, true},
		{"future_expiry", Signal{ExpiresAt: &future}, true},
		{"past_expiry", Signal{ExpiresAt: &past}, false},
		{"expiry_exactly_now", Signal{ExpiresAt: &now}, false},
		{"resolved", Signal{Resolved: true}, false},
		{"resolved_with_future_expiry", Signal{Resolved: true, ExpiresAt: &future}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sig.Live(now))
		})
	}
}

func TestSignal_AcknowledgedByConsumer(t *testing.T) {
	sig := Signal{AcknowledgedBy: []string{"scanner", "executor"}}

	assert.True(t, sig.AcknowledgedByConsumer("scanner"))
	assert.True(t, sig.AcknowledgedByConsumer("executor"))
	assert.False(t, sig.AcknowledgedByConsumer("learner"))
}
