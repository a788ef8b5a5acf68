package reception

import "github.com/tradewire/synapse/internal/signal"

// ResponseClass is the filter decision for a (consumer, signal) pair.
type ResponseClass string

const (
	// ResponseAct means the consumer must react to the signal.
	ResponseAct ResponseClass = "ACT"
	// ResponseAdapt means the consumer should adjust behavior but need not
	// react directly. How ADAPT differs from ACT is a consumer-side choice.
	ResponseAdapt ResponseClass = "ADAPT"
	// ResponseAcknowledge means the consumer records receipt and moves on.
	ResponseAcknowledge ResponseClass = "ACKNOWLEDGE"
	// ResponseIgnore means the signal is not delivered to this consumer.
	ResponseIgnore ResponseClass = "IGNORE"
)

// Deliverable reports whether a classification results in delivery via fetch.
func (rc ResponseClass) Deliverable() bool {
	return rc != ResponseIgnore
}

// Wants classifies a signal for a consumer. Rules are evaluated in order and
// the first match wins:
//
//  1. CRITICAL severity → ACT. Pain overrides domain and scope entirely.
//  2. Directed at this consumer → ACT.
//  3. Restricted tier the consumer is not a member of → IGNORE.
//  4. Broadcast: primary domain → ACT; secondary domain → ACKNOWLEDGE when
//     severity is CRITICAL or WARNING, else IGNORE; otherwise IGNORE.
//  5. Directed at a different consumer → IGNORE.
func Wants(consumer ConsumerProfile, sig *signal.Signal) ResponseClass {
	if sig.Severity == signal.SeverityCritical {
		return ResponseAct
	}

	switch sig.Scope.Kind {
	case signal.ScopeDirected:
		if sig.Scope.Target == consumer.ConsumerID {
			return ResponseAct
		}
		return ResponseIgnore

	case signal.ScopeTier:
		if !consumer.MemberOfTier(sig.Scope.Target) {
			return ResponseIgnore
		}
		// Tier members treat restricted signals like primary-domain traffic.
		return ResponseAct

	case signal.ScopeBroadcast:
		if consumer.HasPrimary(sig.Domain) {
			return ResponseAct
		}
		if consumer.HasSecondary(sig.Domain) {
			if sig.Severity == signal.SeverityWarning {
				return ResponseAcknowledge
			}
			return ResponseIgnore
		}
		return ResponseIgnore
	}

	return ResponseIgnore
}
