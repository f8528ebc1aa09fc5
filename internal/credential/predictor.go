package credential

import (
	"github.com/vietddude/healer/internal/core/domain"
	"github.com/vietddude/healer/internal/metrics"
)

// Action is the predictive quota decision for a credential.
type Action string

const (
	ActionAllow    Action = "allow"
	ActionThrottle Action = "throttle"
	ActionSwitch   Action = "switch"
)

// PredictAction decides whether traffic on a credential should continue, slow
// down, or move elsewhere, given its observed average calls per minute. This is
// an early-warning heuristic; authoritative exhaustion is enforced by
// RecordUsage and SelectNext.
func PredictAction(c *domain.Credential, avgCallsPerMin float64) Action {
	callLimit := c.CallLimit()
	tokenLimit := c.TokenLimit()

	remainingCalls := callLimit - c.UsedCalls
	remainingTokens := tokenLimit - c.UsedTokens

	if (callLimit > 0 && remainingCalls <= 0) || (tokenLimit > 0 && remainingTokens <= 0) {
		return signal(ActionSwitch)
	}

	if callLimit > 0 && avgCallsPerMin > 0 {
		minutesLeft := float64(remainingCalls) / avgCallsPerMin
		if minutesLeft < 5 {
			return signal(ActionSwitch)
		}
		if minutesLeft < 15 {
			return signal(ActionThrottle)
		}
	} else if tokenLimit > 0 {
		ratio := float64(remainingTokens) / float64(tokenLimit)
		if ratio <= 0.05 {
			return signal(ActionSwitch)
		}
		if ratio <= 0.15 {
			return signal(ActionThrottle)
		}
	}

	return ActionAllow
}

func signal(a Action) Action {
	metrics.QuotaSignals.WithLabelValues(string(a)).Inc()
	return a
}
