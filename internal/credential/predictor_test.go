package credential

import (
	"testing"

	"github.com/vietddude/healer/internal/core/domain"
)

func TestPredictAction(t *testing.T) {
	tests := []struct {
		name           string
		callLimit      int
		usedCalls      int
		tokenLimit     int
		usedTokens     int
		avgCallsPerMin float64
		expected       Action
	}{
		{
			name:     "no limits configured",
			expected: ActionAllow,
		},
		{
			name:           "call budget spent",
			callLimit:      100,
			usedCalls:      100,
			avgCallsPerMin: 0.5,
			expected:       ActionSwitch,
		},
		{
			name:       "token budget spent",
			tokenLimit: 1000,
			usedTokens: 1000,
			expected:   ActionSwitch,
		},
		{
			name:           "exhaustion predicted under 5 minutes",
			callLimit:      100,
			usedCalls:      90,
			avgCallsPerMin: 3, // 10 remaining / 3 per min = 3.3 min
			expected:       ActionSwitch,
		},
		{
			name:           "exhaustion predicted under 15 minutes",
			callLimit:      100,
			usedCalls:      90,
			avgCallsPerMin: 1, // 10 min left
			expected:       ActionThrottle,
		},
		{
			name:           "plenty of runway",
			callLimit:      100,
			usedCalls:      10,
			avgCallsPerMin: 1, // 90 min left
			expected:       ActionAllow,
		},
		{
			name:       "token ratio critical",
			tokenLimit: 1000,
			usedTokens: 960, // 4% remaining
			expected:   ActionSwitch,
		},
		{
			name:       "token ratio low",
			tokenLimit: 1000,
			usedTokens: 900, // 10% remaining
			expected:   ActionThrottle,
		},
		{
			name:       "token ratio healthy",
			tokenLimit: 1000,
			usedTokens: 100,
			expected:   ActionAllow,
		},
		{
			name:      "call limit set but no observed rate",
			callLimit: 100,
			usedCalls: 50,
			expected:  ActionAllow,
		},
		{
			name:           "token ratio consulted when rate unavailable",
			callLimit:      100,
			usedCalls:      50,
			tokenLimit:     1000,
			usedTokens:     960,
			avgCallsPerMin: 0,
			expected:       ActionSwitch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &domain.Credential{
				DailyCallLimit:  tt.callLimit,
				MaxTokensPerDay: tt.tokenLimit,
				UsedCalls:       tt.usedCalls,
				UsedTokens:      tt.usedTokens,
			}
			if got := PredictAction(c, tt.avgCallsPerMin); got != tt.expected {
				t.Errorf("PredictAction() = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestPredictActionUsesOverrideLimit(t *testing.T) {
	c := &domain.Credential{
		MaxCallsPerDay: 10,
		DailyCallLimit: 1000,
		UsedCalls:      10,
	}
	if got := PredictAction(c, 1); got != ActionSwitch {
		t.Errorf("PredictAction with override limit spent = %s, want switch", got)
	}
}
