package domain

import "testing"

func TestCallLimitOverride(t *testing.T) {
	c := &Credential{DailyCallLimit: 1000}
	if got := c.CallLimit(); got != 1000 {
		t.Errorf("CallLimit = %d, want legacy 1000", got)
	}

	c.MaxCallsPerDay = 50
	if got := c.CallLimit(); got != 50 {
		t.Errorf("CallLimit = %d, want override 50", got)
	}
}

func TestNearQuotaBoundary(t *testing.T) {
	tests := []struct {
		name     string
		cred     Credential
		expected bool
	}{
		{"no limits", Credential{UsedCalls: 9999}, false},
		{"just under 90%", Credential{DailyCallLimit: 100, UsedCalls: 89}, false},
		{"exactly 90%", Credential{DailyCallLimit: 100, UsedCalls: 90}, true},
		{"token limit near", Credential{MaxTokensPerDay: 1000, UsedTokens: 900}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cred.NearQuota(); got != tt.expected {
				t.Errorf("NearQuota() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestOverLimit(t *testing.T) {
	c := Credential{DailyCallLimit: 10, UsedCalls: 9}
	if c.OverLimit() {
		t.Error("OverLimit below the limit = true")
	}
	c.UsedCalls = 10
	if !c.OverLimit() {
		t.Error("OverLimit at the limit = false")
	}
}

func TestTierRank(t *testing.T) {
	if TierPrimary.Rank() >= TierBackup.Rank() || TierBackup.Rank() >= TierFree.Rank() {
		t.Error("tier ranks out of order")
	}
	if Tier("enterprise").Rank() <= TierFree.Rank() {
		t.Error("unclassified tier should rank last")
	}
}

func TestReplayStatusTerminal(t *testing.T) {
	for status, want := range map[ReplayStatus]bool{
		ReplayQueued:    false,
		ReplayRunning:   false,
		ReplayCompleted: true,
		ReplayDead:      true,
	} {
		if got := status.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", status, got, want)
		}
	}
}
