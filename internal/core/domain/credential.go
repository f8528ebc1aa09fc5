package domain

import "time"

// CredentialStatus is the lifecycle state of a pooled credential.
type CredentialStatus string

const (
	CredentialActive    CredentialStatus = "active"
	CredentialExhausted CredentialStatus = "exhausted"
	CredentialDisabled  CredentialStatus = "disabled"
)

// Tier is the priority class used to rank otherwise-eligible credentials.
type Tier string

const (
	TierPrimary Tier = "primary"
	TierBackup  Tier = "backup"
	TierFree    Tier = "free-tier"
)

// Rank returns the sort priority of a tier. Lower wins; unclassified tiers sort last.
func (t Tier) Rank() int {
	switch t {
	case TierPrimary:
		return 0
	case TierBackup:
		return 1
	case TierFree:
		return 2
	default:
		return 3
	}
}

// MetaStatusReason is the metadata key holding a human-readable disablement reason.
const MetaStatusReason = "status_reason"

// Credential is one upstream access token with its quota and rotation state.
type Credential struct {
	ID       string           `json:"id"        yaml:"id"`
	Provider string           `json:"provider"  yaml:"provider"`
	Model    string           `json:"model"     yaml:"model"`
	APIKey   string           `json:"api_key"   yaml:"api_key"`
	Status   CredentialStatus `json:"status"    yaml:"status"`
	Tier     Tier             `json:"tier"      yaml:"tier"`

	// MaxCallsPerDay is the stricter override limit; DailyCallLimit is the
	// legacy general limit. Exhaustion checks use the first one that is set.
	MaxCallsPerDay  int `json:"max_calls_per_day,omitempty"  yaml:"max_calls_per_day"`
	DailyCallLimit  int `json:"daily_call_limit,omitempty"   yaml:"daily_call_limit"`
	MaxTokensPerDay int `json:"max_tokens_per_day,omitempty" yaml:"max_tokens_per_day"`

	UsedCalls   int `json:"used_calls"   yaml:"-"`
	UsedTokens  int `json:"used_tokens"  yaml:"-"`
	TotalCalls  int `json:"total_calls"  yaml:"-"`
	TotalTokens int `json:"total_tokens" yaml:"-"`

	ResetAt       *time.Time `json:"reset_at,omitempty"        yaml:"-"`
	LastRotatedAt *time.Time `json:"last_rotated_at,omitempty" yaml:"-"`

	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata"`
}

// CallLimit returns the effective per-window call limit (0 = unlimited).
func (c *Credential) CallLimit() int {
	if c.MaxCallsPerDay > 0 {
		return c.MaxCallsPerDay
	}
	return c.DailyCallLimit
}

// TokenLimit returns the per-window token limit (0 = unlimited).
func (c *Credential) TokenLimit() int {
	return c.MaxTokensPerDay
}

// NearQuota reports whether used calls or tokens reached 90% of a configured limit.
func (c *Credential) NearQuota() bool {
	if limit := c.CallLimit(); limit > 0 && float64(c.UsedCalls) >= 0.9*float64(limit) {
		return true
	}
	if limit := c.TokenLimit(); limit > 0 && float64(c.UsedTokens) >= 0.9*float64(limit) {
		return true
	}
	return false
}

// OverLimit reports whether either effective limit is met or exceeded.
func (c *Credential) OverLimit() bool {
	if limit := c.CallLimit(); limit > 0 && c.UsedCalls >= limit {
		return true
	}
	if limit := c.TokenLimit(); limit > 0 && c.UsedTokens >= limit {
		return true
	}
	return false
}

// SetReason stores a human-readable status reason in the credential metadata.
func (c *Credential) SetReason(reason string) {
	if c.Metadata == nil {
		c.Metadata = make(map[string]any)
	}
	c.Metadata[MetaStatusReason] = reason
}

// Reason returns the stored status reason, if any.
func (c *Credential) Reason() string {
	if c.Metadata == nil {
		return ""
	}
	reason, _ := c.Metadata[MetaStatusReason].(string)
	return reason
}
