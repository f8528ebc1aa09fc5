// Package credential owns the rotating pool of upstream access tokens.
//
// This package contains:
//   - Pool: ordered credential set with quota enforcement and a shared rotation cursor
//   - rateWindow: sliding window of call timestamps used for throughput estimation
//   - PredictAction: heuristic early warning for imminent quota exhaustion
package credential

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/healer/internal/core/domain"
	"github.com/vietddude/healer/internal/metrics"
)

// ExhaustedCooldown is how long an exhausted credential waits before auto-reset.
const ExhaustedCooldown = time.Hour

// Pool owns the credential set, the rotation cursor, and per-credential rate
// windows. All exported methods are safe for concurrent use; lookups return
// snapshots so callers never touch pool-internal state outside the lock.
type Pool struct {
	mu     sync.Mutex
	byID   map[string]*domain.Credential
	byKey  map[string]string // api key -> credential id
	order  []string          // insertion-stable rotation order
	cursor int
	rates  map[string]*rateWindow

	now func() time.Time
	log *slog.Logger
}

// NewPool creates an empty credential pool.
func NewPool() *Pool {
	return &Pool{
		byID:  make(map[string]*domain.Credential),
		byKey: make(map[string]string),
		rates: make(map[string]*rateWindow),
		now:   time.Now,
		log:   slog.Default(),
	}
}

// ResetAll atomically replaces the pool contents and re-registers the given
// credentials in argument order. Used for bootstrap and test isolation.
func (p *Pool) ResetAll(creds []domain.Credential) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.byID = make(map[string]*domain.Credential, len(creds))
	p.byKey = make(map[string]string, len(creds))
	p.order = p.order[:0]
	p.rates = make(map[string]*rateWindow)
	p.cursor = 0

	for i := range creds {
		c := creds[i]
		if c.Status == "" {
			c.Status = domain.CredentialActive
		}
		p.byID[c.ID] = &c
		p.byKey[c.APIKey] = c.ID
		p.order = append(p.order, c.ID)
	}
}

// LookupByToken resolves a credential by its secret value, applying auto-reset
// before returning. Returns nil for unknown tokens.
func (p *Pool) LookupByToken(token string) *domain.Credential {
	p.mu.Lock()
	defer p.mu.Unlock()

	id, ok := p.byKey[token]
	if !ok {
		return nil
	}
	c := p.byID[id]
	p.normalize(c)
	return snapshot(c)
}

// Get returns a snapshot of the credential with the given id, or nil.
func (p *Pool) Get(id string) *domain.Credential {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.byID[id]
	if !ok {
		return nil
	}
	p.normalize(c)
	return snapshot(c)
}

// List returns snapshots of all credentials in rotation order.
func (p *Pool) List() []domain.Credential {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]domain.Credential, 0, len(p.order))
	for _, id := range p.order {
		c := p.byID[id]
		p.normalize(c)
		out = append(out, *snapshot(c))
	}
	return out
}

// MarkStatus force-sets a credential's status with an optional reason and
// cooldown. A cooldown schedules the auto-reset; setting a non-exhausted status
// without one clears any pending reset.
func (p *Pool) MarkStatus(id string, status domain.CredentialStatus, reason string, cooldown time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.byID[id]
	if !ok {
		return
	}
	c.Status = status
	if reason != "" {
		c.SetReason(reason)
	}
	if cooldown > 0 {
		t := p.now().Add(cooldown)
		c.ResetAt = &t
	} else if status != domain.CredentialExhausted {
		c.ResetAt = nil
	}
	p.log.Info("credential marked",
		"credential_id", c.ID, "status", status, "reason", reason, "cooldown", cooldown)
}

// MarkStatusByToken is MarkStatus keyed by the credential's secret value.
func (p *Pool) MarkStatusByToken(token string, status domain.CredentialStatus, reason string, cooldown time.Duration) {
	p.mu.Lock()
	id, ok := p.byKey[token]
	p.mu.Unlock()
	if ok {
		p.MarkStatus(id, status, reason, cooldown)
	}
}

// RecordUsage increments the windowed and lifetime usage counters. Crossing an
// effective limit transitions the credential to exhausted and schedules the
// auto-reset one hour out unless one is already pending. Returns a snapshot of
// the updated credential, or nil for unknown ids.
func (p *Pool) RecordUsage(id string, calls, tokens int) *domain.Credential {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.byID[id]
	if !ok {
		return nil
	}
	p.normalize(c)

	c.TotalCalls += calls
	c.TotalTokens += tokens
	c.UsedCalls += calls
	c.UsedTokens += tokens

	if c.OverLimit() {
		p.exhaust(c)
	}
	return snapshot(c)
}

// ObserveCall appends now to the credential's rate window and returns the
// resulting average calls per minute. Unknown ids observe nothing.
func (p *Pool) ObserveCall(id string) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.byID[id]; !ok {
		return 0
	}
	w, ok := p.rates[id]
	if !ok {
		w = newRateWindow(RateHorizon)
		p.rates[id] = w
	}
	return w.observe(p.now())
}

// SecondsUntilReset returns the seconds remaining before the credential's
// pending reset, or 0 when none is scheduled or it already elapsed.
func (p *Pool) SecondsUntilReset(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.byID[id]
	if !ok || c.ResetAt == nil {
		return 0
	}
	remaining := int(c.ResetAt.Sub(p.now()).Seconds())
	if remaining <= 0 {
		return 0
	}
	return remaining
}

// SelectNext scans the rotation order exactly once around from the shared
// cursor and returns the best eligible credential for the provider (and model,
// when given). Candidates that are not near-quota are preferred; ties are
// broken by tier priority, then by least-recently-rotated with never-rotated
// first. The cursor advances to the slot after the winner's original position.
// Returns nil when no credential is eligible.
func (p *Pool) SelectNext(provider, model string) *domain.Credential {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.order)
	if n == 0 {
		return nil
	}

	type entry struct {
		cred  *domain.Credential
		index int
	}
	var candidates []entry

	for offset := 0; offset < n; offset++ {
		idx := (p.cursor + offset) % n
		c := p.byID[p.order[idx]]
		p.normalize(c)

		if c.Provider != provider {
			continue
		}
		if model != "" && c.Model != model {
			continue
		}
		if c.Status != domain.CredentialActive {
			continue
		}
		if c.OverLimit() {
			p.exhaust(c)
			continue
		}
		candidates = append(candidates, entry{cred: c, index: idx})
	}

	if len(candidates) == 0 {
		return nil
	}

	// Prefer credentials with headroom; fall back to the full set so rotation
	// still makes progress when everything is near its limit.
	eligible := make([]entry, 0, len(candidates))
	for _, e := range candidates {
		if !e.cred.NearQuota() {
			eligible = append(eligible, e)
		}
	}
	if len(eligible) == 0 {
		eligible = candidates
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		ri, rj := eligible[i].cred.Tier.Rank(), eligible[j].cred.Tier.Rank()
		if ri != rj {
			return ri < rj
		}
		return rotatedBefore(eligible[i].cred.LastRotatedAt, eligible[j].cred.LastRotatedAt)
	})

	winner := eligible[0]
	now := p.now()
	winner.cred.LastRotatedAt = &now
	p.cursor = (winner.index + 1) % n

	metrics.CredentialsSelected.WithLabelValues(winner.cred.Provider, string(winner.cred.Tier)).Inc()
	return snapshot(winner.cred)
}

// normalize applies the lazy auto-reset rule. Callers must hold the lock.
func (p *Pool) normalize(c *domain.Credential) {
	if c.ResetAt == nil || p.now().Before(*c.ResetAt) {
		return
	}
	c.UsedCalls = 0
	if c.Status == domain.CredentialExhausted {
		c.Status = domain.CredentialActive
		c.UsedTokens = 0
	}
	c.ResetAt = nil
}

// exhaust transitions a credential over its limit. Callers must hold the lock.
func (p *Pool) exhaust(c *domain.Credential) {
	c.Status = domain.CredentialExhausted
	if c.ResetAt == nil {
		t := p.now().Add(ExhaustedCooldown)
		c.ResetAt = &t
	}
	metrics.CredentialsExhausted.WithLabelValues(c.Provider).Inc()
	p.log.Info("credential exhausted",
		"credential_id", c.ID, "used_calls", c.UsedCalls, "used_tokens", c.UsedTokens,
		"reset_at", c.ResetAt.Format(time.RFC3339))
}

// rotatedBefore orders rotation timestamps with never-rotated treated as earliest.
func rotatedBefore(a, b *time.Time) bool {
	switch {
	case a == nil && b == nil:
		return false
	case a == nil:
		return true
	case b == nil:
		return false
	default:
		return a.Before(*b)
	}
}

func snapshot(c *domain.Credential) *domain.Credential {
	out := *c
	if c.Metadata != nil {
		out.Metadata = make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	if c.ResetAt != nil {
		t := *c.ResetAt
		out.ResetAt = &t
	}
	if c.LastRotatedAt != nil {
		t := *c.LastRotatedAt
		out.LastRotatedAt = &t
	}
	return &out
}
