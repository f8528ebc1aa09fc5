// Package queue implements the durable retry / dead-letter queue.
//
// This package contains:
//   - Queue: active replay records with enqueue, poll-driven replay, and snapshots
//   - Worker: the single background loop that drives Tick on a fixed interval
//
// Records move queued -> running -> {completed | queued (retry) | dead}. The
// active map is guarded by one mutex; no lock is held during outbound I/O, so
// enqueues proceed while replays are in flight.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/healer/internal/core/domain"
	"github.com/vietddude/healer/internal/metrics"
	"github.com/vietddude/healer/internal/transport"
)

// ErrInvalidPayload rejects malformed enqueue payloads synchronously; they
// never enter queue state.
var ErrInvalidPayload = errors.New("invalid replay payload")

const (
	excerptLimit     = 200
	deadHistoryCap   = 1000
	deadRecentWindow = 10 * time.Minute
)

// sensitive header names stripped from stored payloads, lowercase.
var blockedHeaders = map[string]struct{}{
	"authorization":       {},
	"proxy-authorization": {},
	"cookie":              {},
}

// Config holds the queue tuning knobs.
type Config struct {
	PollInterval       time.Duration
	MaxRetries         int
	OverflowThreshold  int
	DeadAlertThreshold int
	DeadAlertWindow    time.Duration
	BackoffCap         time.Duration
}

// DefaultConfig returns the stock queue settings.
func DefaultConfig() Config {
	return Config{
		PollInterval:       5 * time.Second,
		MaxRetries:         5,
		OverflowThreshold:  200,
		DeadAlertThreshold: 20,
		DeadAlertWindow:    300 * time.Second,
		BackoffCap:         60 * time.Second,
	}
}

// Archive receives records that reached dead-letter state. Calls are
// best-effort; failures are logged, never raised.
type Archive interface {
	StoreDead(ctx context.Context, rec *domain.ReplayRecord) error
}

// Snapshot reports active record counts for status reporting.
type Snapshot struct {
	Queued     int `json:"queued"`
	Running    int `json:"running"`
	DeadRecent int `json:"dead_recent"`
}

// Queue owns the active replay records and the dead-letter history.
type Queue struct {
	cfg     Config
	sender  transport.Sender
	archive Archive

	mu      sync.Mutex
	active  map[string]*domain.ReplayRecord
	deadLog []time.Time

	now   func() time.Time
	newID func() string
	log   *slog.Logger
}

// New creates a queue replaying through the given sender. archive may be nil.
func New(cfg Config, sender transport.Sender, archive Archive) *Queue {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultConfig().MaxRetries
	}
	if cfg.OverflowThreshold <= 0 {
		cfg.OverflowThreshold = DefaultConfig().OverflowThreshold
	}
	if cfg.DeadAlertThreshold <= 0 {
		cfg.DeadAlertThreshold = DefaultConfig().DeadAlertThreshold
	}
	if cfg.DeadAlertWindow <= 0 {
		cfg.DeadAlertWindow = DefaultConfig().DeadAlertWindow
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = DefaultConfig().BackoffCap
	}
	return &Queue{
		cfg:     cfg,
		sender:  sender,
		archive: archive,
		active:  make(map[string]*domain.ReplayRecord),
		now:     time.Now,
		newID:   uuid.NewString,
		log:     slog.Default(),
	}
}

// Enqueue validates and stores a failed request for replay. Sensitive headers
// are stripped and the correlation id defaults to the request id. The returned
// record is a copy; the queue keeps ownership of the live one.
func (q *Queue) Enqueue(payload domain.ReplayPayload) (*domain.ReplayRecord, error) {
	if err := validate(payload); err != nil {
		return nil, err
	}

	payload.Headers = sanitizeHeaders(payload.Headers)
	if payload.CorrelationID == "" {
		payload.CorrelationID = payload.RequestID
	}
	now := q.now()
	if payload.Timestamp.IsZero() {
		payload.Timestamp = now
	}

	rec := &domain.ReplayRecord{
		ID:          q.newID(),
		Payload:     payload,
		Status:      domain.ReplayQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
		NextRetryAt: now,
	}

	q.mu.Lock()
	q.active[rec.ID] = rec
	depth := len(q.active)
	q.mu.Unlock()

	metrics.QueueDepth.Set(float64(depth))
	q.log.Info("replay enqueued",
		"queue_id", rec.ID,
		"correlation_id", payload.CorrelationID,
		"provider", payload.Provider,
		"region", payload.Region,
		"endpoint", payload.Endpoint)

	if depth > q.cfg.OverflowThreshold {
		metrics.QueueOverflow.Inc()
		q.log.Warn("queue overflow",
			"provider", payload.Provider, "region", payload.Region, "count", depth)
	}

	return copyRecord(rec), nil
}

// Tick replays every due record once. Invoked by the background worker; the
// due set is collected under the lock, replays run sequentially outside it.
func (q *Queue) Tick(ctx context.Context) {
	now := q.now()

	var due []*domain.ReplayRecord
	q.mu.Lock()
	for _, rec := range q.active {
		if rec.Status == domain.ReplayQueued && !rec.NextRetryAt.After(now) {
			rec.Status = domain.ReplayRunning
			rec.UpdatedAt = now
			due = append(due, rec)
		}
	}
	q.mu.Unlock()

	for _, rec := range due {
		q.replay(ctx, rec)
	}
}

// Snapshot returns active record counts plus the dead count over the last ten
// minutes.
func (q *Queue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	var snap Snapshot
	for _, rec := range q.active {
		switch rec.Status {
		case domain.ReplayQueued:
			snap.Queued++
		case domain.ReplayRunning:
			snap.Running++
		}
	}
	snap.DeadRecent = q.deadWithin(q.now().Add(-deadRecentWindow))
	return snap
}

// Get returns a copy of an active record, or nil once it left the active set.
func (q *Queue) Get(id string) *domain.ReplayRecord {
	q.mu.Lock()
	defer q.mu.Unlock()

	rec, ok := q.active[id]
	if !ok {
		return nil
	}
	return copyRecord(rec)
}

// replay performs one attempt for a record already flipped to running. I/O
// happens without the lock; the resulting state change is applied under it.
func (q *Queue) replay(ctx context.Context, rec *domain.ReplayRecord) {
	p := rec.Payload
	resp, sendErr := q.sender.Send(ctx, p.Method, p.URL, p.Headers, p.Body)

	var (
		status     domain.ReplayStatus
		recentDead int
	)

	q.mu.Lock()
	now := q.now()
	rec.UpdatedAt = now

	switch {
	case sendErr == nil:
		rec.LastStatusCode = resp.StatusCode
		rec.LastExcerpt = excerpt(resp.Body)
		rec.Status = domain.ReplayCompleted

	case rec.Payload.RetryCount+1 >= q.cfg.MaxRetries:
		rec.Payload.RetryCount++
		rec.Status = domain.ReplayDead
		rec.NextRetryAt = rec.UpdatedAt
		rec.LastExcerpt = excerpt(sendErr.Error())
		recentDead = q.recordDead(now)

	default:
		rec.Payload.RetryCount++
		delay := backoffDelay(rec.Payload.RetryCount, q.cfg.BackoffCap)
		rec.NextRetryAt = rec.UpdatedAt.Add(delay)
		rec.Status = domain.ReplayQueued
		rec.LastExcerpt = excerpt(sendErr.Error())
	}

	status = rec.Status
	if status.Terminal() {
		delete(q.active, rec.ID)
	}
	depth := len(q.active)
	q.mu.Unlock()

	metrics.QueueDepth.Set(float64(depth))

	switch status {
	case domain.ReplayCompleted:
		metrics.QueueReplays.WithLabelValues("completed").Inc()
		q.log.Info("replay succeeded",
			"queue_id", rec.ID,
			"correlation_id", rec.Payload.CorrelationID,
			"status", rec.LastStatusCode)

	case domain.ReplayDead:
		metrics.QueueReplays.WithLabelValues("dead").Inc()
		q.log.Error("replay dead-lettered",
			"queue_id", rec.ID,
			"correlation_id", rec.Payload.CorrelationID,
			"error", sendErr.Error())
		if recentDead >= q.cfg.DeadAlertThreshold {
			metrics.DeadAlerts.Inc()
			q.log.Warn("dead-letter rate exceeded",
				"provider", rec.Payload.Provider,
				"region", rec.Payload.Region,
				"recent_dead", recentDead)
		}
		if q.archive != nil {
			if err := q.archive.StoreDead(ctx, rec); err != nil {
				q.log.Warn("dead-letter archive failed", "queue_id", rec.ID, "error", err)
			}
		}

	default:
		metrics.QueueReplays.WithLabelValues("retried").Inc()
		q.log.Info("replay rescheduled",
			"queue_id", rec.ID,
			"correlation_id", rec.Payload.CorrelationID,
			"retry_count", rec.Payload.RetryCount,
			"next_retry_at", rec.NextRetryAt.Format(time.RFC3339))
	}
}

// recordDead appends to the bounded dead history and returns the rolling count
// within the alert window. Callers must hold the lock.
func (q *Queue) recordDead(now time.Time) int {
	if len(q.deadLog) >= deadHistoryCap {
		copy(q.deadLog, q.deadLog[1:])
		q.deadLog[len(q.deadLog)-1] = now
	} else {
		q.deadLog = append(q.deadLog, now)
	}
	return q.deadWithin(now.Add(-q.cfg.DeadAlertWindow))
}

func (q *Queue) deadWithin(windowStart time.Time) int {
	count := 0
	for _, ts := range q.deadLog {
		if !ts.Before(windowStart) {
			count++
		}
	}
	return count
}

// backoffDelay is min(cap, 2^retryCount) seconds.
func backoffDelay(retryCount int, backoffCap time.Duration) time.Duration {
	capSeconds := int64(backoffCap / time.Second)
	var seconds int64
	if retryCount >= 63 {
		seconds = capSeconds
	} else {
		seconds = int64(1) << retryCount
		if seconds > capSeconds {
			seconds = capSeconds
		}
	}
	return time.Duration(seconds) * time.Second
}

func validate(p domain.ReplayPayload) error {
	switch {
	case p.RequestID == "":
		return fmt.Errorf("%w: missing request_id", ErrInvalidPayload)
	case p.Endpoint == "":
		return fmt.Errorf("%w: missing endpoint", ErrInvalidPayload)
	case p.Method == "":
		return fmt.Errorf("%w: missing method", ErrInvalidPayload)
	case p.URL == "":
		return fmt.Errorf("%w: missing url", ErrInvalidPayload)
	}
	return nil
}

func sanitizeHeaders(headers map[string]string) map[string]string {
	if headers == nil {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if _, blocked := blockedHeaders[strings.ToLower(k)]; blocked {
			continue
		}
		out[k] = v
	}
	return out
}

func excerpt(s string) string {
	if len(s) > excerptLimit {
		return s[:excerptLimit]
	}
	return s
}

func copyRecord(rec *domain.ReplayRecord) *domain.ReplayRecord {
	out := *rec
	if rec.Payload.Headers != nil {
		out.Payload.Headers = make(map[string]string, len(rec.Payload.Headers))
		for k, v := range rec.Payload.Headers {
			out.Payload.Headers[k] = v
		}
	}
	return &out
}
