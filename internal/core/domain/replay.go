package domain

import "time"

// ReplayStatus is the lifecycle state of a queued replay record.
type ReplayStatus string

const (
	ReplayQueued    ReplayStatus = "queued"
	ReplayRunning   ReplayStatus = "running"
	ReplayCompleted ReplayStatus = "completed"
	ReplayDead      ReplayStatus = "dead"
)

// Terminal reports whether the status removes the record from active tracking.
func (s ReplayStatus) Terminal() bool {
	return s == ReplayCompleted || s == ReplayDead
}

// ReplayPayload is the immutable description of a failed request to replay.
type ReplayPayload struct {
	RequestID     string            `json:"request_id"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Endpoint      string            `json:"endpoint"`
	Provider      string            `json:"provider,omitempty"`
	Region        string            `json:"region,omitempty"`
	Method        string            `json:"method"`
	URL           string            `json:"url"`
	Headers       map[string]string `json:"headers,omitempty"`
	Body          any               `json:"body,omitempty"`
	ErrorType     string            `json:"error_type,omitempty"`
	ErrorMessage  string            `json:"error_message,omitempty"`
	ErrorStatus   int               `json:"error_status,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
	RetryCount    int               `json:"retry_count"`
}

// ReplayRecord tracks one enqueued failed request through retry and dead-letter.
type ReplayRecord struct {
	ID             string        `json:"id"`
	Payload        ReplayPayload `json:"payload"`
	Status         ReplayStatus  `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	NextRetryAt    time.Time     `json:"next_retry_at"`
	LastStatusCode int           `json:"last_status_code,omitempty"`
	LastExcerpt    string        `json:"last_excerpt,omitempty"`
}
