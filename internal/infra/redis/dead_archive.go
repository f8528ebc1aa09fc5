package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/healer/internal/core/domain"
)

// archiveTTL bounds how long archived dead letters stay inspectable.
const archiveTTL = 24 * time.Hour

// DeadArchive stores replay records that reached dead-letter state so an
// operator can inspect them after they leave the active queue. Write-only from
// the queue's point of view; the queue never reads archived records back.
type DeadArchive struct {
	rdb       *redis.Client
	namespace string
}

// NewDeadArchive creates a Redis-backed dead-letter archive.
func NewDeadArchive(client *Client, namespace string) *DeadArchive {
	if namespace == "" {
		namespace = "default"
	}
	return &DeadArchive{rdb: client.rdb, namespace: namespace}
}

func (a *DeadArchive) indexKey() string {
	return fmt.Sprintf("dead_letters:%s", a.namespace)
}

func (a *DeadArchive) recordKey(id string) string {
	return fmt.Sprintf("dead_letter:%s:%s", a.namespace, id)
}

// StoreDead archives one dead record: JSON value with a TTL plus a sorted-set
// index scored by failure time.
func (a *DeadArchive) StoreDead(ctx context.Context, rec *domain.ReplayRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal dead record: %w", err)
	}

	if err := a.rdb.Set(ctx, a.recordKey(rec.ID), data, archiveTTL).Err(); err != nil {
		return fmt.Errorf("failed to set dead record: %w", err)
	}

	if err := a.rdb.ZAdd(ctx, a.indexKey(), redis.Z{
		Score:  float64(rec.UpdatedAt.Unix()),
		Member: rec.ID,
	}).Err(); err != nil {
		return fmt.Errorf("failed to index dead record: %w", err)
	}

	return nil
}

// List returns archived records ordered oldest first.
func (a *DeadArchive) List(ctx context.Context, limit int) ([]*domain.ReplayRecord, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	ids, err := a.rdb.ZRange(ctx, a.indexKey(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange failed: %w", err)
	}

	records := make([]*domain.ReplayRecord, 0, len(ids))
	for _, id := range ids {
		data, err := a.rdb.Get(ctx, a.recordKey(id)).Bytes()
		if err == redis.Nil {
			// Value expired but the index entry survived, drop it
			a.rdb.ZRem(ctx, a.indexKey(), id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get dead record: %w", err)
		}

		var rec domain.ReplayRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		records = append(records, &rec)
	}

	return records, nil
}

// Count returns the number of archived records.
func (a *DeadArchive) Count(ctx context.Context) (int, error) {
	count, err := a.rdb.ZCard(ctx, a.indexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard failed: %w", err)
	}
	return int(count), nil
}
