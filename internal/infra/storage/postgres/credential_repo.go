package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vietddude/healer/internal/core/domain"
)

// CredentialRepo reads and writes the credential catalog. The catalog seeds
// the in-memory pool at startup; live quota state stays in memory.
type CredentialRepo struct {
	db *DB
}

// NewCredentialRepo creates a new PostgreSQL credential repository.
func NewCredentialRepo(db *DB) *CredentialRepo {
	return &CredentialRepo{db: db}
}

// GetAll returns every catalog credential in registration order.
func (r *CredentialRepo) GetAll(ctx context.Context) ([]domain.Credential, error) {
	query := `
		SELECT id, provider, model, api_key, status, tier,
		       max_calls_per_day, daily_call_limit, max_tokens_per_day,
		       status_reason
		FROM credentials
		ORDER BY position ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var creds []domain.Credential
	for rows.Next() {
		var (
			c        domain.Credential
			calls    sql.NullInt64
			daily    sql.NullInt64
			tokens   sql.NullInt64
			reason   sql.NullString
			status   string
			tierName string
		)
		if err := rows.Scan(
			&c.ID, &c.Provider, &c.Model, &c.APIKey, &status, &tierName,
			&calls, &daily, &tokens, &reason,
		); err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		c.Status = domain.CredentialStatus(status)
		c.Tier = domain.Tier(tierName)
		c.MaxCallsPerDay = int(calls.Int64)
		c.DailyCallLimit = int(daily.Int64)
		c.MaxTokensPerDay = int(tokens.Int64)
		if reason.Valid && reason.String != "" {
			c.SetReason(reason.String)
		}
		creds = append(creds, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	return creds, nil
}

// FlushTotals writes lifetime usage counters back to the catalog. Best-effort
// bookkeeping for operators; the pool never reads these back at runtime.
func (r *CredentialRepo) FlushTotals(ctx context.Context, creds []domain.Credential) error {
	query := `
		UPDATE credentials
		SET total_calls = $2, total_tokens = $3, updated_at = NOW()
		WHERE id = $1
	`

	for _, c := range creds {
		if _, err := r.db.ExecContext(ctx, query, c.ID, c.TotalCalls, c.TotalTokens); err != nil {
			return fmt.Errorf("failed to flush totals for %s: %w", c.ID, err)
		}
	}
	return nil
}
