package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"headline_aggregator/internal/domain"
)

type QuotaStateStore struct {
	db *sqlx.DB
	tm *TransactionManager
}

func NewQuotaStateStore(db *sqlx.DB) *QuotaStateStore {
	return &QuotaStateStore{db: db, tm: NewTransactionManager(db)}
}

// GetOrCreate returns the quota row for (provider, day), creating it with a
// zero count on first use. Insert and read run in one transaction so two
// callers racing on the first request of the day both see the same row.
func (s *QuotaStateStore) GetOrCreate(ctx context.Context, provider string, day time.Time) (*domain.QuotaState, error) {
	var state domain.QuotaState

	err := s.tm.WithTransaction(ctx, func(txCtx context.Context) error {
		exec := GetExecutor(txCtx, s.db)

		_, err := exec.ExecContext(txCtx, `
			INSERT INTO quota_state (provider, day)
			VALUES ($1, $2)
			ON CONFLICT (provider, day) DO NOTHING`,
			provider, day,
		)
		if err != nil {
			return err
		}

		row := exec.QueryRowxContext(txCtx, `
			SELECT id, provider, day, request_count, last_rate_limit_hit
			FROM quota_state
			WHERE provider = $1 AND day = $2`,
			provider, day,
		)
		return row.StructScan(&state)
	})
	if err != nil {
		return nil, err
	}

	return &state, nil
}

// Increment bumps the request count by exactly one and returns the new value.
// A single statement keeps increment-and-read atomic, so a crash between
// provider calls cannot double-count or lose a completed call.
func (s *QuotaStateStore) Increment(ctx context.Context, provider string, day time.Time) (int, error) {
	query := `
		INSERT INTO quota_state (provider, day, request_count)
		VALUES ($1, $2, 1)
		ON CONFLICT (provider, day) DO UPDATE SET
			request_count = quota_state.request_count + 1
		RETURNING request_count`

	var count int
	err := s.db.GetContext(ctx, &count, query, provider, day)
	return count, err
}

// MarkRateLimited stamps last_rate_limit_hit without touching the counter.
func (s *QuotaStateStore) MarkRateLimited(ctx context.Context, provider string, day time.Time, at time.Time) error {
	query := `
		INSERT INTO quota_state (provider, day, last_rate_limit_hit)
		VALUES ($1, $2, $3)
		ON CONFLICT (provider, day) DO UPDATE SET
			last_rate_limit_hit = EXCLUDED.last_rate_limit_hit`

	_, err := s.db.ExecContext(ctx, query, provider, day, at)
	return err
}
