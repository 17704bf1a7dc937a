package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/renderri/server/internal/models"
)

// ProfileStore reads and mutates user_profiles rows. Quota consumption is a
// single conditional UPDATE so that two concurrent requests can never both
// spend the same remaining unit.
type ProfileStore struct {
	db *sqlx.DB
}

func NewProfileStore(db *sqlx.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

// GetOrCreate fetches the profile for userID, lazily creating it with the
// given allowance when missing. Profiles are normally created at signup; the
// lazy path self-heals accounts that confirmed their email out of band.
func (s *ProfileStore) GetOrCreate(ctx context.Context, userID string, allowance int) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := withRetry(ctx, "profiles.get", func() error {
		err := s.db.GetContext(ctx, &profile,
			`SELECT user_id, weekly_generations_remaining, last_generation_reset_at, updated_at
			 FROM user_profiles WHERE user_id = $1`, userID)
		if errors.Is(err, sql.ErrNoRows) {
			if _, insErr := s.db.ExecContext(ctx,
				`INSERT INTO user_profiles (user_id, weekly_generations_remaining, last_generation_reset_at)
				 VALUES ($1, $2, NOW())
				 ON CONFLICT (user_id) DO NOTHING`, userID, allowance); insErr != nil {
				return fmt.Errorf("create profile: %w", insErr)
			}
			return s.db.GetContext(ctx, &profile,
				`SELECT user_id, weekly_generations_remaining, last_generation_reset_at, updated_at
				 FROM user_profiles WHERE user_id = $1`, userID)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	return &profile, nil
}

// Create inserts a fresh profile with the full allowance. Used at signup.
func (s *ProfileStore) Create(ctx context.Context, userID string, allowance int) error {
	err := withRetry(ctx, "profiles.create", func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO user_profiles (user_id, weekly_generations_remaining, last_generation_reset_at)
			 VALUES ($1, $2, NOW())
			 ON CONFLICT (user_id) DO NOTHING`, userID, allowance)
		return err
	})
	if err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

// ConsumeQuota atomically spends cost units iff enough remain, returning the
// new remaining count. ok is false when the counter was below cost; nothing
// is mutated in that case.
func (s *ProfileStore) ConsumeQuota(ctx context.Context, userID string, cost int) (newRemaining int, ok bool, err error) {
	err = withRetry(ctx, "profiles.consume", func() error {
		row := s.db.QueryRowContext(ctx,
			`UPDATE user_profiles
			 SET weekly_generations_remaining = weekly_generations_remaining - $2,
			     updated_at = NOW()
			 WHERE user_id = $1 AND weekly_generations_remaining >= $2
			 RETURNING weekly_generations_remaining`, userID, cost)
		scanErr := row.Scan(&newRemaining)
		if errors.Is(scanErr, sql.ErrNoRows) {
			ok = false
			return nil
		}
		if scanErr != nil {
			return scanErr
		}
		ok = true
		return nil
	})
	if err != nil {
		return 0, false, fmt.Errorf("consume quota: %w", err)
	}
	return newRemaining, ok, nil
}

// Refund returns amount units to the counter after a failed generation.
// An increment rather than a write-back of the old absolute value, so a
// concurrent request that spent quota in the meantime is not clobbered.
func (s *ProfileStore) Refund(ctx context.Context, userID string, amount int) error {
	err := withRetry(ctx, "profiles.refund", func() error {
		_, err := s.db.ExecContext(ctx,
			`UPDATE user_profiles
			 SET weekly_generations_remaining = weekly_generations_remaining + $2,
			     updated_at = NOW()
			 WHERE user_id = $1`, userID, amount)
		return err
	})
	if err != nil {
		return fmt.Errorf("refund quota: %w", err)
	}
	return nil
}

// ResetAll restores every profile to the weekly allowance and stamps the
// reset time. Prior counter values, corrupted ones included, are overwritten
// unconditionally.
func (s *ProfileStore) ResetAll(ctx context.Context, allowance int) error {
	err := withRetry(ctx, "profiles.reset", func() error {
		_, err := s.db.ExecContext(ctx,
			`UPDATE user_profiles
			 SET weekly_generations_remaining = $1,
			     last_generation_reset_at = NOW(),
			     updated_at = NOW()`, allowance)
		return err
	})
	if err != nil {
		return fmt.Errorf("reset quotas: %w", err)
	}
	return nil
}
