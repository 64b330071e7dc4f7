package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ratemate/ratemate/internal/domain"
)

// RatingsRepository provides helpers for the received-ratings log.
type RatingsRepository struct {
	pool *pgxpool.Pool
}

// RatingSubmitParams captures one rating event.
type RatingSubmitParams struct {
	TargetID int64
	RaterID  int64
	Value    int
	Comment  *string
}

// Submit records a rating atomically and returns the target's new score.
//
// The transaction locks the target's profile row before anything else. Under
// read committed the score subquery sees only rows committed before its own
// statement began, so without the up-front lock a submission racing on the
// same target could average over a snapshot that misses the other writer's
// rating and persist a stale score. Taking the row lock first means a loser
// blocks before any snapshot-dependent read; by the time its statements run,
// the winner has committed and the average covers both rows. The count and
// quota arithmetic executes in the database against the locked row, and the
// conditional insert (primary key on the pair) rejects a second rating from
// the same rater.
func (r *RatingsRepository) Submit(ctx context.Context, params RatingSubmitParams) (float64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin submit: %w", err)
	}
	defer tx.Rollback(ctx)

	const lockTarget = `SELECT 1 FROM profiles WHERE id = $1 FOR NO KEY UPDATE`
	var one int
	if err := tx.QueryRow(ctx, lockTarget, params.TargetID).Scan(&one); err != nil {
		if err == pgx.ErrNoRows {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("lock target: %w", err)
	}

	const insertRating = `
        INSERT INTO ratings (profile_id, rater_id, value, comment)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (profile_id, rater_id) DO NOTHING
    `
	tag, err := tx.Exec(ctx, insertRating, params.TargetID, params.RaterID, params.Value, params.Comment)
	if err != nil {
		return 0, fmt.Errorf("append rating: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, ErrDuplicateRating
	}

	const updateTarget = `
        UPDATE profiles
        SET ratings_count = ratings_count + 1,
            exposure_quota = GREATEST(exposure_quota - 1, 0),
            score = COALESCE((SELECT ROUND(AVG(value)::numeric, 2) FROM ratings WHERE profile_id = $1), 0),
            updated_at = now()
        WHERE id = $1
        RETURNING score::float8
    `
	var score float64
	if err := tx.QueryRow(ctx, updateTarget, params.TargetID).Scan(&score); err != nil {
		if err == pgx.ErrNoRows {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("update target: %w", err)
	}

	const rewardRater = `
        UPDATE profiles
        SET exposure_quota = exposure_quota + 1,
            updated_at = now()
        WHERE id = $1
    `
	if _, err := tx.Exec(ctx, rewardRater, params.RaterID); err != nil {
		return 0, fmt.Errorf("reward rater: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit submit: %w", err)
	}
	return score, nil
}

// ListReceived returns the most recent entries of a profile's ratings log.
func (r *RatingsRepository) ListReceived(ctx context.Context, profileID int64, limit int) ([]domain.Rating, error) {
	if limit <= 0 {
		limit = 20
	}

	const query = `
        SELECT profile_id, rater_id, value, comment, created_at
        FROM ratings
        WHERE profile_id = $1
        ORDER BY created_at DESC, rater_id DESC
        LIMIT $2
    `
	rows, err := r.pool.Query(ctx, query, profileID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Rating, 0)
	for rows.Next() {
		var rt domain.Rating
		if err := rows.Scan(&rt.ProfileID, &rt.RaterID, &rt.Value, &rt.Comment, &rt.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, rt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// CountFor returns the log length for one (target, rater) pair.
func (r *RatingsRepository) CountFor(ctx context.Context, profileID, raterID int64) (int64, error) {
	const query = `SELECT COUNT(*) FROM ratings WHERE profile_id = $1 AND rater_id = $2`

	var n int64
	if err := r.pool.QueryRow(ctx, query, profileID, raterID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
