package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ratemate/ratemate/internal/domain"
)

// ProfilesRepository provides persistence helpers for profile entities.
type ProfilesRepository struct {
	pool *pgxpool.Pool
}

const profileColumns = `
    id,
    name,
    city,
    media,
    score::float8,
    ratings_count,
    exposure_quota,
    blocked,
    vip,
    created_at,
    updated_at
`

const summaryColumns = `id, name, city, media, score::float8, ratings_count`

// ProfileCreateParams bundles the fields required to register a profile.
type ProfileCreateParams struct {
	ID    int64
	Name  string
	City  string
	Media string
}

// Create inserts a new profile with a starting exposure quota of one.
// Registering an id twice returns ErrProfileExists.
func (r *ProfilesRepository) Create(ctx context.Context, params ProfileCreateParams) (domain.Profile, error) {
	query := fmt.Sprintf(`
        INSERT INTO profiles (id, name, city, media)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (id) DO NOTHING
        RETURNING %s
    `, profileColumns)

	row := r.pool.QueryRow(ctx, query, params.ID, params.Name, params.City, params.Media)
	profile, err := scanProfile(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Profile{}, ErrProfileExists
		}
		return domain.Profile{}, err
	}
	return profile, nil
}

// GetByID fetches a profile by its identifier.
func (r *ProfilesRepository) GetByID(ctx context.Context, id int64) (domain.Profile, error) {
	query := fmt.Sprintf(`SELECT %s FROM profiles WHERE id = $1`, profileColumns)
	row := r.pool.QueryRow(ctx, query, id)
	profile, err := scanProfile(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Profile{}, ErrNotFound
		}
		return domain.Profile{}, err
	}
	return profile, nil
}

// SetBlocked flips the moderation block flag.
func (r *ProfilesRepository) SetBlocked(ctx context.Context, id int64, blocked bool) error {
	return r.setFlag(ctx, id, "blocked", blocked)
}

// SetVIP flips the vip entitlement flag.
func (r *ProfilesRepository) SetVIP(ctx context.Context, id int64, vip bool) error {
	return r.setFlag(ctx, id, "vip", vip)
}

func (r *ProfilesRepository) setFlag(ctx context.Context, id int64, column string, value bool) error {
	query := fmt.Sprintf(`UPDATE profiles SET %s = $2, updated_at = now() WHERE id = $1`, column)
	tag, err := r.pool.Exec(ctx, query, id, value)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddQuota grants additional exposure quota. Negative deltas clamp at zero.
func (r *ProfilesRepository) AddQuota(ctx context.Context, id int64, delta int64) error {
	const query = `
        UPDATE profiles
        SET exposure_quota = GREATEST(exposure_quota + $2, 0),
            updated_at = now()
        WHERE id = $1
    `
	tag, err := r.pool.Exec(ctx, query, id, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SampleCandidate returns one uniformly random profile the requester is still
// allowed to rate: not the requester, not blocked, quota remaining, and not
// already rated by them. A non-empty city narrows the pool to a
// case-insensitive substring match. ErrNotFound means the pool is exhausted.
//
// Candidate selection reads the store directly; serving a stale cached row
// here could re-serve an already-rated profile.
func (r *ProfilesRepository) SampleCandidate(ctx context.Context, requesterID int64, city string) (domain.Profile, error) {
	where := []string{
		"p.id <> $1",
		"p.blocked = false",
		"p.exposure_quota > 0",
		"NOT EXISTS (SELECT 1 FROM ratings rt WHERE rt.profile_id = p.id AND rt.rater_id = $1)",
	}
	args := []interface{}{requesterID}
	if strings.TrimSpace(city) != "" {
		args = append(args, "%"+strings.TrimSpace(city)+"%")
		where = append(where, fmt.Sprintf("p.city ILIKE $%d", len(args)))
	}

	query := fmt.Sprintf(`
        SELECT %s FROM profiles p
        WHERE %s
        ORDER BY random()
        LIMIT 1
    `, profileColumns, strings.Join(where, " AND "))

	row := r.pool.QueryRow(ctx, query, args...)
	profile, err := scanProfile(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Profile{}, ErrNotFound
		}
		return domain.Profile{}, err
	}
	return profile, nil
}

// SearchByName returns unblocked profiles whose name contains the given
// fragment, case-insensitively.
func (r *ProfilesRepository) SearchByName(ctx context.Context, name string, limit int) ([]domain.ProfileSummary, error) {
	if limit <= 0 {
		limit = 20
	} else if limit > 100 {
		limit = 100
	}

	query := fmt.Sprintf(`
        SELECT %s FROM profiles
        WHERE name ILIKE $1 AND blocked = false
        ORDER BY name, id
        LIMIT %d
    `, summaryColumns, limit)

	return r.querySummaries(ctx, query, "%"+strings.TrimSpace(name)+"%")
}

// TopByScore returns the leaderboard of the ten best-scored profiles among
// those with at least 100 ratings, active and unblocked.
func (r *ProfilesRepository) TopByScore(ctx context.Context) ([]domain.ProfileSummary, error) {
	return r.leaderboard(ctx, "score DESC")
}

// TopByCount returns the leaderboard of the ten most-rated profiles under the
// same eligibility rules as TopByScore.
func (r *ProfilesRepository) TopByCount(ctx context.Context) ([]domain.ProfileSummary, error) {
	return r.leaderboard(ctx, "ratings_count DESC")
}

func (r *ProfilesRepository) leaderboard(ctx context.Context, order string) ([]domain.ProfileSummary, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM profiles
        WHERE ratings_count >= 100 AND blocked = false AND exposure_quota > 0
        ORDER BY %s, id
        LIMIT 10
    `, summaryColumns, order)

	return r.querySummaries(ctx, query)
}

func (r *ProfilesRepository) querySummaries(ctx context.Context, query string, args ...interface{}) ([]domain.ProfileSummary, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.ProfileSummary, 0)
	for rows.Next() {
		var s domain.ProfileSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.City, &s.Media, &s.Score, &s.RatingsCount); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// TotalRatings returns the sum of ratings recorded across all profiles.
func (r *ProfilesRepository) TotalRatings(ctx context.Context) (int64, error) {
	const query = `SELECT COALESCE(SUM(ratings_count), 0)::int8 FROM profiles`

	var total int64
	if err := r.pool.QueryRow(ctx, query).Scan(&total); err != nil {
		return 0, fmt.Errorf("total ratings: %w", err)
	}
	return total, nil
}

// ListIDs returns the distinct ids of every profile, for mass operations.
func (r *ProfilesRepository) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM profiles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func scanProfile(row pgx.Row) (domain.Profile, error) {
	var p domain.Profile
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.City,
		&p.Media,
		&p.Score,
		&p.RatingsCount,
		&p.ExposureQuota,
		&p.Blocked,
		&p.VIP,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return domain.Profile{}, err
	}
	return p, nil
}
