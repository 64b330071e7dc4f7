package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ratemate/ratemate/internal/store"
)

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("repository: not found")

// ErrProfileExists indicates a registration collided with an existing id.
var ErrProfileExists = errors.New("repository: profile already exists")

// ErrDuplicateRating indicates the rater already appears in the target's log.
var ErrDuplicateRating = errors.New("repository: rater already rated this profile")

// Repository aggregates all domain-specific repositories.
type Repository struct {
	Profiles *ProfilesRepository
	Ratings  *RatingsRepository
}

// New constructs a Repository backed by the provided store.
func New(st *store.Store) *Repository {
	return NewWithPool(st.Pool())
}

// NewWithPool allows constructing repositories directly from a pgx pool.
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{
		Profiles: &ProfilesRepository{pool: pool},
		Ratings:  &RatingsRepository{pool: pool},
	}
}
