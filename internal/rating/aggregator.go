package rating

import (
	"context"
	"errors"
	"fmt"
	"log"
	"unicode/utf8"

	"github.com/ratemate/ratemate/internal/domain"
	"github.com/ratemate/ratemate/internal/repository"
)

// Policy violations are rejected synchronously with a caller-visible reason.
var (
	ErrInvalidValue   = errors.New("rating: value must be between 1 and 10")
	ErrCommentTooLong = errors.New("rating: comment exceeds 300 characters")
	ErrSelfRating     = errors.New("rating: cannot rate own profile")
	ErrTargetBlocked  = errors.New("rating: target profile is blocked")
	ErrTargetInactive = errors.New("rating: target has no exposure quota left")
	ErrAlreadyRated   = errors.New("rating: target already rated by this user")
)

const maxCommentRunes = 300

// ProfileReader supplies the target profile for policy checks.
type ProfileReader interface {
	GetByID(ctx context.Context, id int64) (domain.Profile, error)
}

// RatingWriter performs the atomic rating transaction.
type RatingWriter interface {
	Submit(ctx context.Context, params repository.RatingSubmitParams) (float64, error)
}

// Invalidator drops cached entity reads after a write-through mutation.
type Invalidator interface {
	Invalidate(id int64)
}

// Aggregator durably records rating events and keeps derived fields
// consistent: the append, both quota adjustments, and the score recompute are
// delegated to the store's single-transaction write, then the cache entries
// for both parties are invalidated.
type Aggregator struct {
	profiles ProfileReader
	ratings  RatingWriter
	cache    Invalidator
	logger   *log.Logger
}

// New constructs an Aggregator.
func New(profiles ProfileReader, ratings RatingWriter, cache Invalidator, logger *log.Logger) *Aggregator {
	if logger == nil {
		logger = log.Default()
	}
	return &Aggregator{profiles: profiles, ratings: ratings, cache: cache, logger: logger}
}

// Submit records one rating of targetID by raterID and returns the target's
// new score. Duplicate submissions for the same (target, rater) pair are
// no-ops reported as ErrAlreadyRated regardless of any UI-level cooldown.
func (a *Aggregator) Submit(ctx context.Context, targetID, raterID int64, value int, comment *string) (float64, error) {
	if value < 1 || value > 10 {
		return 0, ErrInvalidValue
	}
	if comment != nil && utf8.RuneCountInString(*comment) > maxCommentRunes {
		return 0, ErrCommentTooLong
	}
	if targetID == raterID {
		return 0, ErrSelfRating
	}

	target, err := a.profiles.GetByID(ctx, targetID)
	if err != nil {
		return 0, fmt.Errorf("load target: %w", err)
	}
	if target.Blocked {
		return 0, ErrTargetBlocked
	}
	if !target.Active() {
		return 0, ErrTargetInactive
	}

	score, err := a.submit(ctx, repository.RatingSubmitParams{
		TargetID: targetID,
		RaterID:  raterID,
		Value:    value,
		Comment:  comment,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateRating) {
			return 0, ErrAlreadyRated
		}
		return 0, err
	}

	a.cache.Invalidate(targetID)
	a.cache.Invalidate(raterID)
	return score, nil
}

// submit retries a transient store failure once. The conditional append makes
// the retry safe: a write that actually landed turns the second attempt into
// a duplicate, which the caller maps to a no-op.
func (a *Aggregator) submit(ctx context.Context, params repository.RatingSubmitParams) (float64, error) {
	score, err := a.ratings.Submit(ctx, params)
	if err == nil || errors.Is(err, repository.ErrDuplicateRating) || errors.Is(err, repository.ErrNotFound) {
		return score, err
	}

	a.logger.Printf("rating: submit for target %d by %d failed, retrying once: %v", params.TargetID, params.RaterID, err)
	score, retryErr := a.ratings.Submit(ctx, params)
	if retryErr != nil {
		// A duplicate on retry means the first attempt actually landed.
		if errors.Is(retryErr, repository.ErrDuplicateRating) {
			return 0, retryErr
		}
		return 0, fmt.Errorf("submit rating: %w", retryErr)
	}
	return score, nil
}
