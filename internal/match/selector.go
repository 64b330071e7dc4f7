package match

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/ratemate/ratemate/internal/domain"
	"github.com/ratemate/ratemate/internal/repository"
)

// Sampler is the slice of the store the selector depends on. The query runs
// against the store directly, never through the entity cache: eligibility is a
// multi-field filter and stale rows would re-serve already-rated profiles.
type Sampler interface {
	SampleCandidate(ctx context.Context, requesterID int64, city string) (domain.Profile, error)
}

// Selector picks the next profile a requester should rate.
type Selector struct {
	sampler Sampler
	logger  *log.Logger
}

// New constructs a Selector.
func New(sampler Sampler, logger *log.Logger) *Selector {
	if logger == nil {
		logger = log.Default()
	}
	return &Selector{sampler: sampler, logger: logger}
}

// Next returns one eligible candidate, or (nil, nil) when the pool is
// exhausted in both phases. Phase 1 restricts candidates to the requester's
// city; phase 2 drops the city filter so an empty local pool still gets
// served. A store error triggers exactly one retry of the whole selection
// before being surfaced.
func (s *Selector) Next(ctx context.Context, requesterID int64, requesterCity string) (*domain.Profile, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		candidate, err := s.selectOnce(ctx, requesterID, requesterCity)
		if err == nil {
			return candidate, nil
		}
		lastErr = err
		s.logger.Printf("match: selection attempt %d for requester %d failed: %v", attempt+1, requesterID, err)
	}
	return nil, fmt.Errorf("select candidate: %w", lastErr)
}

func (s *Selector) selectOnce(ctx context.Context, requesterID int64, city string) (*domain.Profile, error) {
	if city != "" {
		candidate, err := s.sampler.SampleCandidate(ctx, requesterID, city)
		switch {
		case err == nil:
			return &candidate, nil
		case errors.Is(err, repository.ErrNotFound):
			// Empty city pool; fall back to the global phase.
		default:
			return nil, err
		}
	}

	candidate, err := s.sampler.SampleCandidate(ctx, requesterID, "")
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &candidate, nil
}
