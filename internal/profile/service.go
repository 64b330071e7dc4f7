package profile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/ratemate/ratemate/internal/cache"
	"github.com/ratemate/ratemate/internal/domain"
	"github.com/ratemate/ratemate/internal/repository"
)

var (
	// ErrInvalidName rejects names that are empty, too long, or contain
	// blacklisted symbols.
	ErrInvalidName = errors.New("profile: invalid name")
	// ErrInvalidCity rejects cities under the same validation family.
	ErrInvalidCity = errors.New("profile: invalid city")
	// ErrInvalidMedia rejects registrations without a media reference.
	ErrInvalidMedia = errors.New("profile: media reference required")
)

const (
	maxNameRunes = 15
	maxCityRunes = 50

	// City names may legitimately contain a hyphen; personal names may not.
	nameBlacklist = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
	cityBlacklist = "!\"#$%&'()*+,./:;<=>?@[\\]^_`{|}~"
)

// Caps on the raters view; VIP buyers see more of their audience.
const (
	ratersCapVIP     = 30
	ratersCapDefault = 20
)

// Store is the slice of profile persistence the service needs.
type Store interface {
	Create(ctx context.Context, params repository.ProfileCreateParams) (domain.Profile, error)
	GetByID(ctx context.Context, id int64) (domain.Profile, error)
	SetBlocked(ctx context.Context, id int64, blocked bool) error
	SetVIP(ctx context.Context, id int64, vip bool) error
	AddQuota(ctx context.Context, id int64, delta int64) error
	SearchByName(ctx context.Context, name string, limit int) ([]domain.ProfileSummary, error)
	TopByScore(ctx context.Context) ([]domain.ProfileSummary, error)
	TopByCount(ctx context.Context) ([]domain.ProfileSummary, error)
	TotalRatings(ctx context.Context) (int64, error)
	ListIDs(ctx context.Context) ([]int64, error)
}

// RatingsStore lists a profile's received-ratings log.
type RatingsStore interface {
	ListReceived(ctx context.Context, profileID int64, limit int) ([]domain.Rating, error)
}

// RaterEntry is one resolved row of the "who rated me" view.
type RaterEntry struct {
	RaterID int64
	Name    string
	Value   int
	Comment *string
}

// RatersResult carries the resolved entries plus an explicit count of raters
// whose profiles could not be read, instead of silently dropping them.
type RatersResult struct {
	Entries []RaterEntry
	Failed  int
}

// Service fronts profile reads with the entity cache and memoizes expensive
// bulk queries with the bulk cache. The caches are optimizations: every miss
// falls through to the repository.
type Service struct {
	store     Store
	ratings   RatingsStore
	entities  *cache.Cache[int64, domain.Profile]
	summaries *cache.Cache[string, []domain.ProfileSummary]
	totals    *cache.Cache[string, int64]
	logger    *log.Logger
}

// New constructs a Service with the given TTL classes.
func New(store Store, ratings RatingsStore, entities *cache.Cache[int64, domain.Profile], summaries *cache.Cache[string, []domain.ProfileSummary], totals *cache.Cache[string, int64], logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		store:     store,
		ratings:   ratings,
		entities:  entities,
		summaries: summaries,
		totals:    totals,
		logger:    logger,
	}
}

// Register validates and creates a new profile with a starting quota of one.
func (s *Service) Register(ctx context.Context, id int64, name, city, media string) (domain.Profile, error) {
	name = strings.TrimSpace(name)
	city = strings.TrimSpace(city)
	if name == "" || utf8.RuneCountInString(name) > maxNameRunes || strings.ContainsAny(name, nameBlacklist) {
		return domain.Profile{}, ErrInvalidName
	}
	if city == "" || utf8.RuneCountInString(city) > maxCityRunes || strings.ContainsAny(city, cityBlacklist) {
		return domain.Profile{}, ErrInvalidCity
	}
	if strings.TrimSpace(media) == "" {
		return domain.Profile{}, ErrInvalidMedia
	}

	created, err := s.store.Create(ctx, repository.ProfileCreateParams{ID: id, Name: name, City: city, Media: media})
	if err != nil {
		return domain.Profile{}, err
	}
	s.entities.Put(created.ID, created)
	return created, nil
}

// Get returns a displayable profile through the entity cache. Blocked
// profiles read as absent.
func (s *Service) Get(ctx context.Context, id int64) (domain.Profile, error) {
	if p, ok := s.entities.Get(id); ok {
		if p.Blocked {
			return domain.Profile{}, repository.ErrNotFound
		}
		return p, nil
	}

	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		return domain.Profile{}, err
	}
	s.entities.Put(id, p)
	if p.Blocked {
		return domain.Profile{}, repository.ErrNotFound
	}
	return p, nil
}

// Invalidate drops the cached entity read for id.
func (s *Service) Invalidate(id int64) {
	s.entities.Invalidate(id)
}

// SearchByName returns unblocked profiles matching the name fragment. Results
// are memoized per normalized query within the bulk TTL window; single-entity
// writes do not invalidate them, an accepted staleness for search-style reads.
func (s *Service) SearchByName(ctx context.Context, name string) ([]domain.ProfileSummary, error) {
	key := "search:" + strings.ToLower(strings.TrimSpace(name))
	if hit, ok := s.summaries.Get(key); ok {
		return hit, nil
	}
	result, err := s.store.SearchByName(ctx, name, 20)
	if err != nil {
		return nil, err
	}
	s.summaries.Put(key, result)
	return result, nil
}

// TopByScore returns the best-scored leaderboard, bulk-cached.
func (s *Service) TopByScore(ctx context.Context) ([]domain.ProfileSummary, error) {
	return s.leaderboard(ctx, "top:score", s.store.TopByScore)
}

// TopByCount returns the most-rated leaderboard, bulk-cached.
func (s *Service) TopByCount(ctx context.Context) ([]domain.ProfileSummary, error) {
	return s.leaderboard(ctx, "top:count", s.store.TopByCount)
}

func (s *Service) leaderboard(ctx context.Context, key string, fetch func(context.Context) ([]domain.ProfileSummary, error)) ([]domain.ProfileSummary, error) {
	if hit, ok := s.summaries.Get(key); ok {
		return hit, nil
	}
	result, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	s.summaries.Put(key, result)
	return result, nil
}

// TotalRatings returns the sum of ratings across all profiles, bulk-cached.
func (s *Service) TotalRatings(ctx context.Context) (int64, error) {
	const key = "ratings:total"
	if hit, ok := s.totals.Get(key); ok {
		return hit, nil
	}
	total, err := s.store.TotalRatings(ctx)
	if err != nil {
		return 0, err
	}
	s.totals.Put(key, total)
	return total, nil
}

// Recipients returns every profile id, for mass operations such as
// broadcasts and the stats view.
func (s *Service) Recipients(ctx context.Context) ([]int64, error) {
	return s.store.ListIDs(ctx)
}

// RatersOf resolves the profile's received-ratings log into display entries.
// VIP owners see up to 30 raters, others 20. Raters whose profiles cannot be
// read (deleted, blocked, or a store error) are counted in Failed rather than
// silently discarded.
func (s *Service) RatersOf(ctx context.Context, profileID int64, vip bool) (RatersResult, error) {
	limit := ratersCapDefault
	if vip {
		limit = ratersCapVIP
	}

	received, err := s.ratings.ListReceived(ctx, profileID, limit)
	if err != nil {
		return RatersResult{}, fmt.Errorf("list received ratings: %w", err)
	}

	result := RatersResult{Entries: make([]RaterEntry, 0, len(received))}
	for _, rt := range received {
		rater, err := s.Get(ctx, rt.RaterID)
		if err != nil {
			result.Failed++
			if !errors.Is(err, repository.ErrNotFound) {
				s.logger.Printf("profile: resolve rater %d failed: %v", rt.RaterID, err)
			}
			continue
		}
		result.Entries = append(result.Entries, RaterEntry{
			RaterID: rt.RaterID,
			Name:    rater.Name,
			Value:   rt.Value,
			Comment: rt.Comment,
		})
	}
	return result, nil
}

// SetBlocked flips the moderation flag and drops the cached read.
func (s *Service) SetBlocked(ctx context.Context, id int64, blocked bool) error {
	if err := s.store.SetBlocked(ctx, id, blocked); err != nil {
		return err
	}
	s.entities.Invalidate(id)
	return nil
}

// SetVIP flips the vip entitlement and drops the cached read.
func (s *Service) SetVIP(ctx context.Context, id int64, vip bool) error {
	if err := s.store.SetVIP(ctx, id, vip); err != nil {
		return err
	}
	s.entities.Invalidate(id)
	return nil
}

// GrantQuota adds exposure quota and drops the cached read.
func (s *Service) GrantQuota(ctx context.Context, id int64, delta int64) error {
	if err := s.store.AddQuota(ctx, id, delta); err != nil {
		return err
	}
	s.entities.Invalidate(id)
	return nil
}
