package profile

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/ratemate/ratemate/internal/cache"
	"github.com/ratemate/ratemate/internal/domain"
	"github.com/ratemate/ratemate/internal/repository"
)

type stubStore struct {
	profiles map[int64]domain.Profile

	getCalls    int
	searchCalls int
	topCalls    int
	totalCalls  int
	err         error
}

func newStubStore() *stubStore {
	return &stubStore{profiles: make(map[int64]domain.Profile)}
}

func (s *stubStore) Create(ctx context.Context, params repository.ProfileCreateParams) (domain.Profile, error) {
	if s.err != nil {
		return domain.Profile{}, s.err
	}
	if _, ok := s.profiles[params.ID]; ok {
		return domain.Profile{}, repository.ErrProfileExists
	}
	p := domain.Profile{ID: params.ID, Name: params.Name, City: params.City, Media: params.Media, ExposureQuota: 1}
	s.profiles[params.ID] = p
	return p, nil
}

func (s *stubStore) GetByID(ctx context.Context, id int64) (domain.Profile, error) {
	s.getCalls++
	if s.err != nil {
		return domain.Profile{}, s.err
	}
	p, ok := s.profiles[id]
	if !ok {
		return domain.Profile{}, repository.ErrNotFound
	}
	return p, nil
}

func (s *stubStore) SetBlocked(ctx context.Context, id int64, blocked bool) error {
	p, ok := s.profiles[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Blocked = blocked
	s.profiles[id] = p
	return nil
}

func (s *stubStore) SetVIP(ctx context.Context, id int64, vip bool) error {
	p, ok := s.profiles[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.VIP = vip
	s.profiles[id] = p
	return nil
}

func (s *stubStore) AddQuota(ctx context.Context, id int64, delta int64) error {
	p, ok := s.profiles[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.ExposureQuota += delta
	s.profiles[id] = p
	return nil
}

func (s *stubStore) SearchByName(ctx context.Context, name string, limit int) ([]domain.ProfileSummary, error) {
	s.searchCalls++
	var out []domain.ProfileSummary
	for _, p := range s.profiles {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(name)) {
			out = append(out, domain.ProfileSummary{ID: p.ID, Name: p.Name})
		}
	}
	return out, nil
}

func (s *stubStore) TopByScore(ctx context.Context) ([]domain.ProfileSummary, error) {
	s.topCalls++
	return []domain.ProfileSummary{{ID: 1, Name: "top"}}, nil
}

func (s *stubStore) TopByCount(ctx context.Context) ([]domain.ProfileSummary, error) {
	s.topCalls++
	return []domain.ProfileSummary{{ID: 2, Name: "busy"}}, nil
}

func (s *stubStore) TotalRatings(ctx context.Context) (int64, error) {
	s.totalCalls++
	return 123, nil
}

func (s *stubStore) ListIDs(ctx context.Context) ([]int64, error) {
	ids := make([]int64, 0, len(s.profiles))
	for id := range s.profiles {
		ids = append(ids, id)
	}
	return ids, nil
}

type stubRatings struct {
	received []domain.Rating
	err      error
	lastCap  int
}

func (s *stubRatings) ListReceived(ctx context.Context, profileID int64, limit int) ([]domain.Rating, error) {
	s.lastCap = limit
	if s.err != nil {
		return nil, s.err
	}
	if len(s.received) > limit {
		return s.received[:limit], nil
	}
	return s.received, nil
}

func newTestService(store *stubStore, ratings *stubRatings) *Service {
	return New(
		store,
		ratings,
		cache.New[int64, domain.Profile](5*time.Minute),
		cache.New[string, []domain.ProfileSummary](5*time.Minute),
		cache.New[string, int64](5*time.Minute),
		log.New(io.Discard, "", 0),
	)
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		testName string
		name     string
		city     string
		media    string
		wantErr  error
	}{
		{"empty name", "", "Berlin", "m1", ErrInvalidName},
		{"name too long", strings.Repeat("a", 16), "Berlin", "m1", ErrInvalidName},
		{"name with symbol", "an@a", "Berlin", "m1", ErrInvalidName},
		{"name with comma", "a,b", "Berlin", "m1", ErrInvalidName},
		{"empty city", "Anna", "", "m1", ErrInvalidCity},
		{"city too long", "Anna", strings.Repeat("b", 51), "m1", ErrInvalidCity},
		{"city with symbol", "Anna", "Berlin!", "m1", ErrInvalidCity},
		{"missing media", "Anna", "Berlin", "  ", ErrInvalidMedia},
	}
	for _, tt := range tests {
		t.Run(tt.testName, func(t *testing.T) {
			svc := newTestService(newStubStore(), &stubRatings{})
			if _, err := svc.Register(context.Background(), 1, tt.name, tt.city, tt.media); !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegisterAcceptsHyphenatedCity(t *testing.T) {
	svc := newTestService(newStubStore(), &stubRatings{})

	p, err := svc.Register(context.Background(), 1, "Anna", "Rostov-on-Don", "m1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if p.City != "Rostov-on-Don" || p.ExposureQuota != 1 {
		t.Fatalf("profile = %+v", p)
	}
}

func TestRegisterRejectsHyphenatedName(t *testing.T) {
	svc := newTestService(newStubStore(), &stubRatings{})

	if _, err := svc.Register(context.Background(), 1, "An-na", "Berlin", "m1"); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("err = %v, want ErrInvalidName", err)
	}
}

func TestGetUsesEntityCache(t *testing.T) {
	store := newStubStore()
	store.profiles[7] = domain.Profile{ID: 7, Name: "Anna"}
	svc := newTestService(store, &stubRatings{})

	for i := 0; i < 3; i++ {
		if _, err := svc.Get(context.Background(), 7); err != nil {
			t.Fatalf("Get: %v", err)
		}
	}
	if store.getCalls != 1 {
		t.Fatalf("store reads = %d, want 1", store.getCalls)
	}
}

func TestGetHidesBlockedProfiles(t *testing.T) {
	store := newStubStore()
	store.profiles[7] = domain.Profile{ID: 7, Name: "Anna", Blocked: true}
	svc := newTestService(store, &stubRatings{})

	if _, err := svc.Get(context.Background(), 7); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound for blocked profile", err)
	}
	// The cached read hides it too.
	if _, err := svc.Get(context.Background(), 7); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("cached err = %v, want ErrNotFound", err)
	}
}

func TestSetBlockedInvalidatesCachedRead(t *testing.T) {
	store := newStubStore()
	store.profiles[7] = domain.Profile{ID: 7, Name: "Anna"}
	svc := newTestService(store, &stubRatings{})

	if _, err := svc.Get(context.Background(), 7); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := svc.SetBlocked(context.Background(), 7, true); err != nil {
		t.Fatalf("SetBlocked: %v", err)
	}
	if _, err := svc.Get(context.Background(), 7); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound after block", err)
	}
}

func TestSearchByNameMemoized(t *testing.T) {
	store := newStubStore()
	store.profiles[1] = domain.Profile{ID: 1, Name: "Anna"}
	svc := newTestService(store, &stubRatings{})

	if _, err := svc.SearchByName(context.Background(), "ann"); err != nil {
		t.Fatalf("SearchByName: %v", err)
	}
	// Queries differing only by case and padding share a cache entry.
	if _, err := svc.SearchByName(context.Background(), "  ANN "); err != nil {
		t.Fatalf("SearchByName: %v", err)
	}
	if store.searchCalls != 1 {
		t.Fatalf("search queries = %d, want 1", store.searchCalls)
	}
}

func TestLeaderboardsMemoized(t *testing.T) {
	store := newStubStore()
	svc := newTestService(store, &stubRatings{})

	byScore, err := svc.TopByScore(context.Background())
	if err != nil {
		t.Fatalf("TopByScore: %v", err)
	}
	byCount, err := svc.TopByCount(context.Background())
	if err != nil {
		t.Fatalf("TopByCount: %v", err)
	}
	if byScore[0].ID == byCount[0].ID {
		t.Fatalf("leaderboards must not share cache keys")
	}

	svc.TopByScore(context.Background())
	svc.TopByCount(context.Background())
	if store.topCalls != 2 {
		t.Fatalf("leaderboard queries = %d, want 2", store.topCalls)
	}
}

func TestTotalRatingsMemoized(t *testing.T) {
	store := newStubStore()
	svc := newTestService(store, &stubRatings{})

	for i := 0; i < 3; i++ {
		total, err := svc.TotalRatings(context.Background())
		if err != nil {
			t.Fatalf("TotalRatings: %v", err)
		}
		if total != 123 {
			t.Fatalf("total = %d, want 123", total)
		}
	}
	if store.totalCalls != 1 {
		t.Fatalf("total queries = %d, want 1", store.totalCalls)
	}
}

func TestRatersOfCaps(t *testing.T) {
	store := newStubStore()
	ratings := &stubRatings{}
	svc := newTestService(store, ratings)

	if _, err := svc.RatersOf(context.Background(), 7, false); err != nil {
		t.Fatalf("RatersOf: %v", err)
	}
	if ratings.lastCap != 20 {
		t.Fatalf("cap = %d, want 20", ratings.lastCap)
	}
	if _, err := svc.RatersOf(context.Background(), 7, true); err != nil {
		t.Fatalf("RatersOf: %v", err)
	}
	if ratings.lastCap != 30 {
		t.Fatalf("vip cap = %d, want 30", ratings.lastCap)
	}
}

func TestRatersOfCountsUnresolvedRaters(t *testing.T) {
	store := newStubStore()
	store.profiles[1] = domain.Profile{ID: 1, Name: "Anna"}
	store.profiles[2] = domain.Profile{ID: 2, Name: "Boris", Blocked: true}
	comment := "nice"
	ratings := &stubRatings{received: []domain.Rating{
		{ProfileID: 7, RaterID: 1, Value: 9, Comment: &comment},
		{ProfileID: 7, RaterID: 2, Value: 5},
		{ProfileID: 7, RaterID: 99, Value: 3},
	}}
	svc := newTestService(store, ratings)

	result, err := svc.RatersOf(context.Background(), 7, false)
	if err != nil {
		t.Fatalf("RatersOf: %v", err)
	}
	if len(result.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(result.Entries))
	}
	if result.Failed != 2 {
		t.Fatalf("failed = %d, want 2 (blocked rater and missing rater)", result.Failed)
	}
	e := result.Entries[0]
	if e.RaterID != 1 || e.Name != "Anna" || e.Value != 9 || e.Comment == nil || *e.Comment != "nice" {
		t.Fatalf("entry = %+v", e)
	}
}

func TestRatersOfListErrorSurfaced(t *testing.T) {
	boom := errors.New("db down")
	svc := newTestService(newStubStore(), &stubRatings{err: boom})

	if _, err := svc.RatersOf(context.Background(), 7, false); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped store error", err)
	}
}
