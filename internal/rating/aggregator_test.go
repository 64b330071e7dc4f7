package rating

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/ratemate/ratemate/internal/domain"
	"github.com/ratemate/ratemate/internal/repository"
)

type stubProfiles struct {
	profiles map[int64]domain.Profile
	err      error
}

func (s *stubProfiles) GetByID(ctx context.Context, id int64) (domain.Profile, error) {
	if s.err != nil {
		return domain.Profile{}, s.err
	}
	p, ok := s.profiles[id]
	if !ok {
		return domain.Profile{}, repository.ErrNotFound
	}
	return p, nil
}

type stubRatings struct {
	calls  int
	errs   []error
	score  float64
	params []repository.RatingSubmitParams
}

func (s *stubRatings) Submit(ctx context.Context, params repository.RatingSubmitParams) (float64, error) {
	s.calls++
	s.params = append(s.params, params)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return 0, err
		}
	}
	return s.score, nil
}

type recordingInvalidator struct {
	invalidated []int64
}

func (r *recordingInvalidator) Invalidate(id int64) {
	r.invalidated = append(r.invalidated, id)
}

func newAggregator(profiles *stubProfiles, ratings *stubRatings) (*Aggregator, *recordingInvalidator) {
	inv := &recordingInvalidator{}
	return New(profiles, ratings, inv, log.New(io.Discard, "", 0)), inv
}

func activeTarget() *stubProfiles {
	return &stubProfiles{profiles: map[int64]domain.Profile{
		1: {ID: 1, Name: "Target", ExposureQuota: 3},
	}}
}

func TestSubmit_Success(t *testing.T) {
	ratings := &stubRatings{score: 8.0}
	agg, inv := newAggregator(activeTarget(), ratings)

	score, err := agg.Submit(context.Background(), 1, 2, 8, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if score != 8.0 {
		t.Fatalf("score = %v, want 8.0", score)
	}
	if len(inv.invalidated) != 2 || inv.invalidated[0] != 1 || inv.invalidated[1] != 2 {
		t.Fatalf("invalidated = %v, want target then rater", inv.invalidated)
	}
}

func TestSubmit_PolicyViolations(t *testing.T) {
	long := strings.Repeat("x", 301)
	blockedAndInactive := &stubProfiles{profiles: map[int64]domain.Profile{
		1: {ID: 1, ExposureQuota: 3},
		5: {ID: 5, Blocked: true, ExposureQuota: 3},
		6: {ID: 6, ExposureQuota: 0},
	}}

	tests := []struct {
		name    string
		target  int64
		rater   int64
		value   int
		comment *string
		wantErr error
	}{
		{"value too low", 1, 2, 0, nil, ErrInvalidValue},
		{"value too high", 1, 2, 11, nil, ErrInvalidValue},
		{"comment too long", 1, 2, 5, &long, ErrCommentTooLong},
		{"self rating", 1, 1, 5, nil, ErrSelfRating},
		{"blocked target", 5, 2, 5, nil, ErrTargetBlocked},
		{"inactive target", 6, 2, 5, nil, ErrTargetInactive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ratings := &stubRatings{}
			agg, inv := newAggregator(blockedAndInactive, ratings)

			_, err := agg.Submit(context.Background(), tt.target, tt.rater, tt.value, tt.comment)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			// Rejections are no-ops: nothing written, nothing invalidated.
			if ratings.calls != 0 {
				t.Fatalf("store written on policy violation")
			}
			if len(inv.invalidated) != 0 {
				t.Fatalf("cache invalidated on policy violation")
			}
		})
	}
}

func TestSubmit_UnknownTarget(t *testing.T) {
	agg, _ := newAggregator(&stubProfiles{profiles: map[int64]domain.Profile{}}, &stubRatings{})

	_, err := agg.Submit(context.Background(), 1, 2, 5, nil)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSubmit_DuplicateMapsToAlreadyRated(t *testing.T) {
	ratings := &stubRatings{errs: []error{repository.ErrDuplicateRating}}
	agg, inv := newAggregator(activeTarget(), ratings)

	_, err := agg.Submit(context.Background(), 1, 2, 5, nil)
	if !errors.Is(err, ErrAlreadyRated) {
		t.Fatalf("err = %v, want ErrAlreadyRated", err)
	}
	if ratings.calls != 1 {
		t.Fatalf("duplicate must not be retried, calls = %d", ratings.calls)
	}
	if len(inv.invalidated) != 0 {
		t.Fatalf("no-op submit must not invalidate")
	}
}

func TestSubmit_TransientErrorRetriedOnce(t *testing.T) {
	ratings := &stubRatings{errs: []error{errors.New("connection reset"), nil}, score: 6.5}
	agg, _ := newAggregator(activeTarget(), ratings)

	score, err := agg.Submit(context.Background(), 1, 2, 6, nil)
	if err != nil {
		t.Fatalf("retry should mask one transient failure, got %v", err)
	}
	if score != 6.5 || ratings.calls != 2 {
		t.Fatalf("score = %v calls = %d, want 6.5 after 2 calls", score, ratings.calls)
	}
}

func TestSubmit_PersistentErrorSurfaced(t *testing.T) {
	boom := errors.New("store down")
	ratings := &stubRatings{errs: []error{boom, boom}}
	agg, inv := newAggregator(activeTarget(), ratings)

	_, err := agg.Submit(context.Background(), 1, 2, 6, nil)
	if err == nil || !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped store error", err)
	}
	if ratings.calls != 2 {
		t.Fatalf("calls = %d, want exactly 2 (bounded retry)", ratings.calls)
	}
	if len(inv.invalidated) != 0 {
		t.Fatalf("failed submit must not invalidate")
	}
}

func TestSubmit_DuplicateOnRetryStillAlreadyRated(t *testing.T) {
	// The first attempt lands but its response is lost; the retry reports a
	// duplicate, which the caller must see as ErrAlreadyRated, not a failure.
	ratings := &stubRatings{errs: []error{errors.New("timeout"), repository.ErrDuplicateRating}}
	agg, _ := newAggregator(activeTarget(), ratings)

	_, err := agg.Submit(context.Background(), 1, 2, 6, nil)
	if !errors.Is(err, ErrAlreadyRated) {
		t.Fatalf("err = %v, want ErrAlreadyRated", err)
	}
}
