package httpserver

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ratemate/ratemate/internal/rating"
	"github.com/ratemate/ratemate/internal/repository"
)

type submitRatingRequest struct {
	Value   int     `json:"value"`
	Comment *string `json:"comment"`
}

type submitRatingResponse struct {
	TargetID int64   `json:"targetId"`
	Score    float64 `json:"score"`
}

type candidateResponse struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	City  string  `json:"city"`
	Media string  `json:"media"`
	Score float64 `json:"score"`
}

type raterEntryResponse struct {
	RaterID int64   `json:"raterId"`
	Name    string  `json:"name"`
	Value   int     `json:"value"`
	Comment *string `json:"comment,omitempty"`
}

type ratersResponse struct {
	Items  []raterEntryResponse `json:"items"`
	Failed int                  `json:"failed"`
}

// handleCandidate serves the next profile to rate. An exhausted pool is a
// normal outcome and answers 204, not an error.
func (s *Server) handleCandidate(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	requester, err := s.profiles.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
			return
		}
		s.logger.Printf("candidate requester lookup error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to select candidate")
		return
	}

	candidate, err := s.selector.Next(r.Context(), requester.ID, requester.City)
	if err != nil {
		s.logger.Printf("candidate selection error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to select candidate")
		return
	}
	if candidate == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	s.respondJSON(w, http.StatusOK, candidateResponse{
		ID:    candidate.ID,
		Name:  candidate.Name,
		City:  candidate.City,
		Media: candidate.Media,
		Score: candidate.Score,
	})
}

func (s *Server) handleSubmitRating(w http.ResponseWriter, r *http.Request) {
	targetID, err := idParam(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	raterID, err := raterIDHeader(r)
	if err != nil {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}

	var req submitRatingRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	if !s.submitGate.TryAcquire(raterID, time.Duration(s.cfg.SubmitCooldownMS)*time.Millisecond) {
		s.respondError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Rating submissions are throttled, try again shortly")
		return
	}

	score, err := s.aggregator.Submit(r.Context(), targetID, raterID, req.Value, req.Comment)
	if err != nil {
		switch {
		case errors.Is(err, rating.ErrInvalidValue):
			s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "value must be between 1 and 10")
		case errors.Is(err, rating.ErrCommentTooLong):
			s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "comment must not exceed 300 characters")
		case errors.Is(err, rating.ErrSelfRating):
			s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "you cannot rate yourself")
		case errors.Is(err, rating.ErrAlreadyRated):
			s.respondError(w, http.StatusConflict, "CONFLICT", "You have already rated this profile")
		case errors.Is(err, rating.ErrTargetBlocked), errors.Is(err, rating.ErrTargetInactive), errors.Is(err, repository.ErrNotFound):
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
		default:
			s.logger.Printf("submit rating error: %v", err)
			s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to process rating")
		}
		return
	}

	s.respondJSON(w, http.StatusCreated, submitRatingResponse{
		TargetID: targetID,
		Score:    score,
	})
}

func (s *Server) handleRaters(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	if !s.ratersGate.TryAcquire(id, time.Duration(s.cfg.RatersCooldownMS)*time.Millisecond) {
		s.respondError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Raters view is throttled, try again shortly")
		return
	}

	owner, err := s.profiles.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
			return
		}
		s.logger.Printf("raters owner lookup error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch raters")
		return
	}

	result, err := s.profiles.RatersOf(r.Context(), id, owner.VIP)
	if err != nil {
		s.logger.Printf("raters error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch raters")
		return
	}

	resp := ratersResponse{Items: make([]raterEntryResponse, 0, len(result.Entries)), Failed: result.Failed}
	for _, e := range result.Entries {
		resp.Items = append(resp.Items, raterEntryResponse{
			RaterID: e.RaterID,
			Name:    e.Name,
			Value:   e.Value,
			Comment: e.Comment,
		})
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func raterIDHeader(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.Header.Get("X-Rater-Id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid rater id")
	}
	return id, nil
}
