package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ratemate/ratemate/internal/domain"
	"github.com/ratemate/ratemate/internal/profile"
	"github.com/ratemate/ratemate/internal/repository"
)

const maxRequestBody = 1 << 20 // 1 MiB

type errorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type registerRequest struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	City  string `json:"city"`
	Media string `json:"media"`
}

type profileResponse struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	City          string  `json:"city"`
	Media         string  `json:"media"`
	Score         float64 `json:"score"`
	RatingsCount  int64   `json:"ratingsCount"`
	ExposureQuota int64   `json:"exposureQuota"`
	VIP           bool    `json:"vip"`
}

type summaryResponse struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	City         string  `json:"city"`
	Score        float64 `json:"score"`
	RatingsCount int64   `json:"ratingsCount"`
}

type summaryListResponse struct {
	Items []summaryResponse `json:"items"`
}

type statsResponse struct {
	Profiles     int64 `json:"profiles"`
	TotalRatings int64 `json:"totalRatings"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if req.ID <= 0 {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "id must be positive")
		return
	}

	created, err := s.profiles.Register(r.Context(), req.ID, req.Name, req.City, req.Media)
	if err != nil {
		switch {
		case errors.Is(err, profile.ErrInvalidName):
			s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name must be 1-15 characters without special symbols")
		case errors.Is(err, profile.ErrInvalidCity):
			s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "city must be 1-50 characters without special symbols")
		case errors.Is(err, profile.ErrInvalidMedia):
			s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "media reference is required")
		case errors.Is(err, repository.ErrProfileExists):
			s.respondError(w, http.StatusConflict, "CONFLICT", "Profile already exists")
		default:
			s.logger.Printf("register profile error: %v", err)
			s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to register profile")
		}
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/profiles/%d", created.ID))
	s.respondJSON(w, http.StatusCreated, toProfileResponse(created))
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	p, err := s.profiles.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
			return
		}
		s.logger.Printf("get profile error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch profile")
		return
	}
	s.respondJSON(w, http.StatusOK, toProfileResponse(p))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "name query parameter is required")
		return
	}

	items, err := s.profiles.SearchByName(r.Context(), name)
	if err != nil {
		s.logger.Printf("search profiles error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to search profiles")
		return
	}
	s.respondJSON(w, http.StatusOK, toSummaryList(items))
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	var (
		items []domain.ProfileSummary
		err   error
	)
	switch by := r.URL.Query().Get("by"); by {
	case "", "score":
		items, err = s.profiles.TopByScore(r.Context())
	case "count":
		items, err = s.profiles.TopByCount(r.Context())
	default:
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "by must be score or count")
		return
	}
	if err != nil {
		s.logger.Printf("leaderboard error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch leaderboard")
		return
	}
	s.respondJSON(w, http.StatusOK, toSummaryList(items))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ids, err := s.profiles.Recipients(r.Context())
	if err != nil {
		s.logger.Printf("stats list ids error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch stats")
		return
	}
	total, err := s.profiles.TotalRatings(r.Context())
	if err != nil {
		s.logger.Printf("stats total ratings error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch stats")
		return
	}
	s.respondJSON(w, http.StatusOK, statsResponse{
		Profiles:     int64(len(ids)),
		TotalRatings: total,
	})
}

func toProfileResponse(p domain.Profile) profileResponse {
	return profileResponse{
		ID:            p.ID,
		Name:          p.Name,
		City:          p.City,
		Media:         p.Media,
		Score:         p.Score,
		RatingsCount:  p.RatingsCount,
		ExposureQuota: p.ExposureQuota,
		VIP:           p.VIP,
	}
}

func toSummaryList(items []domain.ProfileSummary) summaryListResponse {
	resp := summaryListResponse{Items: make([]summaryResponse, 0, len(items))}
	for _, it := range items {
		resp.Items = append(resp.Items, summaryResponse{
			ID:           it.ID,
			Name:         it.Name,
			City:         it.City,
			Score:        it.Score,
			RatingsCount: it.RatingsCount,
		})
	}
	return resp
}

func idParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s parameter", name)
	}
	return id, nil
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Printf("failed to encode response: %v", err)
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

func (s *Server) respondDecodeError(w http.ResponseWriter, err error) {
	var syntaxError *json.SyntaxError
	var typeError *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxError):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Malformed JSON payload")
	case errors.As(err, &typeError):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("Invalid value for field %s", typeError.Field))
	case errors.Is(err, io.EOF):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Request body cannot be empty")
	default:
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unable to parse request body")
	}
}
