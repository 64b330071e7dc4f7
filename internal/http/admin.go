package httpserver

import (
	"errors"
	"net/http"

	"github.com/ratemate/ratemate/internal/repository"
)

type quotaRequest struct {
	Delta int64 `json:"delta"`
}

// Moderation endpoints require the operator bearer token.

func (s *Server) handleSetBlocked(blocked bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := s.authorizedIDParam(w, r)
		if !ok {
			return
		}
		s.respondFlagResult(w, "set blocked", s.profiles.SetBlocked(r.Context(), id, blocked))
	}
}

func (s *Server) handleSetVIP(vip bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := s.authorizedIDParam(w, r)
		if !ok {
			return
		}
		s.respondFlagResult(w, "set vip", s.profiles.SetVIP(r.Context(), id, vip))
	}
}

func (s *Server) handleGrantQuota(w http.ResponseWriter, r *http.Request) {
	id, ok := s.authorizedIDParam(w, r)
	if !ok {
		return
	}

	var req quotaRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if req.Delta == 0 {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "delta must be non-zero")
		return
	}

	s.respondFlagResult(w, "grant quota", s.profiles.GrantQuota(r.Context(), id, req.Delta))
}

func (s *Server) authorizedIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	if !s.verifyBearer(r.Header.Get("Authorization")) {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return 0, false
	}
	id, err := idParam(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return 0, false
	}
	return id, true
}

func (s *Server) respondFlagResult(w http.ResponseWriter, op string, err error) {
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
			return
		}
		s.logger.Printf("%s error: %v", op, err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update profile")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
