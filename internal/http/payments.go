package httpserver

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ratemate/ratemate/internal/payment"
	"github.com/ratemate/ratemate/internal/repository"
)

type createPaymentRequest struct {
	UserID int64 `json:"userId"`
}

type paymentIntentResponse struct {
	BillID string `json:"billId"`
	PayURL string `json:"payUrl"`
}

type paymentStatusResponse struct {
	BillID string `json:"billId"`
	Status string `json:"status"`
	VIP    bool   `json:"vip"`
}

// handleCreatePayment opens a VIP purchase bill for the user. Repeated calls
// inside the dedup window return the same open bill instead of stacking
// invoices.
func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if req.UserID <= 0 {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "userId must be positive")
		return
	}

	if _, err := s.profiles.Get(r.Context(), req.UserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
			return
		}
		s.logger.Printf("payment user lookup error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create payment")
		return
	}

	intent, err := s.poller.CreateIntent(r.Context(), req.UserID)
	if err != nil {
		s.logger.Printf("create payment intent error: %v", err)
		s.respondError(w, http.StatusBadGateway, "GATEWAY_ERROR", "Payment gateway is unavailable")
		return
	}

	s.respondJSON(w, http.StatusCreated, paymentIntentResponse{
		BillID: intent.BillID,
		PayURL: intent.PayURL,
	})
}

// handlePaymentStatus reports the bill's current status and, on the first
// Paid observation, grants the VIP entitlement exactly once.
func (s *Server) handlePaymentStatus(w http.ResponseWriter, r *http.Request) {
	billID := strings.TrimSpace(chi.URLParam(r, "billId"))
	if billID == "" {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "missing billId parameter")
		return
	}
	userID, err := strconv.ParseInt(r.URL.Query().Get("userId"), 10, 64)
	if err != nil || userID <= 0 {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "userId query parameter is required")
		return
	}

	status := s.poller.Poll(r.Context(), billID)

	vip := false
	if status == payment.StatusPaid {
		p, err := s.profiles.Get(r.Context(), userID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
				return
			}
			s.logger.Printf("payment grant lookup error: %v", err)
			s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to settle payment")
			return
		}
		if !p.VIP {
			if err := s.profiles.SetVIP(r.Context(), userID, true); err != nil {
				s.logger.Printf("payment vip grant error: %v", err)
				s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to settle payment")
				return
			}
		}
		vip = true
	}
	if status.Terminal() {
		s.poller.Settle(userID)
	}

	s.respondJSON(w, http.StatusOK, paymentStatusResponse{
		BillID: billID,
		Status: string(status),
		VIP:    vip,
	})
}
