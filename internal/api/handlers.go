/**
 * @description
 * This file contains the HTTP handlers for the ticket-service's public API
 * endpoints: reserving tickets, confirming payments, cancelling holds, and
 * read-only claim/availability lookups. Handlers parse incoming requests, call
 * the application service, and map domain errors onto HTTP status codes.
 *
 * @dependencies
 * - encoding/json, errors, log, net/http, strconv: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - internal/app, internal/domain, internal/store: Service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rifaops/ticket-service/internal/app"
	"github.com/rifaops/ticket-service/internal/domain"
	"github.com/rifaops/ticket-service/internal/store"
)

// TicketHandlers holds the application service that handlers will use.
type TicketHandlers struct {
	service *app.Service
}

// NewTicketHandlers creates a new instance of TicketHandlers.
func NewTicketHandlers(service *app.Service) *TicketHandlers {
	return &TicketHandlers{service: service}
}

// ReserveHandler handles requests to reserve ticket numbers under a payment hold.
func (h *TicketHandlers) ReserveHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.ReserveTicketsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=reserve outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if req.Quantity <= 0 {
		h.writeError(w, http.StatusBadRequest, "Quantity must be a positive integer")
		return
	}
	if strings.TrimSpace(req.BuyerRef) == "" {
		h.writeError(w, http.StatusBadRequest, "Buyer reference is required")
		return
	}

	result, err := h.service.Reserve(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, "reserve", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, result)
}

// ConfirmPaymentHandler handles the inbound payment-confirmation signal. It is
// idempotent: re-confirming a paid claim returns the same success response.
func (h *TicketHandlers) ConfirmPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.ConfirmPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	claim, err := h.service.ConfirmPayment(r.Context(), req.PaymentID)
	if err != nil {
		h.writeServiceError(w, "confirm_payment", err)
		return
	}

	h.writeJSON(w, http.StatusOK, claim)
}

// CancelClaimHandler releases a pending claim's tickets. Cancelling an already
// expired claim succeeds without effect.
func (h *TicketHandlers) CancelClaimHandler(w http.ResponseWriter, r *http.Request) {
	claimID, err := uuid.Parse(chi.URLParam(r, "claimID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid claim id")
		return
	}

	if err := h.service.Cancel(r.Context(), claimID); err != nil {
		h.writeServiceError(w, "cancel_claim", err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// ClaimByPaymentHandler returns the claim and ticket numbers linked to an
// external payment id, for the support surface.
func (h *TicketHandlers) ClaimByPaymentHandler(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentID")

	claim, numbers, err := h.service.ClaimByPaymentID(r.Context(), paymentID)
	if err != nil {
		h.writeServiceError(w, "claim_by_payment", err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"claim":   claim,
		"numbers": numbers,
	})
}

// AvailabilityHandler reports the number of tickets still available in a round.
// Without a round query parameter it uses the campaign's current round.
func (h *TicketHandlers) AvailabilityHandler(w http.ResponseWriter, r *http.Request) {
	campaignID, err := strconv.ParseInt(chi.URLParam(r, "campaignID"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid campaign id")
		return
	}
	roundNumber := 0
	if raw := r.URL.Query().Get("round"); raw != "" {
		roundNumber, err = strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid round number")
			return
		}
	}

	available, err := h.service.Availability(r.Context(), campaignID, roundNumber)
	if err != nil {
		h.writeServiceError(w, "availability", err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]int{"available": available})
}

// writeServiceError maps domain errors onto HTTP responses. Anything unmapped
// is logged and reported as a 500 without leaking internals.
func (h *TicketHandlers) writeServiceError(w http.ResponseWriter, endpoint string, err error) {
	switch {
	case errors.Is(err, store.ErrCampaignNotFound),
		errors.Is(err, store.ErrRoundNotFound),
		errors.Is(err, store.ErrClaimNotFound),
		errors.Is(err, store.ErrFindingNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInsufficientInventory):
		h.writeError(w, http.StatusConflict, "Not enough tickets available in the requested round")
	case errors.Is(err, store.ErrDuplicatePayment):
		h.writeError(w, http.StatusConflict, "Payment id is already linked to a claim")
	case errors.Is(err, store.ErrRoundClosed):
		h.writeError(w, http.StatusConflict, "Round is closed for new reservations")
	case errors.Is(err, store.ErrInvalidTransition):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrCampaignInactive):
		h.writeError(w, http.StatusUnprocessableEntity, "Campaign is not active")
	case errors.Is(err, app.ErrRateLimited):
		h.writeError(w, http.StatusTooManyRequests, "Too many reservation attempts; slow down")
	default:
		log.Printf("level=error component=api endpoint=%s msg=\"unhandled service error\" err=%v", endpoint, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// writeJSON is a helper for writing JSON responses.
func (h *TicketHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *TicketHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
