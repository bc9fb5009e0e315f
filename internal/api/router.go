/**
 * @description
 * This file sets up the HTTP router for the ticket-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for the internal admin surface.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// TicketRoutes creates and returns a new router for the ticket service.
func TicketRoutes(h *TicketHandlers, internalAPIKey string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Public ticket endpoints.
	r.Post("/claims", h.ReserveHandler)
	r.Post("/claims/{claimID}/cancel", h.CancelClaimHandler)
	r.Post("/payments/confirm", h.ConfirmPaymentHandler)
	r.Get("/payments/{paymentID}/claim", h.ClaimByPaymentHandler)
	r.Get("/campaigns/{campaignID}/availability", h.AvailabilityHandler)

	// Administrative endpoints behind the internal API key.
	r.Route("/admin", func(r chi.Router) {
		r.Use(InternalAPIKeyMiddleware(internalAPIKey))

		r.Post("/campaigns", h.CreateCampaignHandler)
		r.Post("/rounds/expand", h.ExpandRoundHandler)
		r.Post("/rounds/close", h.CloseRoundHandler)
		r.Post("/rounds/advance", h.AdvanceRoundHandler)
		r.Post("/claims/move", h.MoveClaimsHandler)

		r.Post("/reconcile", h.ReconcileHandler)
		r.Get("/findings", h.ListFindingsHandler)
		r.Post("/findings/{findingID}/resolve", h.ResolveFindingHandler)
		r.Post("/sweep", h.SweepHandler)
	})

	return r
}
