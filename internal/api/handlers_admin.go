/**
 * @description
 * Administrative handlers: campaign and round management, bulk claim moves,
 * on-demand reconciliation, and the findings report. All of these sit behind
 * the internal API key middleware; they are operator tooling, not a public
 * surface.
 */

package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rifaops/ticket-service/internal/domain"
)

// CreateCampaignHandler registers a campaign and its initial round inventory.
func (h *TicketHandlers) CreateCampaignHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "Campaign name is required")
		return
	}

	campaign, err := h.service.CreateCampaign(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, "create_campaign", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, campaign)
}

// ExpandRoundHandler generates additional ticket numbers for a round.
func (h *TicketHandlers) ExpandRoundHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.ExpandRoundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if req.FirstNumber <= 0 || req.LastNumber < req.FirstNumber {
		h.writeError(w, http.StatusBadRequest, "Number range must be positive and ascending")
		return
	}

	created, err := h.service.ExpandCapacity(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, "expand_round", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int64{"created": created})
}

// CloseRoundHandler marks a round ineligible for new reservations.
func (h *TicketHandlers) CloseRoundHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CloseRoundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	if err := h.service.CloseRound(r.Context(), req.CampaignID, req.RoundNumber); err != nil {
		h.writeServiceError(w, "close_round", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

type advanceRoundRequest struct {
	CampaignID int64 `json:"campaign_id"`
	ToRound    int   `json:"to_round"`
	Capacity   int   `json:"capacity"`
}

// AdvanceRoundHandler creates the next round and moves the campaign pointer.
func (h *TicketHandlers) AdvanceRoundHandler(w http.ResponseWriter, r *http.Request) {
	var req advanceRoundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	if err := h.service.AdvanceRound(r.Context(), req.CampaignID, req.ToRound, req.Capacity); err != nil {
		h.writeServiceError(w, "advance_round", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"status": "advanced", "current_round": req.ToRound})
}

// MoveClaimsHandler re-homes claims between rounds. Partial success is a valid
// outcome and reported per claim.
func (h *TicketHandlers) MoveClaimsHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.MoveClaimsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	switch req.Strategy {
	case domain.RenumberSameNumber, domain.RenumberOffset, domain.RenumberNextAvailable:
	default:
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown renumber strategy %q", req.Strategy))
		return
	}

	result, err := h.service.MoveClaims(r.Context(), req)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// ReconcileHandler runs an on-demand reconciliation pass. The window defaults
// to the last 24 hours and is overridable with RFC3339 from/to query params.
func (h *TicketHandlers) ReconcileHandler(w http.ResponseWriter, r *http.Request) {
	to := time.Now().UTC()
	from := to.Add(-24 * time.Hour)

	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid 'from' timestamp; expected RFC3339")
			return
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid 'to' timestamp; expected RFC3339")
			return
		}
		to = parsed
	}
	if !from.Before(to) {
		h.writeError(w, http.StatusBadRequest, "'from' must be before 'to'")
		return
	}

	report, err := h.service.Reconcile(r.Context(), from, to)
	if err != nil {
		log.Printf("level=error component=api endpoint=reconcile msg=\"pass failed\" err=%v", err)
		h.writeError(w, http.StatusBadGateway, "Reconciliation pass failed")
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// ListFindingsHandler exposes recorded reconciliation discrepancies.
func (h *TicketHandlers) ListFindingsHandler(w http.ResponseWriter, r *http.Request) {
	opts := domain.FindingListOptions{
		Finding:    domain.FindingType(r.URL.Query().Get("finding")),
		Unresolved: r.URL.Query().Get("unresolved") == "true",
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		opts.Limit = limit
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid offset")
			return
		}
		opts.Offset = offset
	}

	findings, err := h.service.ListFindings(r.Context(), opts)
	if err != nil {
		h.writeServiceError(w, "list_findings", err)
		return
	}
	if findings == nil {
		findings = []domain.ReconciliationFinding{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"findings": findings})
}

// ResolveFindingHandler marks a finding as handled by an operator.
func (h *TicketHandlers) ResolveFindingHandler(w http.ResponseWriter, r *http.Request) {
	findingID, err := uuid.Parse(chi.URLParam(r, "findingID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid finding id")
		return
	}

	resolved, err := h.service.ResolveFinding(r.Context(), findingID)
	if err != nil {
		h.writeServiceError(w, "resolve_finding", err)
		return
	}
	if !resolved {
		h.writeError(w, http.StatusNotFound, "Finding not found or already resolved")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}

// SweepHandler triggers an immediate expiry sweep, useful in incident response
// when the scheduled sweeps have fallen behind.
func (h *TicketHandlers) SweepHandler(w http.ResponseWriter, r *http.Request) {
	swept, err := h.service.SweepExpiredClaims(r.Context())
	if err != nil {
		h.writeServiceError(w, "sweep", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"swept": swept})
}
