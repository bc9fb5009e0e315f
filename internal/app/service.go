/**
 * @description
 * This file contains the core application service for the ticket-service. The
 * Service is the single entry point that binds tickets to payment claims: it
 * owns the reserve / confirm / cancel operations and enforces that all ticket
 * and claim mutation flows through the repository's transactional primitives.
 *
 * @dependencies
 * - context, errors, log, time: Standard Go libraries.
 * - github.com/google/uuid: Claim identifiers.
 * - internal/domain, internal/store, internal/metrics: Models, persistence, telemetry.
 * - pkg/rabbitmq: Claim lifecycle event publishing.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rifaops/ticket-service/internal/domain"
	"github.com/rifaops/ticket-service/internal/metrics"
	"github.com/rifaops/ticket-service/internal/store"
	"github.com/rifaops/ticket-service/pkg/paymentclient"
	"github.com/rifaops/ticket-service/pkg/rabbitmq"
)

const (
	eventsExchange         = "ticket.events"
	routingKeyClaimPaid    = "ticket.claim.paid"
	routingKeyClaimExpired = "ticket.claim.expired"
	routingKeyFinding      = "ticket.reconciliation.finding"
	defaultHoldDuration    = 30 * time.Minute
	maxHoldDuration        = 24 * time.Hour
	expirySweepBatchSize   = 200
	publishTimeout         = 5 * time.Second
	reserveRateLimitScope  = "ticket_reserve"
)

var (
	ErrCampaignInactive = errors.New("campaign is not active")
	ErrRateLimited      = errors.New("reservation rate limit exceeded")
)

// RateLimiter is the optional distributed limiter applied to reservations.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// PaymentLedger is the read-only view of the external payment provider used by
// the reconciler. Implemented by pkg/paymentclient.
type PaymentLedger interface {
	SearchApprovedPayments(ctx context.Context, from, to time.Time) ([]paymentclient.PaymentRecord, error)
	GetPayment(ctx context.Context, paymentID string) (*paymentclient.PaymentRecord, error)
}

// Service orchestrates ticket allocation, claim lifecycle, round transitions,
// and reconciliation.
type Service struct {
	repo         store.Repository
	ledger       PaymentLedger
	publisher    rabbitmq.Publisher
	rateLimiter  RateLimiter
	holdDuration time.Duration
	reserveLimit int
	autoRepair   bool
}

// NewService creates the application service with its dependencies. publisher
// may be a fallback no-op when the broker is unavailable; ledger may be nil
// when reconciliation is disabled.
func NewService(repo store.Repository, ledger PaymentLedger, publisher rabbitmq.Publisher, holdDuration time.Duration, autoRepair bool) *Service {
	if holdDuration <= 0 {
		holdDuration = defaultHoldDuration
	}
	if publisher == nil {
		publisher = &rabbitmq.EventProducerFallback{}
	}
	return &Service{
		repo:         repo,
		ledger:       ledger,
		publisher:    publisher,
		holdDuration: holdDuration,
		autoRepair:   autoRepair,
	}
}

// SetReserveRateLimiter installs a distributed rate limiter for reservations.
func (s *Service) SetReserveRateLimiter(limiter RateLimiter, perMinute int) {
	s.rateLimiter = limiter
	s.reserveLimit = perMinute
}

// Reserve creates a pending claim and atomically assigns it the lowest
// available ticket numbers of the requested round. On any failure nothing is
// persisted: no claim, no ticket changes.
func (s *Service) Reserve(ctx context.Context, req domain.ReserveTicketsRequest) (*domain.ReserveTicketsResult, error) {
	start := time.Now()
	status := "error"
	defer func() {
		metrics.RecordReserveDuration(status, time.Since(start).Seconds())
	}()

	if req.Quantity <= 0 {
		status = "invalid"
		return nil, fmt.Errorf("quantity must be positive, got %d", req.Quantity)
	}
	buyerRef := strings.TrimSpace(req.BuyerRef)
	if buyerRef == "" {
		status = "invalid"
		return nil, errors.New("buyer reference is required")
	}

	if s.rateLimiter != nil && s.reserveLimit > 0 {
		count, _, err := s.rateLimiter.ConsumeRateLimit(ctx, reserveRateLimitScope, buyerRef, s.reserveLimit, time.Minute)
		if err != nil {
			// Limiter outage must not block sales; log and continue.
			log.Printf("level=warn component=service flow=reserve msg=\"rate limiter unavailable; allowing request\" buyer_ref=%s err=%v", buyerRef, err)
		} else if count > s.reserveLimit {
			status = "rate_limited"
			return nil, ErrRateLimited
		}
	}

	campaign, err := s.repo.FindCampaignByID(ctx, req.CampaignID)
	if err != nil {
		status = "not_found"
		return nil, err
	}
	if !campaign.Active {
		status = "inactive"
		return nil, ErrCampaignInactive
	}

	roundNumber := req.RoundNumber
	if roundNumber <= 0 {
		roundNumber = campaign.CurrentRound
	}

	hold := s.holdDuration
	if req.HoldMinutes > 0 {
		hold = time.Duration(req.HoldMinutes) * time.Minute
		if hold > maxHoldDuration {
			hold = maxHoldDuration
		}
	}

	claim := &domain.Claim{
		CampaignID:  campaign.ID,
		RoundNumber: roundNumber,
		BuyerRef:    buyerRef,
		TotalQty:    req.Quantity,
		ExpiresAt:   time.Now().UTC().Add(hold),
	}
	if paymentID := strings.TrimSpace(req.PaymentID); paymentID != "" {
		claim.PaymentID = &paymentID
	}

	numbers, err := s.repo.CreateClaimWithTickets(ctx, claim)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrInsufficientInventory):
			status = "insufficient_inventory"
		case errors.Is(err, store.ErrDuplicatePayment):
			status = "duplicate_payment"
		case errors.Is(err, store.ErrRoundClosed), errors.Is(err, store.ErrRoundNotFound):
			status = "round_unavailable"
		}
		return nil, err
	}

	status = "success"
	log.Printf("level=info component=service flow=reserve msg=\"tickets reserved\" claim_id=%s campaign_id=%d round=%d qty=%d expires_at=%s",
		claim.ID, claim.CampaignID, claim.RoundNumber, claim.TotalQty, claim.ExpiresAt.Format(time.RFC3339))

	return &domain.ReserveTicketsResult{Claim: claim, Numbers: numbers}, nil
}

// ConfirmPayment transitions the claim holding the given external payment id
// from pending to paid. Tickets were already assigned at reservation time, so
// there are no ticket-side effects. A confirmation with no matching claim
// returns store.ErrClaimNotFound: that is the orphan-payment case, picked up
// by the next reconciliation pass rather than silently dropped.
func (s *Service) ConfirmPayment(ctx context.Context, paymentID string) (*domain.Claim, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, errors.New("payment id is required")
	}

	claim, err := s.repo.FindClaimByPaymentID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, store.ErrClaimNotFound) {
			log.Printf("level=warn component=service flow=confirm_payment msg=\"no claim for payment; orphan candidate\" payment_id=%s", paymentID)
		}
		return nil, err
	}

	alreadyPaid := claim.Status == domain.ClaimPaid

	if err := s.repo.MarkClaimPaid(ctx, claim.ID); err != nil {
		return nil, err
	}
	claim.Status = domain.ClaimPaid

	if !alreadyPaid {
		s.publishEvent(routingKeyClaimPaid, domain.ClaimPaidEvent{
			ClaimID:     claim.ID,
			CampaignID:  claim.CampaignID,
			RoundNumber: claim.RoundNumber,
			BuyerRef:    claim.BuyerRef,
			Quantity:    claim.TotalQty,
			PaymentID:   paymentID,
			Timestamp:   time.Now().UTC(),
		})
		log.Printf("level=info component=service flow=confirm_payment msg=\"claim paid\" claim_id=%s payment_id=%s qty=%d", claim.ID, paymentID, claim.TotalQty)
	}

	return claim, nil
}

// Cancel releases a pending claim's tickets and marks it expired. Cancelling
// an already expired claim is a no-op, never an error.
func (s *Service) Cancel(ctx context.Context, claimID uuid.UUID) error {
	claim, err := s.repo.FindClaimByID(ctx, claimID)
	if err != nil {
		return err
	}

	released, err := s.repo.CancelClaimAtomic(ctx, claimID)
	if err != nil {
		return err
	}
	if released == 0 {
		return nil
	}

	s.publishEvent(routingKeyClaimExpired, domain.ClaimExpiredEvent{
		ClaimID:         claimID,
		CampaignID:      claim.CampaignID,
		RoundNumber:     claim.RoundNumber,
		ReleasedTickets: released,
		Timestamp:       time.Now().UTC(),
	})
	log.Printf("level=info component=service flow=cancel msg=\"claim cancelled and tickets released\" claim_id=%s released=%d", claimID, released)
	return nil
}

// ClaimByPaymentID is a read-only lookup for the support surface.
func (s *Service) ClaimByPaymentID(ctx context.Context, paymentID string) (*domain.Claim, []int, error) {
	claim, err := s.repo.FindClaimByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, nil, err
	}
	numbers, err := s.repo.ListTicketNumbersByClaim(ctx, claim.ID)
	if err != nil {
		return nil, nil, err
	}
	return claim, numbers, nil
}

// Availability reports how many tickets remain available in a round.
func (s *Service) Availability(ctx context.Context, campaignID int64, roundNumber int) (int, error) {
	if roundNumber <= 0 {
		campaign, err := s.repo.FindCampaignByID(ctx, campaignID)
		if err != nil {
			return 0, err
		}
		roundNumber = campaign.CurrentRound
	}
	return s.repo.CountAvailableTickets(ctx, campaignID, roundNumber)
}

// ListFindings exposes recorded reconciliation discrepancies to the admin surface.
func (s *Service) ListFindings(ctx context.Context, opts domain.FindingListOptions) ([]domain.ReconciliationFinding, error) {
	return s.repo.ListFindings(ctx, opts)
}

// ResolveFinding marks a recorded discrepancy as handled by an operator.
func (s *Service) ResolveFinding(ctx context.Context, findingID uuid.UUID) (bool, error) {
	return s.repo.ResolveFinding(ctx, findingID)
}

func (s *Service) publishEvent(routingKey string, body interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(ctx, eventsExchange, routingKey, body); err != nil {
		log.Printf("level=warn component=service msg=\"event publish failed\" routing_key=%s err=%v", routingKey, err)
	}
}
