/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for
 * all data access operations required by the ticket-service. By defining an
 * interface, we decouple the allocation and reconciliation logic from the
 * specific database implementation (PostgreSQL), making the code more modular
 * and easier to test.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For claim and finding identifiers.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rifaops/ticket-service/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
// Every multi-row mutation (claim creation with ticket assignment, claim
// cancellation, claim moves) is a single transaction inside the implementation;
// callers never observe partially applied state.
type Repository interface {
	// Campaign and round methods
	CreateCampaign(ctx context.Context, campaign *domain.Campaign) error
	FindCampaignByID(ctx context.Context, campaignID int64) (*domain.Campaign, error)
	AdvanceCampaignRound(ctx context.Context, campaignID int64, toRound int) error
	CreateRound(ctx context.Context, campaignID int64, roundNumber, capacity int) error
	FindRound(ctx context.Context, campaignID int64, roundNumber int) (*domain.Round, error)
	CloseRound(ctx context.Context, campaignID int64, roundNumber int) error

	// Ticket inventory methods
	GenerateTickets(ctx context.Context, campaignID int64, roundNumber, firstNumber, lastNumber int) (int64, error)
	ListAvailableTicketNumbers(ctx context.Context, campaignID int64, roundNumber, limit int) ([]int, error)
	CountAvailableTickets(ctx context.Context, campaignID int64, roundNumber int) (int, error)
	ListTicketNumbersByClaim(ctx context.Context, claimID uuid.UUID) ([]int, error)
	CountAssignedTickets(ctx context.Context, claimID uuid.UUID) (int, error)

	// Claim methods
	CreateClaimWithTickets(ctx context.Context, claim *domain.Claim) ([]int, error)
	FindClaimByID(ctx context.Context, claimID uuid.UUID) (*domain.Claim, error)
	FindClaimByPaymentID(ctx context.Context, paymentID string) (*domain.Claim, error)
	FindClaimIDsByPaymentID(ctx context.Context, paymentID string) ([]uuid.UUID, error)
	MarkClaimPaid(ctx context.Context, claimID uuid.UUID) error
	CancelClaimAtomic(ctx context.Context, claimID uuid.UUID) (int, error)
	ListExpiredPendingClaims(ctx context.Context, cutoff time.Time, limit int) ([]domain.Claim, error)
	MoveClaimTickets(ctx context.Context, claimID uuid.UUID, toRound int, strategy domain.RenumberStrategy, numberShift int) ([]int, error)

	// Reconciliation finding methods
	RecordFinding(ctx context.Context, finding *domain.ReconciliationFinding) (bool, error)
	ListFindings(ctx context.Context, opts domain.FindingListOptions) ([]domain.ReconciliationFinding, error)
	ResolveFinding(ctx context.Context, findingID uuid.UUID) (bool, error)
	ResolveFindingByPayment(ctx context.Context, paymentID string, finding domain.FindingType) (bool, error)
}
