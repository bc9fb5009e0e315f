/**
 * @description
 * This file defines the core domain models for the ticket-service: campaigns,
 * rounds, numbered tickets, and payment claims. These structs represent the
 * entities and data transfer objects (DTOs) used throughout the service's
 * business logic, database interactions, and API layers.
 *
 * @notes
 * - Amounts are stored as `int64` in the smallest currency unit to avoid
 *   floating-point inaccuracies with money.
 * - A ticket is identified by the triple (campaign_id, round_number, number);
 *   the database enforces its uniqueness.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// TicketStatus enumerates the lifecycle states of a numbered ticket.
type TicketStatus string

const (
	TicketAvailable TicketStatus = "available"
	TicketAssigned  TicketStatus = "assigned"
)

// ClaimStatus enumerates the lifecycle states of a payment claim.
// pending -> paid on payment confirmation; pending -> expired when the hold
// deadline elapses without payment. paid and expired are terminal except for
// explicit administrative reversal.
type ClaimStatus string

const (
	ClaimPending ClaimStatus = "pending"
	ClaimPaid    ClaimStatus = "paid"
	ClaimExpired ClaimStatus = "expired"
)

// Campaign is a sellable ticket-based product. Its current round pointer is
// only ever advanced by the round transition operations.
type Campaign struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	UnitPrice    int64     `json:"unit_price"` // smallest currency unit
	Active       bool      `json:"active"`
	CurrentRound int       `json:"current_round"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Round is a numbered generation of ticket inventory within a campaign.
type Round struct {
	CampaignID  int64     `json:"campaign_id"`
	RoundNumber int       `json:"round_number"`
	Capacity    int       `json:"capacity"`
	Closed      bool      `json:"closed"`
	CreatedAt   time.Time `json:"created_at"`
}

// Ticket is one numbered, sellable slot within a round. AssignedClaimID is set
// iff the status is assigned.
type Ticket struct {
	CampaignID      int64        `json:"campaign_id"`
	RoundNumber     int          `json:"round_number"`
	Number          int          `json:"number"`
	Status          TicketStatus `json:"status"`
	AssignedClaimID *uuid.UUID   `json:"assigned_claim_id,omitempty"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// Claim is a buyer's request for N tickets and its payment outcome. While a
// claim is paid, the count of tickets assigned to it must equal TotalQty
// exactly; that equality is the central correctness property of the engine.
type Claim struct {
	ID          uuid.UUID   `json:"id"`
	CampaignID  int64       `json:"campaign_id"`
	RoundNumber int         `json:"round_number"`
	BuyerRef    string      `json:"buyer_ref"`
	TotalQty    int         `json:"total_qty"`
	Status      ClaimStatus `json:"status"`
	PaymentID   *string     `json:"payment_id,omitempty"`
	ClaimedAt   time.Time   `json:"claimed_at"`
	ExpiresAt   time.Time   `json:"expires_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// RenumberStrategy selects how ticket numbers are remapped when a claim is
// moved between rounds.
type RenumberStrategy string

const (
	// RenumberSameNumber keeps the claim's original numbers when they are free
	// in the destination round.
	RenumberSameNumber RenumberStrategy = "same_number"
	// RenumberOffset shifts every original number by a fixed offset.
	RenumberOffset RenumberStrategy = "offset"
	// RenumberNextAvailable takes the lowest available numbers in the
	// destination round, ascending.
	RenumberNextAvailable RenumberStrategy = "next_available"
)

// ReserveTicketsRequest is the DTO for incoming reservation API requests.
type ReserveTicketsRequest struct {
	CampaignID  int64  `json:"campaign_id"`
	RoundNumber int    `json:"round_number"`
	Quantity    int    `json:"quantity"`
	BuyerRef    string `json:"buyer_ref"`
	PaymentID   string `json:"payment_id"`
	HoldMinutes int    `json:"hold_minutes,omitempty"`
}

// ReserveTicketsResult is returned after a successful reservation.
type ReserveTicketsResult struct {
	Claim   *Claim `json:"claim"`
	Numbers []int  `json:"numbers"`
}

// ConfirmPaymentRequest is the DTO for the inbound payment-confirmation signal.
type ConfirmPaymentRequest struct {
	PaymentID string `json:"payment_id"`
}

// CreateCampaignRequest is the DTO for the administrative campaign creation endpoint.
type CreateCampaignRequest struct {
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Capacity  int    `json:"capacity"`
}

// ExpandRoundRequest is the DTO for the administrative capacity expansion endpoint.
type ExpandRoundRequest struct {
	CampaignID  int64 `json:"campaign_id"`
	RoundNumber int   `json:"round_number"`
	FirstNumber int   `json:"first_number"`
	LastNumber  int   `json:"last_number"`
}

// CloseRoundRequest is the DTO for the administrative round close endpoint.
type CloseRoundRequest struct {
	CampaignID  int64 `json:"campaign_id"`
	RoundNumber int   `json:"round_number"`
}

// MoveClaimsRequest is the DTO for the administrative claim move endpoint.
type MoveClaimsRequest struct {
	ClaimIDs    []uuid.UUID      `json:"claim_ids"`
	CampaignID  int64            `json:"campaign_id"`
	FromRound   int              `json:"from_round"`
	ToRound     int              `json:"to_round"`
	Strategy    RenumberStrategy `json:"strategy"`
	NumberShift int              `json:"number_shift,omitempty"` // used by the offset strategy
}

// MoveClaimsResult summarizes a bulk claim move: moves are all-or-nothing per
// claim, so some claims may succeed while others are left untouched.
type MoveClaimsResult struct {
	Moved  []MovedClaim      `json:"moved"`
	Failed []FailedClaimMove `json:"failed"`
}

// MovedClaim records the destination numbers a claim received.
type MovedClaim struct {
	ClaimID uuid.UUID `json:"claim_id"`
	Numbers []int     `json:"numbers"`
}

// FailedClaimMove records a claim whose move was rolled back and why.
type FailedClaimMove struct {
	ClaimID uuid.UUID `json:"claim_id"`
	Error   string    `json:"error"`
}

// PaymentStatusEvent is the inbound message payload pushed by the checkout
// collaborator when the provider settles a payment.
type PaymentStatusEvent struct {
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
}

// ClaimPaidEvent is the message payload published when a claim transitions to paid.
type ClaimPaidEvent struct {
	ClaimID     uuid.UUID `json:"claim_id"`
	CampaignID  int64     `json:"campaign_id"`
	RoundNumber int       `json:"round_number"`
	BuyerRef    string    `json:"buyer_ref"`
	Quantity    int       `json:"quantity"`
	PaymentID   string    `json:"payment_id"`
	Timestamp   time.Time `json:"timestamp"`
}

// ClaimExpiredEvent is the message payload published when a hold expires and
// its tickets return to inventory.
type ClaimExpiredEvent struct {
	ClaimID         uuid.UUID `json:"claim_id"`
	CampaignID      int64     `json:"campaign_id"`
	RoundNumber     int       `json:"round_number"`
	ReleasedTickets int       `json:"released_tickets"`
	Timestamp       time.Time `json:"timestamp"`
}
