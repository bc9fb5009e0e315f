package domain

import (
	"time"

	"github.com/google/uuid"
)

// FindingType classifies a discrepancy between the external payment ledger and
// the internal claim/ticket state.
type FindingType string

const (
	// FindingOrphanedPayment: money received with no claim or tickets issued.
	FindingOrphanedPayment FindingType = "orphaned_payment"
	// FindingLatePayment: payment approved after the hold was cancelled and the
	// tickets released, possibly resold. Requires manual adjudication.
	FindingLatePayment FindingType = "late_payment_cancelled_hold"
	// FindingPartialFulfillment: a paid claim whose assigned ticket count does
	// not equal its requested quantity.
	FindingPartialFulfillment FindingType = "partial_fulfillment"
	// FindingDuplicatePaymentID: one external payment id linked to more than one
	// claim. Never auto-resolved.
	FindingDuplicatePaymentID FindingType = "duplicate_payment_id"
)

// ReconciliationFinding is one persisted discrepancy. Findings are keyed by
// (payment_id, finding) so repeated passes over the same window do not
// duplicate them.
type ReconciliationFinding struct {
	ID        uuid.UUID   `json:"id"`
	PaymentID string      `json:"payment_id"`
	Finding   FindingType `json:"finding"`
	ClaimID   *uuid.UUID  `json:"claim_id,omitempty"`
	Amount    int64       `json:"amount"`
	Detail    string      `json:"detail"`
	Resolved  bool        `json:"resolved"`
	CreatedAt time.Time   `json:"created_at"`
}

// FindingListOptions controls pagination and filtering of the findings view.
type FindingListOptions struct {
	Limit      int
	Offset     int
	Finding    FindingType
	Unresolved bool
}

// ReconcileReport summarizes one reconciliation pass over a payment window.
type ReconcileReport struct {
	WindowFrom          time.Time `json:"window_from"`
	WindowTo            time.Time `json:"window_to"`
	Processed           int       `json:"processed"`
	OK                  int       `json:"ok"`
	Confirmed           int       `json:"confirmed"`
	Orphans             int       `json:"orphans"`
	LatePayments        int       `json:"late_payments"`
	PartialFulfillments int       `json:"partial_fulfillments"`
	IntegrityViolations int       `json:"integrity_violations"`
	Repaired            int       `json:"repaired"`
	NewFindings         int       `json:"new_findings"`
}

// FindingRecordedEvent is the message payload published when a new
// discrepancy is recorded, so operator tooling can alert on it.
type FindingRecordedEvent struct {
	FindingID uuid.UUID   `json:"finding_id"`
	PaymentID string      `json:"payment_id"`
	Finding   FindingType `json:"finding"`
	Amount    int64       `json:"amount"`
	Timestamp time.Time   `json:"timestamp"`
}
