/**
 * @description
 * The reconciliation pass. It treats the external payment provider's ledger as
 * ground truth for "money received" and the local claim/ticket tables as ground
 * truth for "tickets issued", walks every approved payment in a time window,
 * and classifies each into exactly one outcome. Discrepancies are persisted as
 * findings, deduplicated by (payment_id, finding), so re-running the same
 * window records nothing new.
 *
 * Classifications:
 *   - ok: one paid claim with the exact assigned ticket count.
 *   - confirmed: payment approved but the claim was still pending; the pass
 *     confirms it (poll-path backup for a lost broker event).
 *   - orphaned_payment: no claim carries the payment id.
 *   - late_payment_cancelled_hold: the claim expired before the approval was
 *     seen; its tickets may have been resold.
 *   - partial_fulfillment: a paid claim whose ticket count != its quantity.
 *   - duplicate_payment_id: more than one claim carries the payment id.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/rifaops/ticket-service/internal/domain"
	"github.com/rifaops/ticket-service/internal/metrics"
	"github.com/rifaops/ticket-service/pkg/paymentclient"
)

// Reconcile runs one pass over the provider's approved payments in [from, to]
// and returns a summary report. The pass is idempotent: repeated runs over the
// same window change nothing beyond confirming still-pending claims.
func (s *Service) Reconcile(ctx context.Context, from, to time.Time) (*domain.ReconcileReport, error) {
	if s.ledger == nil {
		return nil, errors.New("payment ledger client is not configured")
	}

	payments, err := s.ledger.SearchApprovedPayments(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("search approved payments: %w", err)
	}

	report := &domain.ReconcileReport{WindowFrom: from, WindowTo: to}
	log.Printf("level=info component=reconciler msg=\"pass started\" from=%s to=%s payments=%d",
		from.Format(time.RFC3339), to.Format(time.RFC3339), len(payments))

	for _, payment := range payments {
		report.Processed++
		if err := s.reconcilePayment(ctx, payment, report); err != nil {
			// A single payment's failure must not abort the pass.
			log.Printf("level=error component=reconciler msg=\"payment check failed\" payment_id=%s err=%v", payment.ID, err)
		}
	}

	log.Printf("level=info component=reconciler msg=\"pass finished\" processed=%d ok=%d confirmed=%d orphans=%d late=%d partial=%d duplicates=%d repaired=%d new_findings=%d",
		report.Processed, report.OK, report.Confirmed, report.Orphans, report.LatePayments,
		report.PartialFulfillments, report.IntegrityViolations, report.Repaired, report.NewFindings)
	return report, nil
}

func (s *Service) reconcilePayment(ctx context.Context, payment paymentclient.PaymentRecord, report *domain.ReconcileReport) error {
	claimIDs, err := s.repo.FindClaimIDsByPaymentID(ctx, payment.ID)
	if err != nil {
		return err
	}

	if len(claimIDs) > 1 {
		// The partial unique index should make this impossible; if it shows up
		// anyway it is an integrity violation and is never auto-resolved.
		report.IntegrityViolations++
		s.recordFinding(ctx, report, &domain.ReconciliationFinding{
			PaymentID: payment.ID,
			Finding:   domain.FindingDuplicatePaymentID,
			Amount:    payment.Amount,
			Detail:    fmt.Sprintf("payment id linked to %d claims", len(claimIDs)),
		})
		return nil
	}

	if len(claimIDs) == 0 {
		report.Orphans++
		s.recordFinding(ctx, report, &domain.ReconciliationFinding{
			PaymentID: payment.ID,
			Finding:   domain.FindingOrphanedPayment,
			Amount:    payment.Amount,
			Detail:    "approved payment with no claim",
		})
		if s.autoRepair {
			if s.repairOrphan(ctx, payment) {
				report.Repaired++
			}
		}
		return nil
	}

	claim, err := s.repo.FindClaimByID(ctx, claimIDs[0])
	if err != nil {
		return err
	}

	switch claim.Status {
	case domain.ClaimPending:
		// Approved at the provider but never confirmed locally: the broker
		// event was lost. Confirm through the normal path.
		if _, err := s.ConfirmPayment(ctx, payment.ID); err != nil {
			return fmt.Errorf("confirm pending claim %s: %w", claim.ID, err)
		}
		report.Confirmed++
		return nil

	case domain.ClaimExpired:
		report.LatePayments++
		s.recordFinding(ctx, report, &domain.ReconciliationFinding{
			PaymentID: payment.ID,
			Finding:   domain.FindingLatePayment,
			ClaimID:   &claim.ID,
			Amount:    payment.Amount,
			Detail:    fmt.Sprintf("payment approved %s but hold expired %s", payment.ApprovedAt.Format(time.RFC3339), claim.ExpiresAt.Format(time.RFC3339)),
		})
		return nil

	case domain.ClaimPaid:
		assigned, err := s.repo.CountAssignedTickets(ctx, claim.ID)
		if err != nil {
			return err
		}
		if assigned != claim.TotalQty {
			report.PartialFulfillments++
			s.recordFinding(ctx, report, &domain.ReconciliationFinding{
				PaymentID: payment.ID,
				Finding:   domain.FindingPartialFulfillment,
				ClaimID:   &claim.ID,
				Amount:    payment.Amount,
				Detail:    fmt.Sprintf("paid claim holds %d tickets, expected %d", assigned, claim.TotalQty),
			})
			return nil
		}
		report.OK++
		return nil
	}

	return fmt.Errorf("claim %s has unknown status %q", claim.ID, claim.Status)
}

// recordFinding persists a discrepancy and, when it is new, bumps the report,
// the finding counter, and publishes an alerting event.
func (s *Service) recordFinding(ctx context.Context, report *domain.ReconcileReport, finding *domain.ReconciliationFinding) {
	inserted, err := s.repo.RecordFinding(ctx, finding)
	if err != nil {
		log.Printf("level=error component=reconciler msg=\"failed to record finding\" payment_id=%s finding=%s err=%v", finding.PaymentID, finding.Finding, err)
		return
	}
	if !inserted {
		return
	}

	report.NewFindings++
	metrics.ReconciliationFindings.WithLabelValues(string(finding.Finding)).Inc()
	log.Printf("level=warn component=reconciler msg=\"discrepancy recorded\" payment_id=%s finding=%s amount=%d detail=%q",
		finding.PaymentID, finding.Finding, finding.Amount, finding.Detail)

	s.publishEvent(routingKeyFinding, domain.FindingRecordedEvent{
		FindingID: finding.ID,
		PaymentID: finding.PaymentID,
		Finding:   finding.Finding,
		Amount:    finding.Amount,
		Timestamp: time.Now().UTC(),
	})
}

// repairOrphan attempts the guarded automated remediation of an orphaned
// payment: re-fetch the payment to confirm it is still approved and carries
// enough checkout metadata to identify the campaign and quantity, then issue a
// paid claim in the campaign's current round. Anything short of full certainty
// leaves the finding for manual handling.
func (s *Service) repairOrphan(ctx context.Context, payment paymentclient.PaymentRecord) bool {
	if payment.CampaignID <= 0 || payment.Quantity <= 0 {
		log.Printf("level=info component=reconciler msg=\"orphan not auto-repairable; missing checkout metadata\" payment_id=%s", payment.ID)
		return false
	}

	fresh, err := s.ledger.GetPayment(ctx, payment.ID)
	if err != nil {
		log.Printf("level=warn component=reconciler msg=\"orphan re-verification failed\" payment_id=%s err=%v", payment.ID, err)
		return false
	}
	if fresh.Status != "approved" || fresh.CampaignID != payment.CampaignID || fresh.Quantity != payment.Quantity {
		log.Printf("level=warn component=reconciler msg=\"orphan re-verification mismatch; leaving for manual review\" payment_id=%s status=%s", payment.ID, fresh.Status)
		return false
	}

	campaign, err := s.repo.FindCampaignByID(ctx, payment.CampaignID)
	if err != nil || !campaign.Active {
		log.Printf("level=warn component=reconciler msg=\"orphan campaign unavailable; leaving for manual review\" payment_id=%s campaign_id=%d err=%v", payment.ID, payment.CampaignID, err)
		return false
	}

	buyerRef := fresh.PayerRef
	if buyerRef == "" {
		buyerRef = "reconciler:" + payment.ID
	}
	claim := &domain.Claim{
		CampaignID:  campaign.ID,
		RoundNumber: campaign.CurrentRound,
		BuyerRef:    buyerRef,
		TotalQty:    payment.Quantity,
		PaymentID:   &payment.ID,
		ExpiresAt:   time.Now().UTC().Add(s.holdDuration),
	}
	numbers, err := s.repo.CreateClaimWithTickets(ctx, claim)
	if err != nil {
		log.Printf("level=warn component=reconciler msg=\"orphan repair reservation failed\" payment_id=%s err=%v", payment.ID, err)
		return false
	}
	if err := s.repo.MarkClaimPaid(ctx, claim.ID); err != nil {
		log.Printf("level=error component=reconciler msg=\"orphan repair confirm failed\" payment_id=%s claim_id=%s err=%v", payment.ID, claim.ID, err)
		return false
	}

	if _, err := s.repo.ResolveFindingByPayment(ctx, payment.ID, domain.FindingOrphanedPayment); err != nil {
		log.Printf("level=warn component=reconciler msg=\"failed to resolve repaired finding\" payment_id=%s err=%v", payment.ID, err)
	}

	s.publishEvent(routingKeyClaimPaid, domain.ClaimPaidEvent{
		ClaimID:     claim.ID,
		CampaignID:  claim.CampaignID,
		RoundNumber: claim.RoundNumber,
		BuyerRef:    claim.BuyerRef,
		Quantity:    claim.TotalQty,
		PaymentID:   payment.ID,
		Timestamp:   time.Now().UTC(),
	})
	log.Printf("level=info component=reconciler msg=\"orphaned payment repaired\" payment_id=%s claim_id=%s numbers=%v", payment.ID, claim.ID, numbers)
	return true
}
