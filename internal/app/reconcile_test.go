package app

import (
	"context"
	"testing"
	"time"

	"github.com/rifaops/ticket-service/internal/domain"
	"github.com/rifaops/ticket-service/pkg/paymentclient"
)

func newReconcileService(repo *fakeRepo, ledger *fakeLedger, autoRepair bool) (*Service, *fakePublisher) {
	publisher := &fakePublisher{}
	return NewService(repo, ledger, publisher, 30*time.Minute, autoRepair), publisher
}

func reconcileWindow() (time.Time, time.Time) {
	to := time.Now().UTC()
	return to.Add(-time.Hour), to
}

func TestReconcile_HealthyPaymentCountsOK(t *testing.T) {
	repo := newFakeRepo()
	repo.seedCampaign(1, true, 1)
	repo.seedRound(1, 1, false, 1, 2)

	ledger := &fakeLedger{payments: []paymentclient.PaymentRecord{{ID: "pay_1", Status: "approved", Amount: 2000}}}
	svc, _ := newReconcileService(repo, ledger, false)

	if _, err := svc.Reserve(context.Background(), domain.ReserveTicketsRequest{
		CampaignID: 1, Quantity: 2, BuyerRef: "buyer-a", PaymentID: "pay_1",
	}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if _, err := svc.ConfirmPayment(context.Background(), "pay_1"); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	from, to := reconcileWindow()
	report, err := svc.Reconcile(context.Background(), from, to)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if report.OK != 1 || report.NewFindings != 0 {
		t.Fatalf("expected 1 ok and no findings, got %+v", report)
	}
}

func TestReconcile_ConfirmsPendingClaimWithApprovedPayment(t *testing.T) {
	repo := newFakeRepo()
	repo.seedCampaign(1, true, 1)
	repo.seedRound(1, 1, false, 1)

	ledger := &fakeLedger{payments: []paymentclient.PaymentRecord{{ID: "pay_1", Status: "approved", Amount: 1000}}}
	svc, publisher := newReconcileService(repo, ledger, false)

	result, err := svc.Reserve(context.Background(), domain.ReserveTicketsRequest{
		CampaignID: 1, Quantity: 1, BuyerRef: "buyer-a", PaymentID: "pay_1",
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	from, to := reconcileWindow()
	report, err := svc.Reconcile(context.Background(), from, to)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if report.Confirmed != 1 {
		t.Fatalf("expected 1 confirmed, got %+v", report)
	}
	claim, _ := repo.FindClaimByID(context.Background(), result.Claim.ID)
	if claim.Status != domain.ClaimPaid {
		t.Fatalf("expected claim confirmed to paid, got %s", claim.Status)
	}
	if got := publisher.countByKey(routingKeyClaimPaid); got != 1 {
		t.Fatalf("expected one claim.paid event, got %d", got)
	}
}

func TestReconcile_RecordsOrphanedPaymentOnce(t *testing.T) {
	repo := newFakeRepo()
	ledger := &fakeLedger{payments: []paymentclient.PaymentRecord{{ID: "pay_orphan", Status: "approved", Amount: 5000}}}
	svc, publisher := newReconcileService(repo, ledger, false)

	from, to := reconcileWindow()
	report, err := svc.Reconcile(context.Background(), from, to)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if report.Orphans != 1 || report.NewFindings != 1 {
		t.Fatalf("expected 1 orphan with a new finding, got %+v", report)
	}

	// Re-running the same window must not duplicate the finding.
	report, err = svc.Reconcile(context.Background(), from, to)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if report.Orphans != 1 || report.NewFindings != 0 {
		t.Fatalf("expected repeated pass to record nothing new, got %+v", report)
	}

	findings, _ := repo.ListFindings(context.Background(), domain.FindingListOptions{})
	if len(findings) != 1 || findings[0].Finding != domain.FindingOrphanedPayment {
		t.Fatalf("expected a single orphaned_payment finding, got %+v", findings)
	}
	if got := publisher.countByKey(routingKeyFinding); got != 1 {
		t.Fatalf("expected one finding event, got %d", got)
	}
}

func TestReconcile_ClassifiesLatePayment(t *testing.T) {
	repo := newFakeRepo()
	repo.seedCampaign(1, true, 1)
	repo.seedRound(1, 1, false, 1)

	ledger := &fakeLedger{payments: []paymentclient.PaymentRecord{{ID: "pay_late", Status: "approved", Amount: 1000, ApprovedAt: time.Now()}}}
	svc, _ := newReconcileService(repo, ledger, false)

	result, err := svc.Reserve(context.Background(), domain.ReserveTicketsRequest{
		CampaignID: 1, Quantity: 1, BuyerRef: "buyer-a", PaymentID: "pay_late",
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if err := svc.Cancel(context.Background(), result.Claim.ID); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	from, to := reconcileWindow()
	report, err := svc.Reconcile(context.Background(), from, to)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if report.LatePayments != 1 {
		t.Fatalf("expected 1 late payment, got %+v", report)
	}

	findings, _ := repo.ListFindings(context.Background(), domain.FindingListOptions{Finding: domain.FindingLatePayment})
	if len(findings) != 1 {
		t.Fatalf("expected one late payment finding, got %+v", findings)
	}
	if findings[0].ClaimID == nil || *findings[0].ClaimID != result.Claim.ID {
		t.Fatalf("expected finding linked to claim %s, got %+v", result.Claim.ID, findings[0])
	}
}

func TestReconcile_DetectsPartialFulfillment(t *testing.T) {
	repo := newFakeRepo()
	repo.seedCampaign(1, true, 1)
	repo.seedRound(1, 1, false, 1, 2, 3)

	ledger := &fakeLedger{payments: []paymentclient.PaymentRecord{{ID: "pay_partial", Status: "approved", Amount: 3000}}}
	svc, _ := newReconcileService(repo, ledger, false)

	result, err := svc.Reserve(context.Background(), domain.ReserveTicketsRequest{
		CampaignID: 1, Quantity: 3, BuyerRef: "buyer-a", PaymentID: "pay_partial",
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if _, err := svc.ConfirmPayment(context.Background(), "pay_partial"); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	// Corrupt the state directly: drop one of the claim's tickets.
	repo.tickets[roundKey{1, 1}][2] = nil
	_ = result

	from, to := reconcileWindow()
	report, err := svc.Reconcile(context.Background(), from, to)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if report.PartialFulfillments != 1 {
		t.Fatalf("expected 1 partial fulfillment, got %+v", report)
	}
}

func TestReconcile_RepairsOrphanWithCheckoutMetadata(t *testing.T) {
	repo := newFakeRepo()
	repo.seedCampaign(1, true, 1)
	repo.seedRound(1, 1, false, 1, 2, 3)

	ledger := &fakeLedger{payments: []paymentclient.PaymentRecord{{
		ID: "pay_orphan", Status: "approved", Amount: 2000,
		CampaignID: 1, Quantity: 2, PayerRef: "buyer-z",
	}}}
	svc, _ := newReconcileService(repo, ledger, true)

	from, to := reconcileWindow()
	report, err := svc.Reconcile(context.Background(), from, to)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if report.Orphans != 1 || report.Repaired != 1 {
		t.Fatalf("expected orphan repaired, got %+v", report)
	}

	claim, err := repo.FindClaimByPaymentID(context.Background(), "pay_orphan")
	if err != nil {
		t.Fatalf("expected repaired claim, got %v", err)
	}
	if claim.Status != domain.ClaimPaid || claim.TotalQty != 2 {
		t.Fatalf("expected paid claim for 2 tickets, got %+v", claim)
	}

	findings, _ := repo.ListFindings(context.Background(), domain.FindingListOptions{Unresolved: true})
	if len(findings) != 0 {
		t.Fatalf("expected repaired finding resolved, got %+v", findings)
	}

	// The next pass sees a healthy payment.
	report, err = svc.Reconcile(context.Background(), from, to)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if report.OK != 1 || report.Orphans != 0 {
		t.Fatalf("expected repaired payment to reconcile clean, got %+v", report)
	}
}

func TestReconcile_SkipsRepairWithoutCheckoutMetadata(t *testing.T) {
	repo := newFakeRepo()
	repo.seedCampaign(1, true, 1)
	repo.seedRound(1, 1, false, 1, 2)

	ledger := &fakeLedger{payments: []paymentclient.PaymentRecord{{ID: "pay_orphan", Status: "approved", Amount: 2000}}}
	svc, _ := newReconcileService(repo, ledger, true)

	from, to := reconcileWindow()
	report, err := svc.Reconcile(context.Background(), from, to)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if report.Repaired != 0 {
		t.Fatalf("expected no repair without campaign/quantity metadata, got %+v", report)
	}
	findings, _ := repo.ListFindings(context.Background(), domain.FindingListOptions{Unresolved: true})
	if len(findings) != 1 {
		t.Fatalf("expected the orphan finding left for manual review, got %+v", findings)
	}
}

func TestReconcile_DetectsDuplicatePaymentLinkage(t *testing.T) {
	repo := newFakeRepo()
	repo.seedCampaign(1, true, 1)
	repo.seedRound(1, 1, false, 1, 2)

	ledger := &fakeLedger{payments: []paymentclient.PaymentRecord{{ID: "pay_dup", Status: "approved", Amount: 1000}}}
	svc, _ := newReconcileService(repo, ledger, false)

	// Bypass the service to force the state the unique index should prevent.
	for i := 0; i < 2; i++ {
		claim := &domain.Claim{
			CampaignID: 1, RoundNumber: 1, BuyerRef: "buyer-a", TotalQty: 1,
			PaymentID: ptrString("pay_dup"), ExpiresAt: time.Now().Add(time.Hour),
		}
		claim.ID = [16]byte{byte(i + 1)}
		claim.Status = domain.ClaimPending
		repo.claims[claim.ID] = claim
	}

	from, to := reconcileWindow()
	report, err := svc.Reconcile(context.Background(), from, to)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if report.IntegrityViolations != 1 {
		t.Fatalf("expected 1 integrity violation, got %+v", report)
	}
	findings, _ := repo.ListFindings(context.Background(), domain.FindingListOptions{Finding: domain.FindingDuplicatePaymentID})
	if len(findings) != 1 {
		t.Fatalf("expected a duplicate_payment_id finding, got %+v", findings)
	}
}
