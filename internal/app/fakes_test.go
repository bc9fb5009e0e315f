package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rifaops/ticket-service/internal/domain"
	"github.com/rifaops/ticket-service/internal/store"
	"github.com/rifaops/ticket-service/pkg/paymentclient"
)

// fakeRepo is an in-memory store.Repository with the same transactional
// semantics as the postgres implementation: ascending assignment, guarded
// transitions, and all-or-nothing claim moves.
type fakeRepo struct {
	mu             sync.Mutex
	campaigns      map[int64]*domain.Campaign
	rounds         map[roundKey]*domain.Round
	tickets        map[roundKey]map[int]*uuid.UUID // number -> assigned claim, nil = available
	claims         map[uuid.UUID]*domain.Claim
	findings       []*domain.ReconciliationFinding
	nextCampaignID int64
}

type roundKey struct {
	campaignID  int64
	roundNumber int
}

var _ store.Repository = (*fakeRepo)(nil)

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		campaigns:      make(map[int64]*domain.Campaign),
		rounds:         make(map[roundKey]*domain.Round),
		tickets:        make(map[roundKey]map[int]*uuid.UUID),
		claims:         make(map[uuid.UUID]*domain.Claim),
		nextCampaignID: 1,
	}
}

func (f *fakeRepo) seedCampaign(id int64, active bool, currentRound int) {
	f.campaigns[id] = &domain.Campaign{ID: id, Name: fmt.Sprintf("campaign-%d", id), Active: active, CurrentRound: currentRound}
	if id >= f.nextCampaignID {
		f.nextCampaignID = id + 1
	}
}

func (f *fakeRepo) seedRound(campaignID int64, roundNumber int, closed bool, numbers ...int) {
	rk := roundKey{campaignID, roundNumber}
	f.rounds[rk] = &domain.Round{CampaignID: campaignID, RoundNumber: roundNumber, Capacity: len(numbers), Closed: closed}
	slots := make(map[int]*uuid.UUID, len(numbers))
	for _, n := range numbers {
		slots[n] = nil
	}
	f.tickets[rk] = slots
}

func (f *fakeRepo) assignDirect(campaignID int64, roundNumber int, claimID uuid.UUID, numbers ...int) {
	rk := roundKey{campaignID, roundNumber}
	for _, n := range numbers {
		id := claimID
		f.tickets[rk][n] = &id
	}
}

func (f *fakeRepo) availableNumbers(rk roundKey) []int {
	var numbers []int
	for n, claimID := range f.tickets[rk] {
		if claimID == nil {
			numbers = append(numbers, n)
		}
	}
	sort.Ints(numbers)
	return numbers
}

func (f *fakeRepo) CreateCampaign(ctx context.Context, campaign *domain.Campaign) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	campaign.ID = f.nextCampaignID
	f.nextCampaignID++
	campaign.CurrentRound = 1
	campaign.CreatedAt = time.Now()
	f.campaigns[campaign.ID] = campaign
	rk := roundKey{campaign.ID, 1}
	f.rounds[rk] = &domain.Round{CampaignID: campaign.ID, RoundNumber: 1}
	f.tickets[rk] = make(map[int]*uuid.UUID)
	return nil
}

func (f *fakeRepo) FindCampaignByID(ctx context.Context, campaignID int64) (*domain.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	campaign, ok := f.campaigns[campaignID]
	if !ok {
		return nil, store.ErrCampaignNotFound
	}
	copied := *campaign
	return &copied, nil
}

func (f *fakeRepo) AdvanceCampaignRound(ctx context.Context, campaignID int64, toRound int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	campaign, ok := f.campaigns[campaignID]
	if !ok {
		return store.ErrCampaignNotFound
	}
	campaign.CurrentRound = toRound
	return nil
}

func (f *fakeRepo) CreateRound(ctx context.Context, campaignID int64, roundNumber, capacity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rk := roundKey{campaignID, roundNumber}
	if _, ok := f.rounds[rk]; ok {
		return nil
	}
	f.rounds[rk] = &domain.Round{CampaignID: campaignID, RoundNumber: roundNumber, Capacity: capacity}
	f.tickets[rk] = make(map[int]*uuid.UUID)
	return nil
}

func (f *fakeRepo) FindRound(ctx context.Context, campaignID int64, roundNumber int) (*domain.Round, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	round, ok := f.rounds[roundKey{campaignID, roundNumber}]
	if !ok {
		return nil, store.ErrRoundNotFound
	}
	copied := *round
	return &copied, nil
}

func (f *fakeRepo) CloseRound(ctx context.Context, campaignID int64, roundNumber int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	round, ok := f.rounds[roundKey{campaignID, roundNumber}]
	if !ok {
		return store.ErrRoundNotFound
	}
	round.Closed = true
	return nil
}

func (f *fakeRepo) GenerateTickets(ctx context.Context, campaignID int64, roundNumber, firstNumber, lastNumber int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if firstNumber <= 0 || lastNumber < firstNumber {
		return 0, fmt.Errorf("invalid number range [%d, %d]", firstNumber, lastNumber)
	}
	rk := roundKey{campaignID, roundNumber}
	if _, ok := f.rounds[rk]; !ok {
		f.rounds[rk] = &domain.Round{CampaignID: campaignID, RoundNumber: roundNumber}
		f.tickets[rk] = make(map[int]*uuid.UUID)
	}
	var created int64
	for n := firstNumber; n <= lastNumber; n++ {
		if _, exists := f.tickets[rk][n]; !exists {
			f.tickets[rk][n] = nil
			created++
		}
	}
	f.rounds[rk].Capacity = len(f.tickets[rk])
	return created, nil
}

func (f *fakeRepo) ListAvailableTicketNumbers(ctx context.Context, campaignID int64, roundNumber, limit int) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	numbers := f.availableNumbers(roundKey{campaignID, roundNumber})
	if limit > 0 && len(numbers) > limit {
		numbers = numbers[:limit]
	}
	return numbers, nil
}

func (f *fakeRepo) CountAvailableTickets(ctx context.Context, campaignID int64, roundNumber int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.availableNumbers(roundKey{campaignID, roundNumber})), nil
}

func (f *fakeRepo) ListTicketNumbersByClaim(ctx context.Context, claimID uuid.UUID) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var numbers []int
	for _, slots := range f.tickets {
		for n, assigned := range slots {
			if assigned != nil && *assigned == claimID {
				numbers = append(numbers, n)
			}
		}
	}
	sort.Ints(numbers)
	return numbers, nil
}

func (f *fakeRepo) CountAssignedTickets(ctx context.Context, claimID uuid.UUID) (int, error) {
	numbers, _ := f.ListTicketNumbersByClaim(ctx, claimID)
	return len(numbers), nil
}

func (f *fakeRepo) CreateClaimWithTickets(ctx context.Context, claim *domain.Claim) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rk := roundKey{claim.CampaignID, claim.RoundNumber}
	round, ok := f.rounds[rk]
	if !ok {
		return nil, store.ErrRoundNotFound
	}
	if round.Closed {
		return nil, store.ErrRoundClosed
	}
	if claim.PaymentID != nil {
		for _, existing := range f.claims {
			if existing.PaymentID != nil && *existing.PaymentID == *claim.PaymentID {
				return nil, store.ErrDuplicatePayment
			}
		}
	}

	available := f.availableNumbers(rk)
	if len(available) < claim.TotalQty {
		return nil, store.ErrInsufficientInventory
	}

	claim.ID = uuid.New()
	claim.Status = domain.ClaimPending
	claim.ClaimedAt = time.Now()
	numbers := available[:claim.TotalQty]
	for _, n := range numbers {
		id := claim.ID
		f.tickets[rk][n] = &id
	}
	f.claims[claim.ID] = claim
	return numbers, nil
}

func (f *fakeRepo) FindClaimByID(ctx context.Context, claimID uuid.UUID) (*domain.Claim, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	claim, ok := f.claims[claimID]
	if !ok {
		return nil, store.ErrClaimNotFound
	}
	copied := *claim
	return &copied, nil
}

func (f *fakeRepo) FindClaimByPaymentID(ctx context.Context, paymentID string) (*domain.Claim, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, claim := range f.claims {
		if claim.PaymentID != nil && *claim.PaymentID == paymentID {
			copied := *claim
			return &copied, nil
		}
	}
	return nil, store.ErrClaimNotFound
}

func (f *fakeRepo) FindClaimIDsByPaymentID(ctx context.Context, paymentID string) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uuid.UUID
	for _, claim := range f.claims {
		if claim.PaymentID != nil && *claim.PaymentID == paymentID {
			ids = append(ids, claim.ID)
		}
	}
	return ids, nil
}

func (f *fakeRepo) MarkClaimPaid(ctx context.Context, claimID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	claim, ok := f.claims[claimID]
	if !ok {
		return store.ErrClaimNotFound
	}
	switch claim.Status {
	case domain.ClaimPaid:
		return nil
	case domain.ClaimExpired:
		return fmt.Errorf("claim %s is expired: %w", claimID, store.ErrInvalidTransition)
	}
	claim.Status = domain.ClaimPaid
	return nil
}

func (f *fakeRepo) CancelClaimAtomic(ctx context.Context, claimID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	claim, ok := f.claims[claimID]
	if !ok {
		return 0, store.ErrClaimNotFound
	}
	switch claim.Status {
	case domain.ClaimExpired:
		return 0, nil
	case domain.ClaimPaid:
		return 0, fmt.Errorf("claim %s is paid: %w", claimID, store.ErrInvalidTransition)
	}

	released := 0
	for _, slots := range f.tickets {
		for n, assigned := range slots {
			if assigned != nil && *assigned == claimID {
				slots[n] = nil
				released++
			}
		}
	}
	claim.Status = domain.ClaimExpired
	return released, nil
}

func (f *fakeRepo) ListExpiredPendingClaims(ctx context.Context, cutoff time.Time, limit int) ([]domain.Claim, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var expired []domain.Claim
	for _, claim := range f.claims {
		if claim.Status == domain.ClaimPending && claim.ExpiresAt.Before(cutoff) {
			expired = append(expired, *claim)
		}
	}
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}
	return expired, nil
}

func (f *fakeRepo) MoveClaimTickets(ctx context.Context, claimID uuid.UUID, toRound int, strategy domain.RenumberStrategy, numberShift int) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	claim, ok := f.claims[claimID]
	if !ok {
		return nil, store.ErrClaimNotFound
	}
	if claim.Status == domain.ClaimExpired {
		return nil, fmt.Errorf("claim %s is expired: %w", claimID, store.ErrInvalidTransition)
	}
	if claim.RoundNumber == toRound {
		return nil, fmt.Errorf("claim %s is already in round %d", claimID, toRound)
	}

	destKey := roundKey{claim.CampaignID, toRound}
	destRound, ok := f.rounds[destKey]
	if !ok {
		return nil, store.ErrRoundNotFound
	}
	if destRound.Closed {
		return nil, store.ErrRoundClosed
	}

	srcKey := roundKey{claim.CampaignID, claim.RoundNumber}
	var original []int
	for n, assigned := range f.tickets[srcKey] {
		if assigned != nil && *assigned == claimID {
			original = append(original, n)
		}
	}
	sort.Ints(original)

	var targets []int
	switch strategy {
	case domain.RenumberSameNumber:
		targets = original
	case domain.RenumberOffset:
		for _, n := range original {
			targets = append(targets, n+numberShift)
		}
	case domain.RenumberNextAvailable:
		available := f.availableNumbers(destKey)
		if len(available) < claim.TotalQty {
			return nil, store.ErrInsufficientInventory
		}
		targets = available[:claim.TotalQty]
	default:
		return nil, fmt.Errorf("unknown renumber strategy %q", strategy)
	}

	// Validate every target before mutating anything: the move is all-or-nothing.
	for _, n := range targets {
		assigned, exists := f.tickets[destKey][n]
		if !exists || assigned != nil {
			return nil, store.ErrInsufficientInventory
		}
	}

	for _, n := range original {
		f.tickets[srcKey][n] = nil
	}
	for _, n := range targets {
		id := claimID
		f.tickets[destKey][n] = &id
	}
	claim.RoundNumber = toRound
	claim.TotalQty = len(targets)
	return targets, nil
}

func (f *fakeRepo) RecordFinding(ctx context.Context, finding *domain.ReconciliationFinding) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.findings {
		if existing.PaymentID == finding.PaymentID && existing.Finding == finding.Finding {
			return false, nil
		}
	}
	finding.ID = uuid.New()
	finding.CreatedAt = time.Now()
	f.findings = append(f.findings, finding)
	return true, nil
}

func (f *fakeRepo) ListFindings(ctx context.Context, opts domain.FindingListOptions) ([]domain.ReconciliationFinding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ReconciliationFinding
	for _, finding := range f.findings {
		if opts.Finding != "" && finding.Finding != opts.Finding {
			continue
		}
		if opts.Unresolved && finding.Resolved {
			continue
		}
		out = append(out, *finding)
	}
	return out, nil
}

func (f *fakeRepo) ResolveFinding(ctx context.Context, findingID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, finding := range f.findings {
		if finding.ID == findingID && !finding.Resolved {
			finding.Resolved = true
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) ResolveFindingByPayment(ctx context.Context, paymentID string, findingType domain.FindingType) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, finding := range f.findings {
		if finding.PaymentID == paymentID && finding.Finding == findingType && !finding.Resolved {
			finding.Resolved = true
			return true, nil
		}
	}
	return false, nil
}

// fakePublisher records published events for assertions.
type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	exchange   string
	routingKey string
	body       interface{}
}

func (p *fakePublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{exchange: exchange, routingKey: routingKey, body: body})
	return nil
}

func (p *fakePublisher) Close() {}

func (p *fakePublisher) countByKey(routingKey string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	count := 0
	for _, event := range p.events {
		if event.routingKey == routingKey {
			count++
		}
	}
	return count
}

// fakeLedger is an in-memory payment provider view.
type fakeLedger struct {
	payments  []paymentclient.PaymentRecord
	searchErr error
}

func (l *fakeLedger) SearchApprovedPayments(ctx context.Context, from, to time.Time) ([]paymentclient.PaymentRecord, error) {
	if l.searchErr != nil {
		return nil, l.searchErr
	}
	return l.payments, nil
}

func (l *fakeLedger) GetPayment(ctx context.Context, paymentID string) (*paymentclient.PaymentRecord, error) {
	for i := range l.payments {
		if l.payments[i].ID == paymentID {
			copied := l.payments[i]
			return &copied, nil
		}
	}
	return nil, paymentclient.ErrPaymentNotFound
}

type stubRateLimiter struct {
	count int
	err   error
}

func (s *stubRateLimiter) ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (int, int, error) {
	return s.count, 30, s.err
}

func ptrString(value string) *string {
	return &value
}
