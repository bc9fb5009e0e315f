/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the SQL for campaigns, rounds, ticket inventory, and payment
 * claims. The multi-row mutations (reserve, cancel, move) run inside explicit
 * transactions with row-level locks so that two concurrent reservations can
 * never both assign the same ticket.
 *
 * @dependencies
 * - context, errors, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rifaops/ticket-service/internal/domain"
)

var (
	ErrCampaignNotFound      = errors.New("campaign not found")
	ErrRoundNotFound         = errors.New("round not found")
	ErrRoundClosed           = errors.New("round closed for new reservations")
	ErrClaimNotFound         = errors.New("claim not found")
	ErrInsufficientInventory = errors.New("insufficient ticket inventory")
	ErrDuplicatePayment      = errors.New("payment id already linked to a claim")
	ErrInvalidTransition     = errors.New("invalid claim state transition")
	ErrTicketNotAssigned     = errors.New("ticket is not assigned")
	ErrFindingNotFound       = errors.New("reconciliation finding not found")
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// CreateCampaign inserts a campaign together with its first round.
func (r *PostgresRepository) CreateCampaign(ctx context.Context, campaign *domain.Campaign) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create campaign: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO campaigns (name, unit_price, active, current_round, created_at, updated_at)
		VALUES ($1, $2, $3, 1, NOW(), NOW())
		RETURNING id, current_round, created_at, updated_at
	`
	err = tx.QueryRow(ctx, query, campaign.Name, campaign.UnitPrice, campaign.Active).
		Scan(&campaign.ID, &campaign.CurrentRound, &campaign.CreatedAt, &campaign.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO rounds (campaign_id, round_number, capacity, closed, created_at)
		VALUES ($1, 1, 0, FALSE, NOW())
	`, campaign.ID)
	if err != nil {
		return fmt.Errorf("insert first round: %w", err)
	}

	return tx.Commit(ctx)
}

// FindCampaignByID retrieves a campaign by its ID.
func (r *PostgresRepository) FindCampaignByID(ctx context.Context, campaignID int64) (*domain.Campaign, error) {
	var campaign domain.Campaign
	query := `SELECT id, name, unit_price, active, current_round, created_at, updated_at FROM campaigns WHERE id = $1`
	err := r.db.QueryRow(ctx, query, campaignID).Scan(
		&campaign.ID,
		&campaign.Name,
		&campaign.UnitPrice,
		&campaign.Active,
		&campaign.CurrentRound,
		&campaign.CreatedAt,
		&campaign.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}
	return &campaign, nil
}

// AdvanceCampaignRound moves the campaign's current-round pointer. This is the
// only place the pointer is written; all other components read it as input.
func (r *PostgresRepository) AdvanceCampaignRound(ctx context.Context, campaignID int64, toRound int) error {
	result, err := r.db.Exec(ctx, `
		UPDATE campaigns SET current_round = $1, updated_at = NOW() WHERE id = $2
	`, toRound, campaignID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrCampaignNotFound
	}
	return nil
}

// CreateRound registers a new inventory round for a campaign.
func (r *PostgresRepository) CreateRound(ctx context.Context, campaignID int64, roundNumber, capacity int) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO rounds (campaign_id, round_number, capacity, closed, created_at)
		VALUES ($1, $2, $3, FALSE, NOW())
		ON CONFLICT (campaign_id, round_number) DO NOTHING
	`, campaignID, roundNumber, capacity)
	return err
}

// FindRound retrieves one round of a campaign.
func (r *PostgresRepository) FindRound(ctx context.Context, campaignID int64, roundNumber int) (*domain.Round, error) {
	var round domain.Round
	query := `SELECT campaign_id, round_number, capacity, closed, created_at FROM rounds WHERE campaign_id = $1 AND round_number = $2`
	err := r.db.QueryRow(ctx, query, campaignID, roundNumber).Scan(
		&round.CampaignID,
		&round.RoundNumber,
		&round.Capacity,
		&round.Closed,
		&round.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrRoundNotFound
		}
		return nil, err
	}
	return &round, nil
}

// CloseRound marks a round as no longer eligible for new reservations. The
// round's data is kept; closing is idempotent.
func (r *PostgresRepository) CloseRound(ctx context.Context, campaignID int64, roundNumber int) error {
	result, err := r.db.Exec(ctx, `
		UPDATE rounds SET closed = TRUE WHERE campaign_id = $1 AND round_number = $2
	`, campaignID, roundNumber)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrRoundNotFound
	}
	return nil
}

// GenerateTickets idempotently creates available tickets for every number in
// [firstNumber, lastNumber] that does not already exist for the round. Safe to
// re-run; returns how many tickets were actually created.
func (r *PostgresRepository) GenerateTickets(ctx context.Context, campaignID int64, roundNumber, firstNumber, lastNumber int) (int64, error) {
	if firstNumber < 1 || lastNumber < firstNumber {
		return 0, fmt.Errorf("invalid ticket range [%d, %d]", firstNumber, lastNumber)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin ticket generation: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx, `
		SELECT TRUE FROM rounds WHERE campaign_id = $1 AND round_number = $2
	`, campaignID, roundNumber).Scan(&exists)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, ErrRoundNotFound
		}
		return 0, err
	}

	result, err := tx.Exec(ctx, `
		INSERT INTO tickets (campaign_id, round_number, number, status, updated_at)
		SELECT $1, $2, gs, 'available', NOW()
		FROM generate_series($3::int, $4::int) AS gs
		ON CONFLICT (campaign_id, round_number, number) DO NOTHING
	`, campaignID, roundNumber, firstNumber, lastNumber)
	if err != nil {
		return 0, fmt.Errorf("insert tickets: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE rounds SET capacity = GREATEST(capacity, $1)
		WHERE campaign_id = $2 AND round_number = $3
	`, lastNumber, campaignID, roundNumber)
	if err != nil {
		return 0, fmt.Errorf("update round capacity: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

// ListAvailableTicketNumbers returns available numbers for a round in ascending
// order. Read-only; used for availability queries, not for assignment.
func (r *PostgresRepository) ListAvailableTicketNumbers(ctx context.Context, campaignID int64, roundNumber, limit int) ([]int, error) {
	rows, err := r.db.Query(ctx, `
		SELECT number FROM tickets
		WHERE campaign_id = $1 AND round_number = $2 AND status = 'available'
		ORDER BY number ASC
		LIMIT $3
	`, campaignID, roundNumber, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var numbers []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		numbers = append(numbers, n)
	}
	return numbers, rows.Err()
}

// CountAvailableTickets returns how many tickets remain available in a round.
func (r *PostgresRepository) CountAvailableTickets(ctx context.Context, campaignID int64, roundNumber int) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM tickets
		WHERE campaign_id = $1 AND round_number = $2 AND status = 'available'
	`, campaignID, roundNumber).Scan(&count)
	return count, err
}

// ListTicketNumbersByClaim returns the numbers currently assigned to a claim,
// ascending.
func (r *PostgresRepository) ListTicketNumbersByClaim(ctx context.Context, claimID uuid.UUID) ([]int, error) {
	rows, err := r.db.Query(ctx, `
		SELECT number FROM tickets
		WHERE assigned_claim_id = $1 AND status = 'assigned'
		ORDER BY number ASC
	`, claimID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var numbers []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		numbers = append(numbers, n)
	}
	return numbers, rows.Err()
}

// CountAssignedTickets returns the number of tickets assigned to a claim. Used
// by the reconciler to verify the paid-claim quantity invariant.
func (r *PostgresRepository) CountAssignedTickets(ctx context.Context, claimID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM tickets WHERE assigned_claim_id = $1 AND status = 'assigned'
	`, claimID).Scan(&count)
	return count, err
}

// CreateClaimWithTickets inserts a pending claim and assigns it the lowest
// available ticket numbers of its round, all inside one transaction. The
// candidate rows are locked FOR UPDATE (without SKIP LOCKED) so concurrent
// reservations on the same round serialize: whichever transaction commits
// first wins the lowest numbers, and no ticket is ever assigned twice.
//
// Fails with ErrInsufficientInventory when the round cannot supply the full
// quantity; the claim insert is rolled back with it, so a failed reservation
// leaves no trace. A duplicate payment id fails with ErrDuplicatePayment via
// the unique index on claims.payment_id.
func (r *PostgresRepository) CreateClaimWithTickets(ctx context.Context, claim *domain.Claim) ([]int, error) {
	if claim.TotalQty <= 0 {
		return nil, fmt.Errorf("claim quantity must be positive, got %d", claim.TotalQty)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin reservation: %w", err)
	}
	defer tx.Rollback(ctx)

	var closed bool
	err = tx.QueryRow(ctx, `
		SELECT closed FROM rounds WHERE campaign_id = $1 AND round_number = $2
	`, claim.CampaignID, claim.RoundNumber).Scan(&closed)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrRoundNotFound
		}
		return nil, err
	}
	if closed {
		return nil, ErrRoundClosed
	}

	if claim.ID == uuid.Nil {
		claim.ID = uuid.New()
	}
	claim.Status = domain.ClaimPending

	err = tx.QueryRow(ctx, `
		INSERT INTO claims (id, campaign_id, round_number, buyer_ref, total_qty, status, payment_id, claimed_at, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'pending', $6, NOW(), $7, NOW())
		RETURNING claimed_at, updated_at
	`, claim.ID, claim.CampaignID, claim.RoundNumber, claim.BuyerRef, claim.TotalQty, claim.PaymentID, claim.ExpiresAt).
		Scan(&claim.ClaimedAt, &claim.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicatePayment
		}
		return nil, fmt.Errorf("insert claim: %w", err)
	}

	rows, err := tx.Query(ctx, `
		SELECT number FROM tickets
		WHERE campaign_id = $1 AND round_number = $2 AND status = 'available'
		ORDER BY number ASC
		LIMIT $3
		FOR UPDATE
	`, claim.CampaignID, claim.RoundNumber, claim.TotalQty)
	if err != nil {
		return nil, fmt.Errorf("lock candidate tickets: %w", err)
	}

	numbers := make([]int, 0, claim.TotalQty)
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			rows.Close()
			return nil, err
		}
		numbers = append(numbers, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(numbers) < claim.TotalQty {
		return nil, ErrInsufficientInventory
	}

	result, err := tx.Exec(ctx, `
		UPDATE tickets
		SET status = 'assigned', assigned_claim_id = $1, updated_at = NOW()
		WHERE campaign_id = $2 AND round_number = $3 AND number = ANY($4) AND status = 'available'
	`, claim.ID, claim.CampaignID, claim.RoundNumber, numbers)
	if err != nil {
		return nil, fmt.Errorf("assign tickets: %w", err)
	}
	if int(result.RowsAffected()) != claim.TotalQty {
		// The locked rows changed underneath us; abort rather than commit a
		// partial assignment.
		return nil, fmt.Errorf("expected to assign %d tickets, assigned %d", claim.TotalQty, result.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit reservation: %w", err)
	}
	return numbers, nil
}

// FindClaimByID retrieves a claim by its ID.
func (r *PostgresRepository) FindClaimByID(ctx context.Context, claimID uuid.UUID) (*domain.Claim, error) {
	return r.findClaim(ctx, `WHERE id = $1`, claimID)
}

// FindClaimByPaymentID retrieves the claim linked to an external payment id.
func (r *PostgresRepository) FindClaimByPaymentID(ctx context.Context, paymentID string) (*domain.Claim, error) {
	return r.findClaim(ctx, `WHERE payment_id = $1`, paymentID)
}

func (r *PostgresRepository) findClaim(ctx context.Context, where string, arg interface{}) (*domain.Claim, error) {
	var claim domain.Claim
	query := `
		SELECT id, campaign_id, round_number, buyer_ref, total_qty, status, payment_id, claimed_at, expires_at, updated_at
		FROM claims ` + where
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&claim.ID,
		&claim.CampaignID,
		&claim.RoundNumber,
		&claim.BuyerRef,
		&claim.TotalQty,
		&claim.Status,
		&claim.PaymentID,
		&claim.ClaimedAt,
		&claim.ExpiresAt,
		&claim.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrClaimNotFound
		}
		return nil, err
	}
	return &claim, nil
}

// FindClaimIDsByPaymentID returns every claim holding the given payment id.
// The unique index keeps this at most one in healthy data; the reconciler
// still scans for violations rather than trusting the constraint blindly.
func (r *PostgresRepository) FindClaimIDsByPaymentID(ctx context.Context, paymentID string) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM claims WHERE payment_id = $1 ORDER BY claimed_at ASC`, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkClaimPaid transitions a pending claim to paid. Confirming an already
// paid claim is treated as success so retried webhooks stay idempotent; a
// confirmation against an expired claim fails with ErrInvalidTransition since
// its tickets may already have been released and resold.
func (r *PostgresRepository) MarkClaimPaid(ctx context.Context, claimID uuid.UUID) error {
	result, err := r.db.Exec(ctx, `
		UPDATE claims SET status = 'paid', updated_at = NOW() WHERE id = $1 AND status = 'pending'
	`, claimID)
	if err != nil {
		return err
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	var status domain.ClaimStatus
	err = r.db.QueryRow(ctx, `SELECT status FROM claims WHERE id = $1`, claimID).Scan(&status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrClaimNotFound
		}
		return err
	}
	if status == domain.ClaimPaid {
		return nil
	}
	return fmt.Errorf("%w: claim %s is %s", ErrInvalidTransition, claimID, status)
}

// CancelClaimAtomic releases a pending claim's tickets and marks the claim
// expired in one transaction. Cancelling an already expired claim is a no-op,
// so the expiry sweeper's at-least-once execution is safe; cancelling a paid
// claim fails with ErrInvalidTransition. Returns the number of tickets released.
func (r *PostgresRepository) CancelClaimAtomic(ctx context.Context, claimID uuid.UUID) (int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin cancel: %w", err)
	}
	defer tx.Rollback(ctx)

	var status domain.ClaimStatus
	err = tx.QueryRow(ctx, `SELECT status FROM claims WHERE id = $1 FOR UPDATE`, claimID).Scan(&status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, ErrClaimNotFound
		}
		return 0, err
	}

	switch status {
	case domain.ClaimExpired:
		return 0, nil
	case domain.ClaimPaid:
		return 0, fmt.Errorf("%w: cannot cancel paid claim %s", ErrInvalidTransition, claimID)
	}

	result, err := tx.Exec(ctx, `
		UPDATE tickets
		SET status = 'available', assigned_claim_id = NULL, updated_at = NOW()
		WHERE assigned_claim_id = $1 AND status = 'assigned'
	`, claimID)
	if err != nil {
		return 0, fmt.Errorf("release tickets: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE claims SET status = 'expired', updated_at = NOW() WHERE id = $1`, claimID)
	if err != nil {
		return 0, fmt.Errorf("expire claim: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit cancel: %w", err)
	}
	return int(result.RowsAffected()), nil
}

// ListExpiredPendingClaims returns pending claims whose hold deadline has
// passed, oldest first.
func (r *PostgresRepository) ListExpiredPendingClaims(ctx context.Context, cutoff time.Time, limit int) ([]domain.Claim, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, campaign_id, round_number, buyer_ref, total_qty, status, payment_id, claimed_at, expires_at, updated_at
		FROM claims
		WHERE status = 'pending' AND expires_at < $1
		ORDER BY expires_at ASC
		LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claims []domain.Claim
	for rows.Next() {
		var claim domain.Claim
		if err := rows.Scan(
			&claim.ID,
			&claim.CampaignID,
			&claim.RoundNumber,
			&claim.BuyerRef,
			&claim.TotalQty,
			&claim.Status,
			&claim.PaymentID,
			&claim.ClaimedAt,
			&claim.ExpiresAt,
			&claim.UpdatedAt,
		); err != nil {
			return nil, err
		}
		claims = append(claims, claim)
	}
	return claims, rows.Err()
}

// MoveClaimTickets re-homes a claim to a different round, all-or-nothing: it
// locks the claim and its current tickets, computes the destination numbers
// per the renumbering strategy, locks and assigns them, then releases the
// originals and updates the claim's round. If the destination cannot supply
// the full quantity the transaction rolls back and the claim keeps its
// original tickets untouched.
func (r *PostgresRepository) MoveClaimTickets(ctx context.Context, claimID uuid.UUID, toRound int, strategy domain.RenumberStrategy, numberShift int) ([]int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin claim move: %w", err)
	}
	defer tx.Rollback(ctx)

	var claim domain.Claim
	err = tx.QueryRow(ctx, `
		SELECT id, campaign_id, round_number, total_qty, status
		FROM claims WHERE id = $1
		FOR UPDATE
	`, claimID).Scan(&claim.ID, &claim.CampaignID, &claim.RoundNumber, &claim.TotalQty, &claim.Status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrClaimNotFound
		}
		return nil, err
	}
	if claim.Status == domain.ClaimExpired {
		return nil, fmt.Errorf("%w: cannot move expired claim %s", ErrInvalidTransition, claimID)
	}
	if claim.RoundNumber == toRound {
		return nil, fmt.Errorf("%w: claim %s is already in round %d", ErrInvalidTransition, claimID, toRound)
	}

	var destClosed bool
	err = tx.QueryRow(ctx, `
		SELECT closed FROM rounds WHERE campaign_id = $1 AND round_number = $2
	`, claim.CampaignID, toRound).Scan(&destClosed)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrRoundNotFound
		}
		return nil, err
	}
	if destClosed {
		return nil, ErrRoundClosed
	}

	originals, err := lockedTicketNumbers(ctx, tx, `
		SELECT number FROM tickets
		WHERE assigned_claim_id = $1 AND campaign_id = $2 AND round_number = $3 AND status = 'assigned'
		ORDER BY number ASC
		FOR UPDATE
	`, claimID, claim.CampaignID, claim.RoundNumber)
	if err != nil {
		return nil, fmt.Errorf("lock original tickets: %w", err)
	}

	// The move re-assigns the claim's full requested quantity, which also
	// restores the quantity invariant for a claim that somehow lost tickets.
	var targets []int
	switch strategy {
	case domain.RenumberSameNumber, domain.RenumberOffset:
		shift := 0
		if strategy == domain.RenumberOffset {
			shift = numberShift
		}
		wanted := make([]int, 0, len(originals))
		for _, n := range originals {
			wanted = append(wanted, n+shift)
		}
		targets, err = lockedTicketNumbers(ctx, tx, `
			SELECT number FROM tickets
			WHERE campaign_id = $1 AND round_number = $2 AND number = ANY($3) AND status = 'available'
			ORDER BY number ASC
			FOR UPDATE
		`, claim.CampaignID, toRound, wanted)
	case domain.RenumberNextAvailable:
		targets, err = lockedTicketNumbers(ctx, tx, `
			SELECT number FROM tickets
			WHERE campaign_id = $1 AND round_number = $2 AND status = 'available'
			ORDER BY number ASC
			LIMIT $3
			FOR UPDATE
		`, claim.CampaignID, toRound, claim.TotalQty)
	default:
		return nil, fmt.Errorf("unknown renumbering strategy %q", strategy)
	}
	if err != nil {
		return nil, fmt.Errorf("lock destination tickets: %w", err)
	}
	if len(targets) < claim.TotalQty {
		return nil, ErrInsufficientInventory
	}
	targets = targets[:claim.TotalQty]

	result, err := tx.Exec(ctx, `
		UPDATE tickets
		SET status = 'assigned', assigned_claim_id = $1, updated_at = NOW()
		WHERE campaign_id = $2 AND round_number = $3 AND number = ANY($4) AND status = 'available'
	`, claimID, claim.CampaignID, toRound, targets)
	if err != nil {
		return nil, fmt.Errorf("assign destination tickets: %w", err)
	}
	if int(result.RowsAffected()) != claim.TotalQty {
		return nil, fmt.Errorf("expected to assign %d tickets in round %d, assigned %d", claim.TotalQty, toRound, result.RowsAffected())
	}

	_, err = tx.Exec(ctx, `
		UPDATE tickets
		SET status = 'available', assigned_claim_id = NULL, updated_at = NOW()
		WHERE assigned_claim_id = $1 AND round_number = $2 AND status = 'assigned'
	`, claimID, claim.RoundNumber)
	if err != nil {
		return nil, fmt.Errorf("release original tickets: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE claims SET round_number = $1, updated_at = NOW() WHERE id = $2
	`, toRound, claimID)
	if err != nil {
		return nil, fmt.Errorf("update claim round: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit claim move: %w", err)
	}
	return targets, nil
}

func lockedTicketNumbers(ctx context.Context, tx pgx.Tx, query string, args ...interface{}) ([]int, error) {
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var numbers []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		numbers = append(numbers, n)
	}
	return numbers, rows.Err()
}
