package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rifaops/ticket-service/internal/domain"
)

// RecordFinding persists a reconciliation discrepancy. Findings are unique per
// (payment_id, finding) so repeated passes over the same window insert nothing
// new; the bool reports whether this call created the row.
func (r *PostgresRepository) RecordFinding(ctx context.Context, finding *domain.ReconciliationFinding) (bool, error) {
	if finding.ID == uuid.Nil {
		finding.ID = uuid.New()
	}

	result, err := r.db.Exec(ctx, `
		INSERT INTO reconciliation_findings (id, payment_id, finding, claim_id, amount, detail, resolved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, NOW())
		ON CONFLICT (payment_id, finding) DO NOTHING
	`, finding.ID, finding.PaymentID, finding.Finding, finding.ClaimID, finding.Amount, finding.Detail)
	if err != nil {
		return false, fmt.Errorf("insert finding: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// ListFindings returns recorded discrepancies for the admin report view,
// newest first.
func (r *PostgresRepository) ListFindings(ctx context.Context, opts domain.FindingListOptions) ([]domain.ReconciliationFinding, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, payment_id, finding, claim_id, amount, detail, resolved, created_at
		FROM reconciliation_findings
		WHERE ($1 = '' OR finding = $1)
		  AND (NOT $2 OR resolved = FALSE)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.db.Query(ctx, query, string(opts.Finding), opts.Unresolved, limit, opts.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var findings []domain.ReconciliationFinding
	for rows.Next() {
		var f domain.ReconciliationFinding
		if err := rows.Scan(&f.ID, &f.PaymentID, &f.Finding, &f.ClaimID, &f.Amount, &f.Detail, &f.Resolved, &f.CreatedAt); err != nil {
			return nil, err
		}
		findings = append(findings, f)
	}
	return findings, rows.Err()
}

// ResolveFinding marks a finding as handled by an operator. Returns false when
// the finding does not exist or was already resolved.
func (r *PostgresRepository) ResolveFinding(ctx context.Context, findingID uuid.UUID) (bool, error) {
	result, err := r.db.Exec(ctx, `
		UPDATE reconciliation_findings SET resolved = TRUE WHERE id = $1 AND resolved = FALSE
	`, findingID)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

// ResolveFindingByPayment marks the finding keyed by (payment_id, finding) as
// handled. Used by the reconciler after a successful automated repair.
func (r *PostgresRepository) ResolveFindingByPayment(ctx context.Context, paymentID string, finding domain.FindingType) (bool, error) {
	result, err := r.db.Exec(ctx, `
		UPDATE reconciliation_findings SET resolved = TRUE
		WHERE payment_id = $1 AND finding = $2 AND resolved = FALSE
	`, paymentID, finding)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}
