package app

import (
	"context"
	"log"
	"time"

	"github.com/rifaops/ticket-service/internal/metrics"
)

// SweepExpiredClaims releases the tickets of pending claims whose hold
// deadline has passed. It processes one bounded batch per call; the scheduler
// invokes it frequently enough that backlogs drain across runs. A claim that
// was confirmed between the listing and the release is skipped by the guarded
// cancel, so a racing payment is never undone.
func (s *Service) SweepExpiredClaims(ctx context.Context) (int, error) {
	claims, err := s.repo.ListExpiredPendingClaims(ctx, time.Now().UTC(), expirySweepBatchSize)
	if err != nil {
		return 0, err
	}
	if len(claims) == 0 {
		return 0, nil
	}

	swept := 0
	for _, claim := range claims {
		if err := s.Cancel(ctx, claim.ID); err != nil {
			log.Printf("level=warn component=sweeper msg=\"failed to expire claim\" claim_id=%s err=%v", claim.ID, err)
			continue
		}
		swept++
		metrics.ExpiredClaimsSwept.Inc()
	}

	log.Printf("level=info component=sweeper msg=\"sweep finished\" candidates=%d swept=%d", len(claims), swept)
	return swept, nil
}
