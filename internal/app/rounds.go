/**
 * @description
 * Round transition operations: capacity expansion, advancing a campaign to a
 * new round, closing rounds, and moving claims (and their tickets) between
 * rounds. Each claim move is all-or-nothing inside one database transaction;
 * a destination round that cannot supply the quantity leaves the claim's
 * original tickets untouched.
 */

package app

import (
	"context"
	"fmt"
	"log"

	"github.com/rifaops/ticket-service/internal/domain"
)

// ExpandCapacity idempotently generates additional available tickets for the
// requested number range. Existing tickets, assigned or not, are never touched.
func (s *Service) ExpandCapacity(ctx context.Context, req domain.ExpandRoundRequest) (int64, error) {
	if _, err := s.repo.FindCampaignByID(ctx, req.CampaignID); err != nil {
		return 0, err
	}

	created, err := s.repo.GenerateTickets(ctx, req.CampaignID, req.RoundNumber, req.FirstNumber, req.LastNumber)
	if err != nil {
		return 0, err
	}

	log.Printf("level=info component=service flow=expand_capacity msg=\"inventory generated\" campaign_id=%d round=%d range=[%d,%d] created=%d",
		req.CampaignID, req.RoundNumber, req.FirstNumber, req.LastNumber, created)
	return created, nil
}

// CloseRound marks a round ineligible for new reservations. Data is kept;
// closing is administrative and not reversed in normal operation.
func (s *Service) CloseRound(ctx context.Context, campaignID int64, roundNumber int) error {
	if err := s.repo.CloseRound(ctx, campaignID, roundNumber); err != nil {
		return err
	}
	log.Printf("level=info component=service flow=close_round msg=\"round closed\" campaign_id=%d round=%d", campaignID, roundNumber)
	return nil
}

// AdvanceRound creates the next round with the given capacity, generates its
// inventory, and moves the campaign's current-round pointer. This is the only
// operation that mutates the pointer.
func (s *Service) AdvanceRound(ctx context.Context, campaignID int64, toRound, capacity int) error {
	campaign, err := s.repo.FindCampaignByID(ctx, campaignID)
	if err != nil {
		return err
	}
	if toRound <= campaign.CurrentRound {
		return fmt.Errorf("target round %d must be greater than current round %d", toRound, campaign.CurrentRound)
	}

	if err := s.repo.CreateRound(ctx, campaignID, toRound, capacity); err != nil {
		return fmt.Errorf("create round: %w", err)
	}
	if capacity > 0 {
		if _, err := s.repo.GenerateTickets(ctx, campaignID, toRound, 1, capacity); err != nil {
			return fmt.Errorf("generate round inventory: %w", err)
		}
	}
	if err := s.repo.AdvanceCampaignRound(ctx, campaignID, toRound); err != nil {
		return err
	}

	log.Printf("level=info component=service flow=advance_round msg=\"campaign advanced\" campaign_id=%d round=%d capacity=%d", campaignID, toRound, capacity)
	return nil
}

// MoveClaims re-homes each listed claim from one round to another. Moves are
// independent: one claim's failure rolls back only that claim and is reported
// in the result, while the rest proceed.
func (s *Service) MoveClaims(ctx context.Context, req domain.MoveClaimsRequest) (*domain.MoveClaimsResult, error) {
	if req.FromRound == req.ToRound {
		return nil, fmt.Errorf("source and destination rounds are both %d", req.FromRound)
	}
	if len(req.ClaimIDs) == 0 {
		return nil, fmt.Errorf("no claim ids given")
	}

	result := &domain.MoveClaimsResult{}
	for _, claimID := range req.ClaimIDs {
		claim, err := s.repo.FindClaimByID(ctx, claimID)
		if err != nil {
			result.Failed = append(result.Failed, domain.FailedClaimMove{ClaimID: claimID, Error: err.Error()})
			continue
		}
		if claim.CampaignID != req.CampaignID || claim.RoundNumber != req.FromRound {
			result.Failed = append(result.Failed, domain.FailedClaimMove{
				ClaimID: claimID,
				Error:   fmt.Sprintf("claim belongs to campaign %d round %d, not campaign %d round %d", claim.CampaignID, claim.RoundNumber, req.CampaignID, req.FromRound),
			})
			continue
		}

		numbers, err := s.repo.MoveClaimTickets(ctx, claimID, req.ToRound, req.Strategy, req.NumberShift)
		if err != nil {
			log.Printf("level=warn component=service flow=move_claims msg=\"claim move rolled back\" claim_id=%s to_round=%d err=%v", claimID, req.ToRound, err)
			result.Failed = append(result.Failed, domain.FailedClaimMove{ClaimID: claimID, Error: err.Error()})
			continue
		}

		log.Printf("level=info component=service flow=move_claims msg=\"claim moved\" claim_id=%s from_round=%d to_round=%d strategy=%s", claimID, req.FromRound, req.ToRound, req.Strategy)
		result.Moved = append(result.Moved, domain.MovedClaim{ClaimID: claimID, Numbers: numbers})
	}
	return result, nil
}

// CreateCampaign registers a campaign and, when a capacity is given, generates
// its first round's inventory.
func (s *Service) CreateCampaign(ctx context.Context, req domain.CreateCampaignRequest) (*domain.Campaign, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("campaign name is required")
	}

	campaign := &domain.Campaign{
		Name:      req.Name,
		UnitPrice: req.UnitPrice,
		Active:    true,
	}
	if err := s.repo.CreateCampaign(ctx, campaign); err != nil {
		return nil, err
	}

	if req.Capacity > 0 {
		if _, err := s.repo.GenerateTickets(ctx, campaign.ID, campaign.CurrentRound, 1, req.Capacity); err != nil {
			return nil, fmt.Errorf("generate initial inventory: %w", err)
		}
	}

	log.Printf("level=info component=service flow=create_campaign msg=\"campaign created\" campaign_id=%d capacity=%d", campaign.ID, req.Capacity)
	return campaign, nil
}
