package services

import (
	"context"
	"errors"
	"log"
	"time"

	"token-vesting-service/ledger"
	"token-vesting-service/metrics"
	"token-vesting-service/models"
	"token-vesting-service/vesting"

	"github.com/google/uuid"
)

type ClaimService struct {
	Store ledger.Store
}

func NewClaimService(store ledger.Store) *ClaimService {
	return &ClaimService{Store: store}
}

// ClaimResult is what the claim UI shows after a successful claim.
type ClaimResult struct {
	InstantAmount models.Amount `json:"instant_amount"`
	Grant         *models.Grant `json:"grant"`
	EventID       string        `json:"event_id"`
}

// Claim executes the one irreversible transition of a grant: Eligible to Vesting, or
// straight to Completed when nothing stays locked. It is not idempotent; a second
// claim fails with ErrAlreadyClaimed. The grant row, its claimed_at and the settlement
// event are written in one transaction.
func (s *ClaimService) Claim(ctx context.Context, grantID string, asOf time.Time) (*ClaimResult, error) {
	start := time.Now()
	result, err := s.claim(ctx, grantID, asOf)
	metrics.ClaimDuration.Observe(time.Since(start).Seconds())
	metrics.ClaimsTotal.WithLabelValues(claimOutcome(err)).Inc()
	if err != nil {
		log.Printf("[CLAIM] ❌ Claim of grant %s rejected: %v", grantID, err)
		return nil, err
	}
	return result, nil
}

func (s *ClaimService) claim(ctx context.Context, grantID string, asOf time.Time) (*ClaimResult, error) {
	current, err := s.Store.GetGrant(ctx, grantID)
	if err != nil {
		return nil, err
	}
	campaign, err := s.Store.GetCampaign(ctx, current.CampaignID)
	if err != nil {
		return nil, err
	}

	var (
		instant models.Amount
		eventID = uuid.NewString()
	)
	updated, err := s.Store.UpdateGrant(ctx, grantID, func(g *models.Grant) (*models.ClaimEvent, error) {
		switch g.Status {
		case models.GrantStatusVesting, models.GrantStatusCompleted:
			return nil, ErrAlreadyClaimed
		case models.GrantStatusExpired:
			return nil, ErrCampaignExpired
		}
		if campaign.DeadlinePassed(asOf) {
			return nil, ErrCampaignExpired
		}
		if !campaign.AcceptsClaims(asOf) {
			return nil, ErrCampaignInactive
		}

		claimedAt := asOf.UTC()
		g.ClaimedAt = &claimedAt
		g.Status = models.GrantStatusVesting
		u := vesting.Compute(g, claimedAt)
		if u.FullyUnlocked {
			g.Status = models.GrantStatusCompleted
			g.CompletedAt = &claimedAt
		}
		instant = u.Unlocked

		return &models.ClaimEvent{
			ID:            eventID,
			GrantID:       g.ID,
			Beneficiary:   g.Beneficiary,
			CampaignID:    g.CampaignID,
			InstantAmount: instant,
			TotalAmount:   g.TotalAmount,
			Vesting:       vesting.EffectivePolicy(g),
			ClaimedAt:     claimedAt,
		}, nil
	})
	if errors.Is(err, ledger.ErrConflict) {
		return nil, ErrAlreadyClaimed
	}
	if err != nil {
		return nil, err
	}

	log.Printf("[CLAIM] ✅ Grant %s claimed by %s: instant=%s total=%s status=%s",
		updated.ID, updated.Beneficiary, instant, updated.TotalAmount, updated.Status)
	return &ClaimResult{
		InstantAmount: instant,
		Grant:         vesting.Decorate(updated, asOf),
		EventID:       eventID,
	}, nil
}

func claimOutcome(err error) string {
	switch {
	case err == nil:
		return "claimed"
	case errors.Is(err, ErrAlreadyClaimed):
		return "already_claimed"
	case errors.Is(err, ErrCampaignExpired):
		return "expired"
	case errors.Is(err, ErrCampaignInactive):
		return "inactive"
	case errors.Is(err, ledger.ErrNotFound):
		return "not_found"
	}
	return "error"
}
