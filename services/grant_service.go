package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"token-vesting-service/ledger"
	"token-vesting-service/metrics"
	"token-vesting-service/models"
	"token-vesting-service/vesting"

	"github.com/google/uuid"
)

// errUnchanged aborts an UpdateGrant whose target state is already in place.
var errUnchanged = errors.New("grant unchanged")

type GrantService struct {
	Store    ledger.Store
	Decimals int32

	pools *ledger.Locks
}

func NewGrantService(store ledger.Store, decimals int32) *GrantService {
	return &GrantService{Store: store, Decimals: decimals, pools: ledger.NewLocks()}
}

// CreateGrantRequest is one issuance. Amount is in whole tokens ("200", "1.5");
// AmountUnits is in the smallest denomination. Exactly one must be set. Terms left
// nil inherit the campaign defaults.
type CreateGrantRequest struct {
	Beneficiary          string                `json:"beneficiary"`
	CampaignID           string                `json:"campaign_id"` // id or slug
	SourceRef            string                `json:"source_ref,omitempty"`
	Amount               string                `json:"amount,omitempty"`
	AmountUnits          string                `json:"amount_units,omitempty"`
	InstantUnlockPercent *int                  `json:"instant_unlock_percent,omitempty"`
	Vesting              *models.VestingPolicy `json:"vesting,omitempty"`
	GrantedAt            *time.Time            `json:"granted_at,omitempty"`
}

// Create validates and stores a new Eligible grant. asOf is used as the grant time when
// the request carries none.
func (s *GrantService) Create(ctx context.Context, req CreateGrantRequest, asOf time.Time) (*models.Grant, error) {
	beneficiary := strings.TrimSpace(req.Beneficiary)
	if beneficiary == "" {
		return nil, fmt.Errorf("%w: beneficiary is required", ErrInvalidGrant)
	}

	campaign, err := s.resolveCampaign(ctx, req.CampaignID)
	if err != nil {
		return nil, err
	}
	if !campaign.AcceptsGrants() {
		return nil, fmt.Errorf("%w: %s", ErrCampaignNotOpen, campaign.Slug)
	}

	pct := campaign.DefaultInstantUnlockPercent
	if req.InstantUnlockPercent != nil {
		pct = *req.InstantUnlockPercent
	}
	policy := campaign.DefaultVesting
	if req.Vesting != nil {
		policy = *req.Vesting
	}
	if err := vesting.ValidateTerms(pct, policy); err != nil {
		return nil, err
	}

	amount, err := s.parseAmount(req)
	if err != nil {
		return nil, err
	}

	grantedAt := asOf
	if req.GrantedAt != nil {
		grantedAt = *req.GrantedAt
	}

	g := &models.Grant{
		ID:                   uuid.NewString(),
		Beneficiary:          beneficiary,
		CampaignID:           campaign.ID,
		TotalAmount:          amount,
		InstantUnlockPercent: pct,
		Vesting:              policy,
		Status:               models.GrantStatusEligible,
		GrantedAt:            grantedAt,
	}
	if ref := strings.TrimSpace(req.SourceRef); ref != "" {
		g.SourceRef = &ref
	}

	// Pool accounting has to see a stable campaign total while this grant is inserted
	unlock := s.pools.Lock(campaign.ID)
	defer unlock()

	if !campaign.PoolAmount.IsZero() {
		existing, err := s.Store.ListByCampaign(ctx, campaign.ID)
		if err != nil {
			return nil, err
		}
		issued := models.Amount{}
		for i := range existing {
			issued = issued.Add(existing[i].TotalAmount)
		}
		if issued.Add(amount).Cmp(campaign.PoolAmount) > 0 {
			return nil, fmt.Errorf("%w: %s of %s already issued", ErrPoolExhausted, issued, campaign.PoolAmount)
		}
	}

	if err := s.Store.CreateGrant(ctx, g); err != nil {
		return nil, err
	}
	metrics.GrantsCreatedTotal.Inc()
	log.Printf("[GRANT] 🎁 Issued grant %s to %s in %s: %s units (%d%% instant, %s/%d)",
		g.ID, g.Beneficiary, campaign.Slug, g.TotalAmount, g.InstantUnlockPercent, g.Vesting.Kind, g.Vesting.PeriodMonths)
	return vesting.Decorate(g, asOf), nil
}

func (s *GrantService) resolveCampaign(ctx context.Context, ref string) (*models.Campaign, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: campaign_id is required", ErrInvalidGrant)
	}
	if _, err := uuid.Parse(ref); err == nil {
		c, err := s.Store.GetCampaign(ctx, ref)
		if !errors.Is(err, ledger.ErrNotFound) {
			return c, err
		}
	}
	return s.Store.GetCampaignBySlug(ctx, ref)
}

func (s *GrantService) parseAmount(req CreateGrantRequest) (models.Amount, error) {
	var (
		amount models.Amount
		err    error
	)
	switch {
	case req.Amount != "" && req.AmountUnits != "":
		return amount, fmt.Errorf("%w: set either amount or amount_units, not both", ErrInvalidAmount)
	case req.Amount != "":
		amount, err = models.ParseTokenAmount(req.Amount, s.Decimals)
	case req.AmountUnits != "":
		amount, err = models.AmountFromUnits(req.AmountUnits)
	default:
		return amount, fmt.Errorf("%w: amount is required", ErrInvalidAmount)
	}
	if err != nil {
		return amount, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if amount.IsZero() {
		return amount, fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	if amount.Cmp(models.MaxGrantAmount) > 0 {
		return amount, fmt.Errorf("%w: amount exceeds the per-grant maximum", ErrInvalidAmount)
	}
	return amount, nil
}

// Get returns the grant decorated as of asOf.
func (s *GrantService) Get(ctx context.Context, id string, asOf time.Time) (*models.Grant, error) {
	g, err := s.Store.GetGrant(ctx, id)
	if err != nil {
		return nil, err
	}
	return vesting.Decorate(g, asOf), nil
}

func (s *GrantService) ListByBeneficiary(ctx context.Context, beneficiary string, asOf time.Time) ([]models.Grant, error) {
	grants, err := s.Store.ListByBeneficiary(ctx, beneficiary)
	if err != nil {
		return nil, err
	}
	return decorateAll(grants, asOf), nil
}

func (s *GrantService) ListByCampaign(ctx context.Context, campaignID string, asOf time.Time) ([]models.Grant, error) {
	grants, err := s.Store.ListByCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	return decorateAll(grants, asOf), nil
}

func decorateAll(grants []models.Grant, asOf time.Time) []models.Grant {
	for i := range grants {
		vesting.Decorate(&grants[i], asOf)
	}
	return grants
}

// Expire moves an Eligible grant to Expired once its campaign deadline has passed.
// Expiring an already expired grant returns it unchanged.
func (s *GrantService) Expire(ctx context.Context, id string, asOf time.Time) (*models.Grant, error) {
	current, err := s.Store.GetGrant(ctx, id)
	if err != nil {
		return nil, err
	}
	campaign, err := s.Store.GetCampaign(ctx, current.CampaignID)
	if err != nil {
		return nil, err
	}
	return s.expire(ctx, id, campaign, asOf)
}

func (s *GrantService) expire(ctx context.Context, id string, campaign *models.Campaign, asOf time.Time) (*models.Grant, error) {
	updated, err := s.Store.UpdateGrant(ctx, id, func(g *models.Grant) (*models.ClaimEvent, error) {
		switch g.Status {
		case models.GrantStatusExpired:
			return nil, errUnchanged
		case models.GrantStatusVesting, models.GrantStatusCompleted:
			return nil, ErrAlreadyClaimed
		}
		if !campaign.DeadlinePassed(asOf) {
			return nil, ErrNotExpirable
		}
		at := asOf
		g.Status = models.GrantStatusExpired
		g.ExpiredAt = &at
		return nil, nil
	})
	if errors.Is(err, errUnchanged) {
		return s.Get(ctx, id, asOf)
	}
	if errors.Is(err, ledger.ErrConflict) {
		return nil, ErrAlreadyClaimed
	}
	if err != nil {
		return nil, err
	}

	metrics.GrantsExpiredTotal.Inc()
	log.Printf("[EXPIRE] ⌛ Grant %s of %s expired (campaign %s deadline %s)",
		updated.ID, updated.Beneficiary, campaign.Slug, campaign.ClaimDeadline.Format(time.RFC3339))
	return vesting.Decorate(updated, asOf), nil
}

// ExpireOverdue expires every Eligible grant whose campaign deadline is behind asOf and
// returns how many were moved.
func (s *GrantService) ExpireOverdue(ctx context.Context, asOf time.Time) (int, error) {
	eligible, err := s.Store.ListByStatus(ctx, models.GrantStatusEligible)
	if err != nil {
		return 0, err
	}

	campaigns := make(map[string]*models.Campaign)
	expired := 0
	for i := range eligible {
		g := &eligible[i]
		campaign, ok := campaigns[g.CampaignID]
		if !ok {
			campaign, err = s.Store.GetCampaign(ctx, g.CampaignID)
			if err != nil {
				log.Printf("[EXPIRE] Skipping grant %s: campaign %s: %v", g.ID, g.CampaignID, err)
				continue
			}
			campaigns[g.CampaignID] = campaign
		}
		if !campaign.DeadlinePassed(asOf) {
			continue
		}
		updated, err := s.expire(ctx, g.ID, campaign, asOf)
		switch {
		case errors.Is(err, ErrAlreadyClaimed):
			continue // claimed since the listing
		case err != nil:
			return expired, fmt.Errorf("expire grant %s: %w", g.ID, err)
		case updated.Status == models.GrantStatusExpired:
			expired++
		}
	}
	return expired, nil
}

// CompleteFinished persists Vesting -> Completed for grants whose schedule has fully
// unlocked by asOf. Reads already report them as completed; this keeps status queries
// on the stored column accurate.
func (s *GrantService) CompleteFinished(ctx context.Context, asOf time.Time) (int, error) {
	vestingGrants, err := s.Store.ListByStatus(ctx, models.GrantStatusVesting)
	if err != nil {
		return 0, err
	}

	completed := 0
	for i := range vestingGrants {
		if !vesting.Compute(&vestingGrants[i], asOf).FullyUnlocked {
			continue
		}
		_, err := s.Store.UpdateGrant(ctx, vestingGrants[i].ID, func(g *models.Grant) (*models.ClaimEvent, error) {
			if g.Status != models.GrantStatusVesting {
				return nil, errUnchanged
			}
			at, _ := vesting.CompletesAt(g)
			g.Status = models.GrantStatusCompleted
			g.CompletedAt = &at
			return nil, nil
		})
		if errors.Is(err, errUnchanged) || errors.Is(err, ledger.ErrConflict) {
			continue
		}
		if err != nil {
			return completed, fmt.Errorf("complete grant %s: %w", vestingGrants[i].ID, err)
		}
		completed++
		metrics.GrantsCompletedTotal.Inc()
		log.Printf("[COMPLETE] ✅ Grant %s fully unlocked", vestingGrants[i].ID)
	}
	return completed, nil
}
