package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"token-vesting-service/ledger"
	"token-vesting-service/models"
	"token-vesting-service/vesting"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

type CampaignService struct {
	Store    ledger.Store
	Decimals int32
}

func NewCampaignService(store ledger.Store, decimals int32) *CampaignService {
	return &CampaignService{Store: store, Decimals: decimals}
}

type CreateCampaignRequest struct {
	Name                        string                `json:"name"`
	Slug                        string                `json:"slug,omitempty"`
	Description                 string                `json:"description"`
	Type                        models.CampaignType   `json:"type"`
	Status                      models.CampaignStatus `json:"status,omitempty"`
	StartsAt                    *time.Time            `json:"starts_at,omitempty"`
	ClaimDeadline               *time.Time            `json:"claim_deadline,omitempty"`
	DefaultInstantUnlockPercent int                   `json:"default_instant_unlock_percent"`
	DefaultVesting              models.VestingPolicy  `json:"default_vesting"`
	PoolAmount                  string                `json:"pool_amount,omitempty"` // whole tokens, empty = unbounded
}

func (s *CampaignService) Create(ctx context.Context, req CreateCampaignRequest, asOf time.Time) (*models.Campaign, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidCampaign)
	}
	if !req.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidCampaign, req.Type)
	}
	status := req.Status
	if status == "" {
		status = models.CampaignStatusDraft
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidCampaign, status)
	}
	if err := vesting.ValidateTerms(req.DefaultInstantUnlockPercent, req.DefaultVesting); err != nil {
		return nil, err
	}

	startsAt := asOf
	if req.StartsAt != nil {
		startsAt = *req.StartsAt
	}
	if req.ClaimDeadline != nil && req.ClaimDeadline.Before(startsAt) {
		return nil, fmt.Errorf("%w: claim_deadline is before starts_at", ErrInvalidCampaign)
	}

	var pool models.Amount
	if p := strings.TrimSpace(req.PoolAmount); p != "" {
		var err error
		pool, err = models.ParseTokenAmount(p, s.Decimals)
		if err != nil {
			return nil, fmt.Errorf("%w: pool_amount: %v", ErrInvalidAmount, err)
		}
	}

	campaignSlug := slug.Make(req.Slug)
	if campaignSlug == "" {
		campaignSlug = slug.Make(name)
	}
	if campaignSlug == "" {
		return nil, fmt.Errorf("%w: name does not produce a usable slug", ErrInvalidCampaign)
	}

	c := &models.Campaign{
		ID:                          uuid.NewString(),
		Slug:                        campaignSlug,
		Name:                        name,
		Description:                 req.Description,
		Type:                        req.Type,
		Status:                      status,
		StartsAt:                    startsAt,
		ClaimDeadline:               req.ClaimDeadline,
		DefaultInstantUnlockPercent: req.DefaultInstantUnlockPercent,
		DefaultVesting:              req.DefaultVesting,
		PoolAmount:                  pool,
	}
	if err := s.Store.CreateCampaign(ctx, c); err != nil {
		return nil, err
	}
	c.TypeLabel = c.Type.Label()
	log.Printf("[CAMPAIGN] 📣 Created %s campaign %q (%s)", c.Type, c.Name, c.Slug)
	return c, nil
}

// Get accepts either the campaign id or its slug.
func (s *CampaignService) Get(ctx context.Context, ref string) (*models.Campaign, error) {
	var (
		c   *models.Campaign
		err error
	)
	if _, parseErr := uuid.Parse(ref); parseErr == nil {
		c, err = s.Store.GetCampaign(ctx, ref)
	} else {
		c, err = s.Store.GetCampaignBySlug(ctx, ref)
	}
	if err != nil {
		return nil, err
	}
	c.TypeLabel = c.Type.Label()
	return c, nil
}

func (s *CampaignService) List(ctx context.Context) ([]models.Campaign, error) {
	campaigns, err := s.Store.ListCampaigns(ctx)
	if err != nil {
		return nil, err
	}
	for i := range campaigns {
		campaigns[i].TypeLabel = campaigns[i].Type.Label()
	}
	return campaigns, nil
}

func (s *CampaignService) SetStatus(ctx context.Context, id string, status models.CampaignStatus) (*models.Campaign, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidCampaign, status)
	}
	current, err := s.Store.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	// closed is terminal
	if current.Status == models.CampaignStatusClosed && status != models.CampaignStatusClosed {
		return nil, fmt.Errorf("%w: %s cannot move to %s", ErrCampaignNotOpen, current.Slug, status)
	}
	c, err := s.Store.SetCampaignStatus(ctx, current.ID, status)
	if err != nil {
		return nil, err
	}
	c.TypeLabel = c.Type.Label()
	log.Printf("[CAMPAIGN] Campaign %s is now %s", c.Slug, c.Status)
	return c, nil
}
