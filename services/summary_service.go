package services

import (
	"context"
	"time"

	"token-vesting-service/ledger"
	"token-vesting-service/models"
	"token-vesting-service/vesting"
)

type SummaryService struct {
	Store ledger.Store
}

func NewSummaryService(store ledger.Store) *SummaryService {
	return &SummaryService{Store: store}
}

// BeneficiarySummary is the dashboard header for one user.
type BeneficiarySummary struct {
	Beneficiary      string                    `json:"beneficiary"`
	AsOf             time.Time                 `json:"as_of"`
	Totals           vesting.Totals            `json:"totals"`
	ByCampaign       map[string]vesting.Totals `json:"by_campaign"`
	NextUnlockAt     *time.Time                `json:"next_unlock_at,omitempty"`
	NextUnlockAmount models.Amount             `json:"next_unlock_amount"`
}

func (s *SummaryService) ForBeneficiary(ctx context.Context, beneficiary string, asOf time.Time) (*BeneficiarySummary, error) {
	grants, err := s.Store.ListByBeneficiary(ctx, beneficiary)
	if err != nil {
		return nil, err
	}

	out := &BeneficiarySummary{
		Beneficiary: beneficiary,
		AsOf:        asOf,
		Totals:      vesting.Summarize(grants, asOf),
		ByCampaign:  vesting.SummarizeByCampaign(grants, asOf),
	}
	// earliest upcoming release across all grants; same-instant releases are summed
	for i := range grants {
		u := vesting.Compute(&grants[i], asOf)
		if u.NextUnlockAt == nil {
			continue
		}
		switch {
		case out.NextUnlockAt == nil || u.NextUnlockAt.Before(*out.NextUnlockAt):
			out.NextUnlockAt = u.NextUnlockAt
			out.NextUnlockAmount = u.NextUnlockAmount
		case u.NextUnlockAt.Equal(*out.NextUnlockAt):
			out.NextUnlockAmount = out.NextUnlockAmount.Add(u.NextUnlockAmount)
		}
	}
	return out, nil
}

// CampaignStats is the admin view of one campaign.
type CampaignStats struct {
	Campaign              *models.Campaign           `json:"campaign"`
	AsOf                  time.Time                  `json:"as_of"`
	Totals                vesting.Totals             `json:"totals"`
	GrantsByStatus        map[models.GrantStatus]int `json:"grants_by_status"`
	EligibleBeneficiaries int                        `json:"eligible_beneficiaries"`
	ClaimedBeneficiaries  int                        `json:"claimed_beneficiaries"`
	ConversionPercent     int                        `json:"conversion_percent"`
	PoolRemaining         *models.Amount             `json:"pool_remaining,omitempty"`
}

func (s *SummaryService) ForCampaign(ctx context.Context, campaignID string, asOf time.Time) (*CampaignStats, error) {
	campaign, err := s.Store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	campaign.TypeLabel = campaign.Type.Label()

	grants, err := s.Store.ListByCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	stats := &CampaignStats{
		Campaign:       campaign,
		AsOf:           asOf,
		Totals:         vesting.Summarize(grants, asOf),
		GrantsByStatus: make(map[models.GrantStatus]int),
	}

	claimed := make(map[string]bool)
	eligible := make(map[string]bool)
	issued := models.Amount{}
	for i := range grants {
		g := &grants[i]
		stats.GrantsByStatus[vesting.EffectiveStatus(g, asOf)]++
		issued = issued.Add(g.TotalAmount)
		switch {
		case g.IsClaimed():
			claimed[g.Beneficiary] = true
		case g.Status == models.GrantStatusEligible:
			eligible[g.Beneficiary] = true
		}
	}
	// a beneficiary who claimed anything counts as converted
	for b := range claimed {
		delete(eligible, b)
	}
	stats.ClaimedBeneficiaries = len(claimed)
	stats.EligibleBeneficiaries = len(eligible)
	if n := len(claimed) + len(eligible); n > 0 {
		stats.ConversionPercent = len(claimed) * 100 / n
	}
	if !campaign.PoolAmount.IsZero() {
		remaining := campaign.PoolAmount.Sub(issued)
		stats.PoolRemaining = &remaining
	}
	return stats, nil
}

// ForAllCampaigns reports every campaign, ordered as the store lists them.
func (s *SummaryService) ForAllCampaigns(ctx context.Context, asOf time.Time) ([]CampaignStats, error) {
	campaigns, err := s.Store.ListCampaigns(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]CampaignStats, 0, len(campaigns))
	for _, c := range campaigns {
		stats, err := s.ForCampaign(ctx, c.ID, asOf)
		if err != nil {
			return nil, err
		}
		out = append(out, *stats)
	}
	return out, nil
}
