package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"token-vesting-service/ledger"
	"token-vesting-service/models"
)

var t0 = time.Date(2025, time.January, 12, 9, 30, 0, 0, time.UTC)

type fixture struct {
	store     *ledger.MemoryStore
	grants    *GrantService
	claims    *ClaimService
	campaigns *CampaignService
	summaries *SummaryService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := ledger.NewMemoryStore()
	return &fixture{
		store:     store,
		grants:    NewGrantService(store, 18),
		claims:    NewClaimService(store),
		campaigns: NewCampaignService(store, 18),
		summaries: NewSummaryService(store),
	}
}

func linear(months int) models.VestingPolicy {
	return models.VestingPolicy{Kind: models.VestingLinear, PeriodMonths: months}
}

func cliff(months int) models.VestingPolicy {
	return models.VestingPolicy{Kind: models.VestingCliff, PeriodMonths: months}
}

func intPtr(v int) *int { return &v }

// campaign creates an active campaign that opened a month before t0.
func (f *fixture) campaign(t *testing.T, name string, deadline *time.Time, pct int, policy models.VestingPolicy) *models.Campaign {
	t.Helper()
	starts := t0.AddDate(0, -1, 0)
	c, err := f.campaigns.Create(context.Background(), CreateCampaignRequest{
		Name:                        name,
		Type:                        models.CampaignTypeReferral,
		Status:                      models.CampaignStatusActive,
		StartsAt:                    &starts,
		ClaimDeadline:               deadline,
		DefaultInstantUnlockPercent: pct,
		DefaultVesting:              policy,
	}, starts)
	require.NoError(t, err)
	return c
}

func (f *fixture) grant(t *testing.T, campaignID, beneficiary, units string) *models.Grant {
	t.Helper()
	g, err := f.grants.Create(context.Background(), CreateGrantRequest{
		Beneficiary: beneficiary,
		CampaignID:  campaignID,
		AmountUnits: units,
	}, t0.Add(-time.Hour))
	require.NoError(t, err)
	return g
}
