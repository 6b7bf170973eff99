package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-vesting-service/ledger"
	"token-vesting-service/models"
	"token-vesting-service/vesting"
)

func TestCreateCampaign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	deadline := t0.AddDate(0, 2, 0)

	c, err := f.campaigns.Create(ctx, CreateCampaignRequest{
		Name:                        "  Presale Stage 2 ",
		Type:                        models.CampaignTypePresale,
		ClaimDeadline:               &deadline,
		DefaultInstantUnlockPercent: 20,
		DefaultVesting:              cliff(6),
		PoolAmount:                  "1000000.5",
	}, t0)
	require.NoError(t, err)

	assert.Equal(t, "Presale Stage 2", c.Name)
	assert.Equal(t, "presale-stage-2", c.Slug)
	assert.Equal(t, "Presale", c.TypeLabel)
	assert.Equal(t, models.CampaignStatusDraft, c.Status, "campaigns start as drafts")
	assert.True(t, t0.Equal(c.StartsAt))
	assert.Equal(t, "1000000500000000000000000", c.PoolAmount.String())

	bySlug, err := f.campaigns.Get(ctx, "presale-stage-2")
	require.NoError(t, err)
	assert.Equal(t, c.ID, bySlug.ID)
	byID, err := f.campaigns.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Presale", byID.TypeLabel)

	_, err = f.campaigns.Create(ctx, CreateCampaignRequest{
		Name: "Presale stage 2", Type: models.CampaignTypePresale, DefaultVesting: linear(1),
	}, t0)
	assert.ErrorIs(t, err, ledger.ErrDuplicateCampaign)

	custom, err := f.campaigns.Create(ctx, CreateCampaignRequest{
		Name: "Launch Week", Slug: "Launch Week 2025!", Type: models.CampaignTypeSocial,
		DefaultVesting: models.VestingPolicy{Kind: models.VestingInstant},
	}, t0)
	require.NoError(t, err)
	assert.Equal(t, "launch-week-2025", custom.Slug)

	list, err := f.campaigns.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, item := range list {
		assert.NotEmpty(t, item.TypeLabel)
	}
}

func TestCreateCampaignValidation(t *testing.T) {
	f := newFixture(t)
	before := t0.AddDate(0, 0, -1)

	tests := []struct {
		name    string
		req     CreateCampaignRequest
		wantErr error
	}{
		{"missing name", CreateCampaignRequest{Type: models.CampaignTypeSignup, DefaultVesting: linear(1)}, ErrInvalidCampaign},
		{"unknown type", CreateCampaignRequest{Name: "x", Type: "lottery", DefaultVesting: linear(1)}, ErrInvalidCampaign},
		{"unknown status", CreateCampaignRequest{Name: "x", Type: models.CampaignTypeSignup, Status: "archived", DefaultVesting: linear(1)}, ErrInvalidCampaign},
		{"deadline before start", CreateCampaignRequest{Name: "x", Type: models.CampaignTypeSignup, ClaimDeadline: &before, DefaultVesting: linear(1)}, ErrInvalidCampaign},
		{"bad policy", CreateCampaignRequest{Name: "x", Type: models.CampaignTypeSignup, DefaultVesting: cliff(0)}, vesting.ErrInvalidPolicy},
		{"bad percent", CreateCampaignRequest{Name: "x", Type: models.CampaignTypeSignup, DefaultInstantUnlockPercent: 150, DefaultVesting: linear(1)}, vesting.ErrInvalidPercent},
		{"bad pool", CreateCampaignRequest{Name: "x", Type: models.CampaignTypeSignup, DefaultVesting: linear(1), PoolAmount: "lots"}, ErrInvalidAmount},
		{"unsluggable name", CreateCampaignRequest{Name: "!!!", Type: models.CampaignTypeSignup, DefaultVesting: linear(1)}, ErrInvalidCampaign},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.campaigns.Create(context.Background(), tt.req, t0)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSetCampaignStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.campaign(t, "Activity Rewards", nil, 0, linear(2))

	paused, err := f.campaigns.SetStatus(ctx, c.ID, models.CampaignStatusPaused)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusPaused, paused.Status)
	assert.Equal(t, "Referral", paused.TypeLabel)

	_, err = f.campaigns.SetStatus(ctx, c.ID, "deleted")
	assert.ErrorIs(t, err, ErrInvalidCampaign)

	_, err = f.campaigns.SetStatus(ctx, "00000000-0000-0000-0000-000000000000", models.CampaignStatusActive)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	closed, err := f.campaigns.SetStatus(ctx, c.ID, models.CampaignStatusClosed)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusClosed, closed.Status)
	_, err = f.campaigns.SetStatus(ctx, c.ID, models.CampaignStatusClosed)
	require.NoError(t, err, "closing twice is a no-op")

	for _, status := range []models.CampaignStatus{models.CampaignStatusActive, models.CampaignStatusDraft, models.CampaignStatusPaused} {
		_, err = f.campaigns.SetStatus(ctx, c.ID, status)
		assert.ErrorIs(t, err, ErrCampaignNotOpen, "closed cannot move to %s", status)
	}
	got, err := f.campaigns.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusClosed, got.Status)
}
