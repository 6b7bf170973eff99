package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"token-vesting-service/ledger"
	"token-vesting-service/models"
	"token-vesting-service/vesting"
)

func TestClaimLinearGrant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.campaign(t, "Airdrop", nil, 25, linear(3))
	g := f.grant(t, c.ID, "alice", "1000")

	res, err := f.claims.Claim(ctx, g.ID, t0)
	require.NoError(t, err)
	assert.Equal(t, "250", res.InstantAmount.String())
	assert.Equal(t, models.GrantStatusVesting, res.Grant.Status)
	require.NotNil(t, res.Grant.ClaimedAt)
	assert.True(t, t0.Equal(*res.Grant.ClaimedAt))
	assert.Equal(t, "1000", res.Grant.ClaimedTotal.String())
	assert.Equal(t, "750", res.Grant.LockedTotal.String())
	assert.NotEmpty(t, res.EventID)

	got, err := f.grants.Get(ctx, g.ID, vesting.AddMonths(t0, 1))
	require.NoError(t, err)
	assert.Equal(t, "500", got.UnlockedTotal.String())

	got, err = f.grants.Get(ctx, g.ID, vesting.AddMonths(t0, 3))
	require.NoError(t, err)
	assert.Equal(t, "1000", got.UnlockedTotal.String())
	assert.Equal(t, models.GrantStatusCompleted, got.Status)

	events, err := f.store.PendingEvents(ctx, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, res.EventID, events[0].ID)
	assert.Equal(t, "250", events[0].InstantAmount.String())
	assert.Equal(t, "alice", events[0].Beneficiary)
}

func TestClaimFullInstantCompletesImmediately(t *testing.T) {
	f := newFixture(t)
	c := f.campaign(t, "Signup", nil, 100, linear(12))
	g := f.grant(t, c.ID, "alice", "777")

	res, err := f.claims.Claim(context.Background(), g.ID, t0)
	require.NoError(t, err)
	assert.Equal(t, "777", res.InstantAmount.String())
	assert.Equal(t, models.GrantStatusCompleted, res.Grant.Status)
	require.NotNil(t, res.Grant.CompletedAt)
	assert.True(t, t0.Equal(*res.Grant.CompletedAt))
	assert.True(t, res.Grant.LockedTotal.IsZero())
}

func TestClaimStampsUTC(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.campaign(t, "Airdrop", nil, 0, cliff(1))
	g := f.grant(t, c.ID, "alice", "100")

	tokyo := time.FixedZone("JST", 9*60*60)
	claimedAt := time.Date(2025, time.January, 31, 20, 0, 0, 0, time.UTC)
	res, err := f.claims.Claim(ctx, g.ID, claimedAt.In(tokyo))
	require.NoError(t, err)
	require.NotNil(t, res.Grant.ClaimedAt)
	assert.Equal(t, time.UTC, res.Grant.ClaimedAt.Location())
	require.NotNil(t, res.Grant.NextUnlockAt)
	assert.True(t, time.Date(2025, time.February, 28, 20, 0, 0, 0, time.UTC).Equal(*res.Grant.NextUnlockAt))

	stored, err := f.store.GetGrant(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, stored.ClaimedAt.Location())
}

func TestClaimTwiceFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.campaign(t, "Airdrop", nil, 20, cliff(6))
	g := f.grant(t, c.ID, "alice", "5000")

	_, err := f.claims.Claim(ctx, g.ID, t0)
	require.NoError(t, err)
	_, err = f.claims.Claim(ctx, g.ID, t0.Add(time.Hour))
	require.ErrorIs(t, err, ErrAlreadyClaimed)

	stored, err := f.store.GetGrant(ctx, g.ID)
	require.NoError(t, err)
	assert.True(t, t0.Equal(*stored.ClaimedAt), "second claim must not move claimed_at")

	events, err := f.store.PendingEvents(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestClaimExpiredGrant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	deadline := t0.AddDate(0, 0, 3)
	c := f.campaign(t, "Airdrop", &deadline, 25, linear(3))
	g := f.grant(t, c.ID, "alice", "1000")

	_, err := f.grants.Expire(ctx, g.ID, deadline.Add(time.Minute))
	require.NoError(t, err)

	_, err = f.claims.Claim(ctx, g.ID, deadline.Add(time.Hour))
	require.ErrorIs(t, err, ErrCampaignExpired)

	stored, err := f.store.GetGrant(ctx, g.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.ClaimedAt)
	assert.Equal(t, models.GrantStatusExpired, stored.Status)
}

func TestClaimPastDeadlineBeforeSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	deadline := t0.AddDate(0, 0, 3)
	c := f.campaign(t, "Airdrop", &deadline, 25, linear(3))
	late := f.grant(t, c.ID, "alice", "1000")
	onTime := f.grant(t, c.ID, "bob", "1000")

	_, err := f.claims.Claim(ctx, late.ID, deadline.Add(time.Nanosecond))
	require.ErrorIs(t, err, ErrCampaignExpired)
	stored, err := f.store.GetGrant(ctx, late.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GrantStatusEligible, stored.Status)
	assert.Nil(t, stored.ClaimedAt)

	_, err = f.claims.Claim(ctx, onTime.ID, deadline)
	require.NoError(t, err, "claiming exactly at the deadline is allowed")
}

func TestClaimRespectsCampaignStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.campaign(t, "Airdrop", nil, 25, linear(3))
	g := f.grant(t, c.ID, "alice", "1000")

	_, err := f.campaigns.SetStatus(ctx, c.ID, models.CampaignStatusPaused)
	require.NoError(t, err)
	_, err = f.claims.Claim(ctx, g.ID, t0)
	require.ErrorIs(t, err, ErrCampaignInactive)

	// closed campaigns stop issuing but honour existing grants
	_, err = f.campaigns.SetStatus(ctx, c.ID, models.CampaignStatusClosed)
	require.NoError(t, err)
	_, err = f.claims.Claim(ctx, g.ID, t0)
	require.NoError(t, err)

	_, err = f.claims.Claim(ctx, "missing", t0)
	require.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestClaimBeforeCampaignStarts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	starts := t0.AddDate(0, 0, 10)
	c, err := f.campaigns.Create(ctx, CreateCampaignRequest{
		Name: "Future", Type: models.CampaignTypeActivity, Status: models.CampaignStatusActive,
		StartsAt: &starts, DefaultVesting: linear(2),
	}, t0)
	require.NoError(t, err)
	g := f.grant(t, c.ID, "alice", "10")

	_, err = f.claims.Claim(ctx, g.ID, t0)
	require.ErrorIs(t, err, ErrCampaignInactive)
	_, err = f.claims.Claim(ctx, g.ID, starts)
	require.NoError(t, err)
}

func openSQLiteStore(t *testing.T) *ledger.GormStore {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, ledger.AutoMigrate(db))
	return ledger.NewGormStore(db)
}

func TestConcurrentClaimsReleaseOnce(t *testing.T) {
	stores := map[string]ledger.Store{
		"memory": ledger.NewMemoryStore(),
		"sqlite": openSQLiteStore(t),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			campaigns := NewCampaignService(store, 18)
			grants := NewGrantService(store, 18)
			claims := NewClaimService(store)

			starts := t0.AddDate(0, -1, 0)
			c, err := campaigns.Create(ctx, CreateCampaignRequest{
				Name: "Race", Type: models.CampaignTypeCustom, Status: models.CampaignStatusActive,
				StartsAt: &starts, DefaultInstantUnlockPercent: 25, DefaultVesting: linear(3),
			}, starts)
			require.NoError(t, err)
			g, err := grants.Create(ctx, CreateGrantRequest{Beneficiary: "alice", CampaignID: c.ID, AmountUnits: "1000"}, starts)
			require.NoError(t, err)

			var wg sync.WaitGroup
			var ok, already atomic.Int32
			for i := 0; i < 12; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := claims.Claim(ctx, g.ID, t0)
					switch {
					case err == nil:
						ok.Add(1)
					case assert.ErrorIs(t, err, ErrAlreadyClaimed):
						already.Add(1)
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, int32(1), ok.Load())
			assert.Equal(t, int32(11), already.Load())
			events, err := store.PendingEvents(ctx, 0)
			require.NoError(t, err)
			assert.Len(t, events, 1)
		})
	}
}
