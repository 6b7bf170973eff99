// Package ledger stores grants, campaigns and the claim-event outbox.
//
// Two implementations share one contract: MemoryStore (tests, local runs) and
// GormStore (Postgres in production). Grant mutation goes through UpdateGrant, which
// serializes writers per grant id and records any returned ClaimEvent atomically with
// the grant's new lifecycle state.
package ledger

import (
	"context"
	"errors"
	"time"

	"token-vesting-service/models"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateGrant    = errors.New("grant already issued for this source reference")
	ErrDuplicateCampaign = errors.New("campaign slug already exists")
	ErrConflict          = errors.New("grant was modified concurrently")
)

// UpdateFunc mutates g in place. Only the lifecycle fields (Status, ClaimedAt,
// ExpiredAt, CompletedAt) are persisted. A non-nil event is stored in the same
// transaction. Returning an error aborts without writing anything.
type UpdateFunc func(g *models.Grant) (*models.ClaimEvent, error)

type GrantLedger interface {
	CreateGrant(ctx context.Context, g *models.Grant) error
	GetGrant(ctx context.Context, id string) (*models.Grant, error)
	ListByBeneficiary(ctx context.Context, beneficiary string) ([]models.Grant, error)
	ListByCampaign(ctx context.Context, campaignID string) ([]models.Grant, error)
	ListByStatus(ctx context.Context, status models.GrantStatus) ([]models.Grant, error)
	UpdateGrant(ctx context.Context, id string, fn UpdateFunc) (*models.Grant, error)
}

type CampaignStore interface {
	CreateCampaign(ctx context.Context, c *models.Campaign) error
	GetCampaign(ctx context.Context, id string) (*models.Campaign, error)
	GetCampaignBySlug(ctx context.Context, slug string) (*models.Campaign, error)
	ListCampaigns(ctx context.Context) ([]models.Campaign, error)
	SetCampaignStatus(ctx context.Context, id string, status models.CampaignStatus) (*models.Campaign, error)
}

// Outbox holds claim events awaiting delivery to the settlement service.
type Outbox interface {
	// PendingEvents returns undelivered events, fewest attempts first, then oldest.
	PendingEvents(ctx context.Context, limit int) ([]models.ClaimEvent, error)
	MarkDelivered(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, reason string) error
}

type Store interface {
	GrantLedger
	CampaignStore
	Outbox
}
