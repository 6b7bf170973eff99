package models

import (
	"time"
)

// GrantStatus tracks where a grant sits in its claim/vesting lifecycle
type GrantStatus string

const (
	GrantStatusEligible GrantStatus = "eligible"
	// GrantStatusClaimed is transient: a claim resolves straight to vesting or completed
	// inside the claim transaction and is never persisted.
	GrantStatusClaimed   GrantStatus = "claimed"
	GrantStatusVesting   GrantStatus = "vesting"
	GrantStatusCompleted GrantStatus = "completed"
	GrantStatusExpired   GrantStatus = "expired"
)

// Valid reports whether s is a status a stored grant can be in.
func (s GrantStatus) Valid() bool {
	switch s {
	case GrantStatusEligible, GrantStatusVesting, GrantStatusCompleted, GrantStatusExpired:
		return true
	}
	return false
}

// VestingKind is the policy that releases the non-instant remainder
type VestingKind string

const (
	VestingInstant VestingKind = "instant"
	VestingLinear  VestingKind = "linear"
	VestingCliff   VestingKind = "cliff"
)

type VestingPolicy struct {
	Kind         VestingKind `json:"kind" gorm:"column:kind;type:varchar(16);not null"`
	PeriodMonths int         `json:"period_months" gorm:"column:period_months;not null;default:0"`
}

// Grant is a single reward commitment (presale allocation, airdrop, referral bonus).
// TotalAmount, InstantUnlockPercent and Vesting are fixed at issuance; stores only ever
// write the lifecycle columns (status, claimed_at, expired_at, completed_at).
type Grant struct {
	ID                   string        `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Beneficiary          string        `gorm:"index;not null" json:"beneficiary"`
	CampaignID           string        `gorm:"index;not null" json:"campaign_id"`
	SourceRef            *string       `gorm:"uniqueIndex" json:"source_ref,omitempty"` // issuing service's event id
	TotalAmount          Amount        `gorm:"type:varchar(80);not null" json:"total_amount"`
	InstantUnlockPercent int           `gorm:"not null" json:"instant_unlock_percent"`
	Vesting              VestingPolicy `gorm:"embedded;embeddedPrefix:vesting_" json:"vesting"`
	Status               GrantStatus   `gorm:"type:varchar(16);index;not null" json:"status"`
	GrantedAt            time.Time     `gorm:"not null" json:"granted_at"`
	ClaimedAt            *time.Time    `json:"claimed_at,omitempty"`
	ExpiredAt            *time.Time    `json:"expired_at,omitempty"`
	CompletedAt          *time.Time    `json:"completed_at,omitempty"`
	CreatedAt            time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time     `gorm:"autoUpdateTime" json:"updated_at"`

	// Display-only, recomputed on every read (never the source of truth)
	ClaimedTotal     Amount     `gorm:"-" json:"claimed_total"`
	UnlockedTotal    Amount     `gorm:"-" json:"unlocked_total"`
	LockedTotal      Amount     `gorm:"-" json:"locked_total"`
	NextUnlockAt     *time.Time `gorm:"-" json:"next_unlock_at,omitempty"`
	NextUnlockAmount Amount     `gorm:"-" json:"next_unlock_amount"`
	ProgressPercent  int        `gorm:"-" json:"progress_percent"`
}

// IsClaimed is true once the claim transaction has run.
func (g *Grant) IsClaimed() bool {
	return g.Status == GrantStatusVesting || g.Status == GrantStatusCompleted
}

// Clone returns a copy that shares no pointers with g.
func (g *Grant) Clone() *Grant {
	c := *g
	c.SourceRef = cloneString(g.SourceRef)
	c.ClaimedAt = cloneTime(g.ClaimedAt)
	c.ExpiredAt = cloneTime(g.ExpiredAt)
	c.CompletedAt = cloneTime(g.CompletedAt)
	c.NextUnlockAt = cloneTime(g.NextUnlockAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
