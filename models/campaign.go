package models

import (
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// CampaignType is the issuing program behind a cohort of grants
type CampaignType string

const (
	CampaignTypeSignup   CampaignType = "signup"
	CampaignTypePresale  CampaignType = "presale"
	CampaignTypeActivity CampaignType = "activity"
	CampaignTypeReferral CampaignType = "referral"
	CampaignTypeSocial   CampaignType = "social"
	CampaignTypeCustom   CampaignType = "custom"
)

func (t CampaignType) Valid() bool {
	switch t {
	case CampaignTypeSignup, CampaignTypePresale, CampaignTypeActivity,
		CampaignTypeReferral, CampaignTypeSocial, CampaignTypeCustom:
		return true
	}
	return false
}

// Label is the dashboard display name, e.g. "Referral". A Caser keeps state between
// calls, so each call gets its own.
func (t CampaignType) Label() string {
	return cases.Title(language.English).String(string(t))
}

type CampaignStatus string

const (
	CampaignStatusDraft  CampaignStatus = "draft"
	CampaignStatusActive CampaignStatus = "active"
	CampaignStatusPaused CampaignStatus = "paused"
	CampaignStatusClosed CampaignStatus = "closed" // no new grants; existing grants stay claimable until the deadline
)

func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusActive, CampaignStatusPaused, CampaignStatusClosed:
		return true
	}
	return false
}

// Campaign defines grant terms for a cohort of beneficiaries
type Campaign struct {
	ID            string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Slug          string         `gorm:"uniqueIndex;not null" json:"slug"`
	Name          string         `gorm:"not null" json:"name"`
	Description   string         `gorm:"type:text" json:"description"`
	Type          CampaignType   `gorm:"type:varchar(16);not null" json:"type"`
	Status        CampaignStatus `gorm:"type:varchar(16);not null;default:'draft'" json:"status"`
	StartsAt      time.Time      `gorm:"not null" json:"starts_at"`
	ClaimDeadline *time.Time     `json:"claim_deadline,omitempty"`

	// Terms applied to grants that don't carry their own
	DefaultInstantUnlockPercent int           `gorm:"not null;default:0" json:"default_instant_unlock_percent"`
	DefaultVesting              VestingPolicy `gorm:"embedded;embeddedPrefix:default_vesting_" json:"default_vesting"`

	PoolAmount Amount `gorm:"type:varchar(80);not null" json:"pool_amount"` // 0 = unbounded

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	TypeLabel string `gorm:"-" json:"type_label,omitempty"`
}

// DeadlinePassed is true strictly after the claim deadline.
func (c *Campaign) DeadlinePassed(asOf time.Time) bool {
	return c.ClaimDeadline != nil && asOf.After(*c.ClaimDeadline)
}

// AcceptsClaims reports whether the campaign status allows claims at asOf.
func (c *Campaign) AcceptsClaims(asOf time.Time) bool {
	if c.Status != CampaignStatusActive && c.Status != CampaignStatusClosed {
		return false
	}
	return !asOf.Before(c.StartsAt)
}

// AcceptsGrants reports whether new grants may be issued into the campaign.
func (c *Campaign) AcceptsGrants() bool {
	return c.Status != CampaignStatusClosed
}
