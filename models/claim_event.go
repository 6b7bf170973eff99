package models

import "time"

// ClaimEvent is the settlement notification written in the same transaction as a claim.
// The settlement dispatcher delivers it at-least-once; receivers dedupe on ID.
type ClaimEvent struct {
	ID            string        `gorm:"primaryKey;type:varchar(36)" json:"id"`
	GrantID       string        `gorm:"index;not null" json:"grant_id"`
	Beneficiary   string        `gorm:"index;not null" json:"beneficiary"`
	CampaignID    string        `gorm:"not null" json:"campaign_id"`
	InstantAmount Amount        `gorm:"type:varchar(80);not null" json:"instant_amount"`
	TotalAmount   Amount        `gorm:"type:varchar(80);not null" json:"total_amount"`
	Vesting       VestingPolicy `gorm:"embedded;embeddedPrefix:vesting_" json:"vesting"`
	ClaimedAt     time.Time     `gorm:"not null" json:"claimed_at"`
	Attempts      int           `gorm:"not null;default:0" json:"-"`
	LastError     string        `gorm:"type:text" json:"-"`
	DeliveredAt   *time.Time    `gorm:"index" json:"-"`
	CreatedAt     time.Time     `gorm:"autoCreateTime" json:"-"`
}
