package ledger

import (
	"context"
	"errors"
	"time"

	"token-vesting-service/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore persists the ledger through GORM (Postgres in production, SQLite in tests).
//
// fn passed to UpdateGrant runs inside the transaction and must not touch the store
// through another connection.
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

// AutoMigrate creates or updates the ledger tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.Campaign{}, &models.Grant{}, &models.ClaimEvent{})
}

func (s *GormStore) CreateGrant(ctx context.Context, g *models.Grant) error {
	// source_ref carries a unique index; a replayed issuance event inserts nothing
	res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(g)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDuplicateGrant
	}
	return nil
}

func (s *GormStore) GetGrant(ctx context.Context, id string) (*models.Grant, error) {
	var g models.Grant
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&g).Error; err != nil {
		return nil, translate(err)
	}
	return &g, nil
}

func (s *GormStore) ListByBeneficiary(ctx context.Context, beneficiary string) ([]models.Grant, error) {
	return s.listGrants(ctx, "beneficiary = ?", beneficiary)
}

func (s *GormStore) ListByCampaign(ctx context.Context, campaignID string) ([]models.Grant, error) {
	return s.listGrants(ctx, "campaign_id = ?", campaignID)
}

func (s *GormStore) ListByStatus(ctx context.Context, status models.GrantStatus) ([]models.Grant, error) {
	return s.listGrants(ctx, "status = ?", status)
}

func (s *GormStore) listGrants(ctx context.Context, query string, arg interface{}) ([]models.Grant, error) {
	grants := make([]models.Grant, 0)
	if err := s.DB.WithContext(ctx).
		Where(query, arg).
		Order("granted_at ASC, id ASC").
		Find(&grants).Error; err != nil {
		return nil, err
	}
	return grants, nil
}

// UpdateGrant locks the row, applies fn and writes the lifecycle columns back only if
// the status is still the one fn saw.
func (s *GormStore) UpdateGrant(ctx context.Context, id string, fn UpdateFunc) (*models.Grant, error) {
	var updated *models.Grant
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var g models.Grant
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&g).Error; err != nil {
			return translate(err)
		}
		observed := g.Status

		working := g.Clone()
		event, err := fn(working)
		if err != nil {
			return err
		}

		working.UpdatedAt = time.Now()
		res := tx.Model(&models.Grant{}).
			Where("id = ? AND status = ?", id, observed).
			Updates(map[string]interface{}{
				"status":       working.Status,
				"claimed_at":   working.ClaimedAt,
				"expired_at":   working.ExpiredAt,
				"completed_at": working.CompletedAt,
				"updated_at":   working.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}

		if event != nil {
			if err := tx.Create(event).Error; err != nil {
				return err
			}
		}
		updated = working
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *GormStore) CreateCampaign(ctx context.Context, c *models.Campaign) error {
	res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(c)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDuplicateCampaign
	}
	return nil
}

func (s *GormStore) GetCampaign(ctx context.Context, id string) (*models.Campaign, error) {
	var c models.Campaign
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *GormStore) GetCampaignBySlug(ctx context.Context, slug string) (*models.Campaign, error) {
	var c models.Campaign
	if err := s.DB.WithContext(ctx).Where("slug = ?", slug).First(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *GormStore) ListCampaigns(ctx context.Context) ([]models.Campaign, error) {
	campaigns := make([]models.Campaign, 0)
	if err := s.DB.WithContext(ctx).Order("starts_at ASC, id ASC").Find(&campaigns).Error; err != nil {
		return nil, err
	}
	return campaigns, nil
}

func (s *GormStore) SetCampaignStatus(ctx context.Context, id string, status models.CampaignStatus) (*models.Campaign, error) {
	res := s.DB.WithContext(ctx).Model(&models.Campaign{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.GetCampaign(ctx, id)
}

func (s *GormStore) PendingEvents(ctx context.Context, limit int) ([]models.ClaimEvent, error) {
	events := make([]models.ClaimEvent, 0)
	q := s.DB.WithContext(ctx).
		Where("delivered_at IS NULL").
		Order("attempts ASC, created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (s *GormStore) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	return s.updateEvent(ctx, id, map[string]interface{}{
		"delivered_at": at,
		"attempts":     gorm.Expr("attempts + 1"),
		"last_error":   "",
	})
}

func (s *GormStore) MarkFailed(ctx context.Context, id string, reason string) error {
	return s.updateEvent(ctx, id, map[string]interface{}{
		"attempts":   gorm.Expr("attempts + 1"),
		"last_error": reason,
	})
}

func (s *GormStore) updateEvent(ctx context.Context, id string, updates map[string]interface{}) error {
	res := s.DB.WithContext(ctx).Model(&models.ClaimEvent{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
