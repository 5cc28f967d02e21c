package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/servineo/servineo/internal/payout/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, profile *domain.ProviderPayoutProfile) error {
	return db.WithContext(ctx).Create(profile).Error
}

func (r *repo) FindByProviderID(ctx context.Context, db *gorm.DB, providerID snowflake.ID) (*domain.ProviderPayoutProfile, error) {
	var profile domain.ProviderPayoutProfile
	err := db.WithContext(ctx).
		Model(&domain.ProviderPayoutProfile{}).
		Where("provider_id = ?", providerID).
		First(&profile).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

func (r *repo) UpdateGatewayAccounts(ctx context.Context, db *gorm.DB, id snowflake.ID, contactID, fundAccountID string, status domain.VerificationStatus, updatedAt time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.ProviderPayoutProfile{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"gateway_contact_id":      contactID,
			"gateway_fund_account_id": fundAccountID,
			"verification_status":     status,
			"updated_at":              updatedAt,
		}).Error
}
