package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, profile *ProviderPayoutProfile) error
	FindByProviderID(ctx context.Context, db *gorm.DB, providerID snowflake.ID) (*ProviderPayoutProfile, error)
	UpdateGatewayAccounts(ctx context.Context, db *gorm.DB, id snowflake.ID, contactID, fundAccountID string, status VerificationStatus, updatedAt time.Time) error
}
