package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, service *Service) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Service, error)
	FindByProviderAndName(ctx context.Context, db *gorm.DB, providerID snowflake.ID, name string) (*Service, error)
	ListByProvider(ctx context.Context, db *gorm.DB, providerID snowflake.ID) ([]*Service, error)
}
