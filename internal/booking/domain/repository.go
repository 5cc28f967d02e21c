package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/servineo/servineo/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, request *ServiceRequest) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ServiceRequest, error)
	ListByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID, page pagination.Pagination) ([]*ServiceRequest, error)
	ListByProvider(ctx context.Context, db *gorm.DB, providerID snowflake.ID, page pagination.Pagination) ([]*ServiceRequest, error)
	// UpdateStatus moves the request from one status to another. It
	// returns false when the request was not in the expected status,
	// which makes concurrent transitions lose cleanly.
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to Status, updatedAt time.Time) (bool, error)
}
