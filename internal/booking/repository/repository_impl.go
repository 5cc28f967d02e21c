package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/servineo/servineo/internal/booking/domain"
	"github.com/servineo/servineo/pkg/db/option"
	"github.com/servineo/servineo/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, request *domain.ServiceRequest) error {
	return db.WithContext(ctx).Create(request).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.ServiceRequest, error) {
	var request domain.ServiceRequest
	err := db.WithContext(ctx).
		Model(&domain.ServiceRequest{}).
		Where("id = ?", id).
		First(&request).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &request, nil
}

func (r *repo) ListByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID, page pagination.Pagination) ([]*domain.ServiceRequest, error) {
	return r.list(ctx, db, "customer_id = ?", customerID, page)
}

func (r *repo) ListByProvider(ctx context.Context, db *gorm.DB, providerID snowflake.ID, page pagination.Pagination) ([]*domain.ServiceRequest, error) {
	return r.list(ctx, db, "provider_id = ?", providerID, page)
}

func (r *repo) list(ctx context.Context, db *gorm.DB, cond string, actorID snowflake.ID, page pagination.Pagination) ([]*domain.ServiceRequest, error) {
	var requests []*domain.ServiceRequest
	stmt := db.WithContext(ctx).
		Model(&domain.ServiceRequest{}).
		Where(cond, actorID)
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("id desc").
		Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to domain.Status, updatedAt time.Time) (bool, error) {
	result := db.WithContext(ctx).
		Model(&domain.ServiceRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": updatedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
