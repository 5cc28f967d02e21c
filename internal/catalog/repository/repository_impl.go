package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/servineo/servineo/internal/catalog/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, service *domain.Service) error {
	return db.WithContext(ctx).Create(service).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Service, error) {
	var service domain.Service
	err := db.WithContext(ctx).Raw(
		`SELECT id, provider_id, name, description, price, created_at
		 FROM services WHERE id = ?`,
		id,
	).Scan(&service).Error
	if err != nil {
		return nil, err
	}
	if service.ID == 0 {
		return nil, nil
	}
	return &service, nil
}

func (r *repo) FindByProviderAndName(ctx context.Context, db *gorm.DB, providerID snowflake.ID, name string) (*domain.Service, error) {
	var service domain.Service
	err := db.WithContext(ctx).Raw(
		`SELECT id, provider_id, name, description, price, created_at
		 FROM services WHERE provider_id = ? AND name = ?`,
		providerID,
		name,
	).Scan(&service).Error
	if err != nil {
		return nil, err
	}
	if service.ID == 0 {
		return nil, nil
	}
	return &service, nil
}

func (r *repo) ListByProvider(ctx context.Context, db *gorm.DB, providerID snowflake.ID) ([]*domain.Service, error) {
	var services []*domain.Service
	err := db.WithContext(ctx).
		Model(&domain.Service{}).
		Where("provider_id = ?", providerID).
		Order("name asc").
		Find(&services).Error
	if err != nil {
		return nil, err
	}
	return services, nil
}
