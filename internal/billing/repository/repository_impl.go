package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/servineo/servineo/internal/billing/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, bill *domain.Bill) error {
	return db.WithContext(ctx).Create(bill).Error
}

func (r *repo) FindByRequestID(ctx context.Context, db *gorm.DB, requestID snowflake.ID) (*domain.Bill, error) {
	var bill domain.Bill
	err := db.WithContext(ctx).
		Model(&domain.Bill{}).
		Where("request_id = ?", requestID).
		First(&bill).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &bill, nil
}

func (r *repo) MarkPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, paidAt time.Time) (bool, error) {
	result := db.WithContext(ctx).
		Model(&domain.Bill{}).
		Where("id = ? AND status = ?", id, domain.BillStatusUnpaid).
		Updates(map[string]any{
			"status":  domain.BillStatusPaid,
			"paid_at": paidAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
