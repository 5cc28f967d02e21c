package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/servineo/servineo/internal/settlement/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertPayment(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Create(payment).Error
}

func (r *repo) FindPaymentByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Payment, error) {
	var payment domain.Payment
	err := db.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("id = ?", id).
		First(&payment).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

func (r *repo) FindPaymentByBillAndOrder(ctx context.Context, db *gorm.DB, billID snowflake.ID, gatewayOrderID string) (*domain.Payment, error) {
	var payment domain.Payment
	err := db.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("bill_id = ? AND gateway_order_id = ?", billID, gatewayOrderID).
		First(&payment).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

func (r *repo) InsertTransfer(ctx context.Context, db *gorm.DB, transfer *domain.Transfer) error {
	return db.WithContext(ctx).Create(transfer).Error
}

func (r *repo) FindTransferByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Transfer, error) {
	var transfer domain.Transfer
	err := db.WithContext(ctx).
		Model(&domain.Transfer{}).
		Where("id = ?", id).
		First(&transfer).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &transfer, nil
}

func (r *repo) SettleTransfer(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.TransferStatus, mode domain.TransferMode, gatewayTransferID, failureReason string, updatedAt time.Time) (bool, error) {
	result := db.WithContext(ctx).
		Model(&domain.Transfer{}).
		Where("id = ? AND status = ?", id, domain.TransferStatusCreated).
		Updates(map[string]any{
			"status":              status,
			"transfer_mode":       mode,
			"gateway_transfer_id": gatewayTransferID,
			"failure_reason":      failureReason,
			"updated_at":          updatedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
