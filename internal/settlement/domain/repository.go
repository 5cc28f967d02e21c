package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertPayment(ctx context.Context, db *gorm.DB, payment *Payment) error
	FindPaymentByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payment, error)
	FindPaymentByBillAndOrder(ctx context.Context, db *gorm.DB, billID snowflake.ID, gatewayOrderID string) (*Payment, error)

	InsertTransfer(ctx context.Context, db *gorm.DB, transfer *Transfer) error
	FindTransferByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Transfer, error)
	// SettleTransfer moves a created transfer to a terminal status. It
	// returns false when the transfer was already settled.
	SettleTransfer(ctx context.Context, db *gorm.DB, id snowflake.ID, status TransferStatus, mode TransferMode, gatewayTransferID, failureReason string, updatedAt time.Time) (bool, error)
}
