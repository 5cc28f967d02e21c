package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type PaymentStatus string

const (
	PaymentStatusCreated  PaymentStatus = "created"
	PaymentStatusCaptured PaymentStatus = "captured"
	PaymentStatusFailed   PaymentStatus = "failed"
)

type TransferStatus string

const (
	TransferStatusCreated  TransferStatus = "created"
	TransferStatusCaptured TransferStatus = "captured"
	TransferStatusFailed   TransferStatus = "failed"
)

type TransferMode string

const (
	TransferModeUPI  TransferMode = "upi"
	TransferModeIMPS TransferMode = "imps"
	TransferModeNEFT TransferMode = "neft"
	TransferModeRTGS TransferMode = "rtgs"
)

func (m TransferMode) Valid() bool {
	switch m {
	case TransferModeUPI, TransferModeIMPS, TransferModeNEFT, TransferModeRTGS:
		return true
	}
	return false
}

// Payment records a captured customer charge. Amount and PlatformFee are
// minor units. The unique index on (bill_id, gateway_order_id) makes a
// replayed capture a no-op.
type Payment struct {
	ID               snowflake.ID      `gorm:"primaryKey" json:"id"`
	BillID           snowflake.ID      `gorm:"not null;uniqueIndex:idx_payments_bill_order" json:"bill_id"`
	CustomerID       snowflake.ID      `gorm:"not null" json:"customer_id"`
	ProviderID       snowflake.ID      `gorm:"not null" json:"provider_id"`
	Amount           int64             `gorm:"not null" json:"amount"`
	PlatformFee      int64             `gorm:"not null" json:"platform_fee"`
	Status           PaymentStatus     `gorm:"not null;default:'created'" json:"status"`
	PaymentMethod    string            `gorm:"not null;default:''" json:"payment_method,omitempty"`
	GatewayOrderID   string            `gorm:"not null;uniqueIndex:idx_payments_bill_order" json:"gateway_order_id"`
	GatewayPaymentID string            `gorm:"not null;default:''" json:"gateway_payment_id,omitempty"`
	Metadata         datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt        time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// Transfer is the provider's share of a captured payment. It starts in
// created and is settled to captured or failed by Payout.
type Transfer struct {
	ID                snowflake.ID   `gorm:"primaryKey" json:"id"`
	PaymentID         snowflake.ID   `gorm:"not null;uniqueIndex:idx_transfers_payment" json:"payment_id"`
	ProviderID        snowflake.ID   `gorm:"not null" json:"provider_id"`
	Amount            int64          `gorm:"not null" json:"amount"`
	Status            TransferStatus `gorm:"not null;default:'created'" json:"status"`
	TransferMode      TransferMode   `gorm:"not null;default:''" json:"transfer_mode,omitempty"`
	GatewayTransferID string         `gorm:"not null;default:''" json:"gateway_transfer_id,omitempty"`
	FailureReason     string         `gorm:"not null;default:''" json:"failure_reason,omitempty"`
	CreatedAt         time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}
