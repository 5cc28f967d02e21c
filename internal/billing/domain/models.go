package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type BillStatus string

const (
	BillStatusUnpaid BillStatus = "unpaid"
	BillStatusPaid   BillStatus = "paid"
)

// Bill is the amount owed for a completed service request. Amount is in
// minor units. The unique index on request_id makes bill creation
// idempotent per request.
type Bill struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	RequestID   snowflake.ID `gorm:"not null;uniqueIndex:idx_bills_request" json:"request_id"`
	CustomerID  snowflake.ID `gorm:"not null" json:"customer_id"`
	ProviderID  snowflake.ID `gorm:"not null" json:"provider_id"`
	ServiceID   snowflake.ID `gorm:"not null" json:"service_id"`
	Amount      int64        `gorm:"not null" json:"amount"`
	Status      BillStatus   `gorm:"not null;default:'unpaid'" json:"status"`
	GeneratedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"generated_at"`
	PaidAt      *time.Time   `json:"paid_at,omitempty"`
}
