package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusPending          Status = "pending"
	StatusAccepted         Status = "accepted"
	StatusRejected         Status = "rejected"
	StatusInProgress       Status = "in_progress"
	StatusCompleted        Status = "completed"
	StatusPaymentCompleted Status = "payment_completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected, StatusInProgress, StatusCompleted, StatusPaymentCompleted:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusPaymentCompleted
}

// providerTransitions is the full lifecycle a provider drives. The
// payment_completed edge is reserved for the settlement engine.
var providerTransitions = map[Status]Status{
	StatusAccepted:   StatusPending,
	StatusRejected:   StatusPending,
	StatusInProgress: StatusAccepted,
	StatusCompleted:  StatusInProgress,
}

// ProviderCanTransition reports whether a provider may move a request
// from one status to another.
func ProviderCanTransition(from, to Status) bool {
	required, ok := providerTransitions[to]
	return ok && required == from
}

// ServiceRequest is a customer's booking of a provider's service. The
// service name, price and customer details are snapshotted at creation
// so later catalog or profile edits do not change history.
type ServiceRequest struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	ServiceID       snowflake.ID `gorm:"not null" json:"service_id"`
	CustomerID      snowflake.ID `gorm:"not null;index:idx_service_requests_customer" json:"customer_id"`
	ProviderID      snowflake.ID `gorm:"not null;index:idx_service_requests_provider" json:"provider_id"`
	ServiceName     string       `gorm:"not null" json:"service_name"`
	ServicePrice    int64        `gorm:"not null" json:"service_price"`
	CustomerName    string       `gorm:"not null" json:"customer_name"`
	CustomerPhone   string       `gorm:"not null;default:''" json:"customer_phone,omitempty"`
	CustomerAddress string       `gorm:"not null;default:''" json:"customer_address,omitempty"`
	TimeSlot        time.Time    `gorm:"not null" json:"time_slot"`
	Status          Status       `gorm:"not null;default:'pending'" json:"status"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}
