package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Service is a provider's offering. Price is in minor units.
type Service struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	ProviderID  snowflake.ID `gorm:"not null;uniqueIndex:idx_services_provider_name" json:"provider_id"`
	Name        string       `gorm:"not null;uniqueIndex:idx_services_provider_name" json:"name"`
	Description string       `gorm:"not null;default:''" json:"description,omitempty"`
	Price       int64        `gorm:"not null" json:"price"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

var ErrNotFound = errors.New("service_not_found")
