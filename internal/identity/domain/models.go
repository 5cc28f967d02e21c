package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleProvider Role = "provider"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleProvider:
		return true
	}
	return false
}

type User struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	Name        string       `gorm:"not null" json:"name"`
	Email       string       `gorm:"not null;uniqueIndex:idx_users_email" json:"email"`
	PhoneNumber string       `gorm:"not null;default:''" json:"phone_number,omitempty"`
	Address     string       `gorm:"not null;default:''" json:"address,omitempty"`
	Role        Role         `gorm:"not null" json:"role"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}
