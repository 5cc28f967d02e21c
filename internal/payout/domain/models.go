package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationFailed   VerificationStatus = "failed"
)

// ProviderPayoutProfile links a provider to the gateway-side contact and
// fund account used for payouts. One profile per provider.
type ProviderPayoutProfile struct {
	ID                   snowflake.ID       `gorm:"primaryKey" json:"id"`
	ProviderID           snowflake.ID       `gorm:"not null;uniqueIndex:idx_payout_profiles_provider" json:"provider_id"`
	AccountHolder        string             `gorm:"not null" json:"account_holder"`
	AccountNumber        string             `gorm:"not null" json:"account_number"`
	IFSC                 string             `gorm:"not null;column:ifsc" json:"ifsc"`
	GatewayContactID     string             `gorm:"not null;default:''" json:"gateway_contact_id,omitempty"`
	GatewayFundAccountID string             `gorm:"not null;default:''" json:"gateway_fund_account_id,omitempty"`
	VerificationStatus   VerificationStatus `gorm:"not null;default:'pending'" json:"verification_status"`
	CreatedAt            time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt            time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}
