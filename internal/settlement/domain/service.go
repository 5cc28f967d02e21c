package domain

import (
	"context"
	"errors"

	gatewaydomain "github.com/servineo/servineo/internal/providers/gateway/domain"
)

type CreateOrderRequest struct {
	RequestID string
}

type OrderResponse struct {
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type CaptureRequest struct {
	RequestID string
	OrderID   string
	PaymentID string
	Signature string
}

type PayoutRequest struct {
	TransferID string
	Mode       TransferMode
}

type DetailsRequest struct {
	PaymentID string
}

type PaymentDetails struct {
	PaymentID      string                `json:"payment_id"`
	Status         PaymentStatus         `json:"status"`
	Amount         int64                 `json:"amount"`
	PlatformFee    int64                 `json:"platform_fee"`
	PaymentMethod  string                `json:"payment_method"`
	GatewayPayment gatewaydomain.Payment `json:"gateway_payment"`
}

type CaptureResult struct {
	Payment  Payment  `json:"payment"`
	Transfer Transfer `json:"transfer"`
}

type Service interface {
	// CreateOrder opens a gateway order for the request's bill amount.
	// The bill is created on demand when the request is completed but
	// not yet billed.
	CreateOrder(ctx context.Context, req CreateOrderRequest) (OrderResponse, error)
	// Capture settles a gateway-authorized payment against the bill:
	// signature and gateway state are verified, then the payment row,
	// bill, booking status and provider transfer move together.
	Capture(ctx context.Context, req CaptureRequest) (CaptureResult, error)
	// Payout pushes a created transfer through the gateway. The
	// transfer always ends captured or failed.
	Payout(ctx context.Context, req PayoutRequest) (Transfer, error)
	GetPaymentDetails(ctx context.Context, req DetailsRequest) (PaymentDetails, error)
}

var (
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrInvalidID           = errors.New("invalid_id")
	ErrNotOwner            = errors.New("not_owner")
	ErrInvalidSignature    = errors.New("invalid_signature")
	ErrOrderMismatch       = errors.New("order_mismatch")
	ErrAmountMismatch      = errors.New("amount_mismatch")
	ErrPaymentNotCaptured  = errors.New("payment_not_captured")
	ErrDuplicatePayment    = errors.New("duplicate_payment")
	ErrPaymentStateInvalid = errors.New("payment_state_invalid")
	ErrPaymentNotFound     = errors.New("payment_not_found")
	ErrTransferNotFound    = errors.New("transfer_not_found")
	ErrTransferSettled     = errors.New("transfer_already_settled")
	ErrInvalidTransferMode = errors.New("invalid_transfer_mode")
	ErrProfileUnverified   = errors.New("payout_profile_unverified")
)
