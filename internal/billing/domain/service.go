package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type CreateManualRequest struct {
	RequestID string
	Amount    int64
}

type GetBillRequest struct {
	RequestID string
}

type Service interface {
	// EnsureBill creates the bill for a completed request, or returns
	// the existing one. Callers may pass a transaction handle.
	EnsureBill(ctx context.Context, tx *gorm.DB, requestID snowflake.ID) (Bill, error)
	// CreateManual lets the assigned provider raise a bill with an
	// agreed amount while the request is still accepted.
	CreateManual(ctx context.Context, req CreateManualRequest) (Bill, error)
	GetForRequest(ctx context.Context, req GetBillRequest) (Bill, error)
}

var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrInvalidID          = errors.New("invalid_id")
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrRequestNotFound    = errors.New("request_not_found")
	ErrRequestNotBillable = errors.New("request_not_billable")
	ErrNotOwner           = errors.New("not_request_owner")
	ErrNotFound           = errors.New("bill_not_found")
	ErrAlreadyPaid        = errors.New("bill_already_paid")
)
