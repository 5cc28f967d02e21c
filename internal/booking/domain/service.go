package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/servineo/servineo/pkg/db/pagination"
	"gorm.io/gorm"
)

type CreateRequest struct {
	ServiceID       string
	ServiceName     string
	ProviderID      string
	CustomerAddress string
	TimeSlot        time.Time
}

type TransitionRequest struct {
	RequestID string
	Next      Status
}

type ListRequest struct {
	PageToken string
	PageSize  int32
}

type ListResponse struct {
	pagination.PageInfo
	Requests []ServiceRequest `json:"service_requests"`
}

type GetRequest struct {
	RequestID string
}

type Service interface {
	Create(context.Context, CreateRequest) (ServiceRequest, error)
	ProviderTransition(context.Context, TransitionRequest) (ServiceRequest, error)
	ListForCustomer(context.Context, ListRequest) (ListResponse, error)
	ListForProvider(context.Context, ListRequest) (ListResponse, error)
	Get(context.Context, GetRequest) (ServiceRequest, error)
	// MarkPaymentCompleted is invoked by the settlement engine inside
	// its capture transaction.
	MarkPaymentCompleted(ctx context.Context, tx *gorm.DB, requestID snowflake.ID) error
}

var (
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrInvalidID         = errors.New("invalid_id")
	ErrInvalidService    = errors.New("invalid_service")
	ErrServiceNotFound   = errors.New("service_not_found")
	ErrInvalidTimeSlot   = errors.New("invalid_time_slot")
	ErrInvalidStatus     = errors.New("invalid_status")
	ErrInvalidTransition = errors.New("invalid_transition")
	ErrNotFound          = errors.New("request_not_found")
	ErrNotOwner          = errors.New("not_request_owner")
)
