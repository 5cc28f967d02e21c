package domain

import (
	"context"
	"errors"
)

// Amounts are minor units throughout, matching the gateway wire format.

type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type Payment struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	Method   string `json:"method"`
}

type Transfer struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
	Status string `json:"status"`
	Mode   string `json:"mode"`
}

type Contact struct {
	ID string `json:"id"`
}

type FundAccount struct {
	ID string `json:"id"`
}

type CreateOrderRequest struct {
	Amount   int64
	Currency string
	Receipt  string
}

type CreateTransferRequest struct {
	FundAccountID string
	Amount        int64
	Currency      string
	Mode          string
	Reference     string
}

type CreateContactRequest struct {
	Name  string
	Email string
	Phone string
}

type CreateFundAccountRequest struct {
	ContactID     string
	AccountHolder string
	AccountNumber string
	IFSC          string
}

// Client talks to the external payment gateway. Implementations must be
// safe for concurrent use.
type Client interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (Order, error)
	FetchOrder(ctx context.Context, orderID string) (Order, error)
	FetchPayment(ctx context.Context, paymentID string) (Payment, error)
	CreateTransfer(ctx context.Context, req CreateTransferRequest) (Transfer, error)
	CreateContact(ctx context.Context, req CreateContactRequest) (Contact, error)
	CreateFundAccount(ctx context.Context, req CreateFundAccountRequest) (FundAccount, error)
}

var (
	// ErrUnavailable covers transport failures and gateway 5xx responses.
	ErrUnavailable = errors.New("gateway_unavailable")
	// ErrRejected covers gateway 4xx responses.
	ErrRejected = errors.New("gateway_rejected")
)
