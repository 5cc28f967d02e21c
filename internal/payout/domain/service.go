package domain

import (
	"context"
	"errors"
)

type RegisterRequest struct {
	AccountHolder string
	AccountNumber string
	IFSC          string
}

type Service interface {
	// Register provisions the provider's payout profile with the
	// gateway and leaves it pending; verification is advanced out of
	// band. Re-registering resumes provisioning while incomplete and
	// fails with ErrAlreadyExists once the fund account exists.
	Register(ctx context.Context, req RegisterRequest) (ProviderPayoutProfile, error)
	GetForProvider(ctx context.Context) (ProviderPayoutProfile, error)
}

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrInvalidProfile  = errors.New("invalid_payout_profile")
	ErrAlreadyExists   = errors.New("payout_profile_exists")
	ErrNotFound        = errors.New("payout_profile_not_found")
)
