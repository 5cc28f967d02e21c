package domain

import (
	"context"
	"errors"
)

type Service interface {
	// Authenticate resolves a bearer token to the user it was issued for.
	Authenticate(ctx context.Context, bearer string) (User, error)
	// IssueToken mints a signed bearer token for the given user.
	IssueToken(ctx context.Context, user User) (string, error)
}

var (
	ErrMissingToken   = errors.New("missing_token")
	ErrMalformedToken = errors.New("malformed_token")
	ErrInvalidToken   = errors.New("invalid_token")
	ErrNotFound       = errors.New("user_not_found")
)
