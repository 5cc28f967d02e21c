package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/servineo/servineo/internal/actorcontext"
	"github.com/servineo/servineo/internal/clock"
	identitydomain "github.com/servineo/servineo/internal/identity/domain"
	"github.com/servineo/servineo/internal/payout/domain"
	"github.com/servineo/servineo/internal/payout/repository"
	gatewaydomain "github.com/servineo/servineo/internal/providers/gateway/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type gatewayStub struct {
	contacts       int
	fundAccounts   int
	contactErr     error
	fundAccountErr error
}

func (g *gatewayStub) CreateOrder(ctx context.Context, req gatewaydomain.CreateOrderRequest) (gatewaydomain.Order, error) {
	return gatewaydomain.Order{}, nil
}

func (g *gatewayStub) FetchOrder(ctx context.Context, orderID string) (gatewaydomain.Order, error) {
	return gatewaydomain.Order{}, nil
}

func (g *gatewayStub) FetchPayment(ctx context.Context, paymentID string) (gatewaydomain.Payment, error) {
	return gatewaydomain.Payment{}, nil
}

func (g *gatewayStub) CreateTransfer(ctx context.Context, req gatewaydomain.CreateTransferRequest) (gatewaydomain.Transfer, error) {
	return gatewaydomain.Transfer{}, nil
}

func (g *gatewayStub) CreateContact(ctx context.Context, req gatewaydomain.CreateContactRequest) (gatewaydomain.Contact, error) {
	if g.contactErr != nil {
		return gatewaydomain.Contact{}, g.contactErr
	}
	g.contacts++
	return gatewaydomain.Contact{ID: fmt.Sprintf("cont_%04d", g.contacts)}, nil
}

func (g *gatewayStub) CreateFundAccount(ctx context.Context, req gatewaydomain.CreateFundAccountRequest) (gatewaydomain.FundAccount, error) {
	if g.fundAccountErr != nil {
		return gatewaydomain.FundAccount{}, g.fundAccountErr
	}
	g.fundAccounts++
	return gatewaydomain.FundAccount{ID: fmt.Sprintf("fa_%04d", g.fundAccounts)}, nil
}

func setupPayout(t *testing.T) (domain.Service, *gorm.DB, *gatewayStub, identitydomain.User) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.ProviderPayoutProfile{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	gateway := &gatewayStub{}
	provider := identitydomain.User{
		ID:          node.Generate(),
		Name:        "Ravi",
		Email:       "ravi@example.com",
		PhoneNumber: "+919998887776",
		Role:        identitydomain.RoleProvider,
	}

	svc := New(Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   clock.NewFakeClock(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)),
		Repo:    repository.Provide(),
		Gateway: gateway,
	})
	return svc, db, gateway, provider
}

func TestRegisterProvisionsProfile(t *testing.T) {
	svc, db, _, provider := setupPayout(t)
	ctx := actorcontext.WithActor(context.Background(), provider)

	profile, err := svc.Register(ctx, domain.RegisterRequest{
		AccountHolder: "Ravi Kumar",
		AccountNumber: "1234567890",
		IFSC:          "hdfc0000001",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationPending, profile.VerificationStatus)
	assert.Equal(t, "HDFC0000001", profile.IFSC)
	assert.NotEmpty(t, profile.GatewayContactID)
	assert.NotEmpty(t, profile.GatewayFundAccountID)

	// Registration never verifies by itself; the stored row stays
	// pending until verification comes in from the gateway.
	var stored domain.ProviderPayoutProfile
	require.NoError(t, db.First(&stored, "provider_id = ?", provider.ID).Error)
	assert.Equal(t, domain.VerificationPending, stored.VerificationStatus)
	assert.Equal(t, profile.GatewayFundAccountID, stored.GatewayFundAccountID)
}

func TestRegisterProvisionedProfileConflicts(t *testing.T) {
	svc, _, _, provider := setupPayout(t)
	ctx := actorcontext.WithActor(context.Background(), provider)

	_, err := svc.Register(ctx, domain.RegisterRequest{
		AccountHolder: "Ravi Kumar",
		AccountNumber: "1234567890",
		IFSC:          "HDFC0000001",
	})
	require.NoError(t, err)

	_, err = svc.Register(ctx, domain.RegisterRequest{
		AccountHolder: "Ravi Kumar",
		AccountNumber: "1234567890",
		IFSC:          "HDFC0000001",
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestRegisterResumesAfterGatewayFailure(t *testing.T) {
	svc, db, gateway, provider := setupPayout(t)
	ctx := actorcontext.WithActor(context.Background(), provider)
	gateway.fundAccountErr = fmt.Errorf("%w: fund account rejected", gatewaydomain.ErrRejected)

	_, err := svc.Register(ctx, domain.RegisterRequest{
		AccountHolder: "Ravi Kumar",
		AccountNumber: "1234567890",
		IFSC:          "HDFC0000001",
	})
	require.Error(t, err)

	// The row stays pending with the contact the gateway already issued.
	var stored domain.ProviderPayoutProfile
	require.NoError(t, db.First(&stored, "provider_id = ?", provider.ID).Error)
	assert.Equal(t, domain.VerificationPending, stored.VerificationStatus)
	assert.Equal(t, "cont_0001", stored.GatewayContactID)
	assert.Empty(t, stored.GatewayFundAccountID)

	// A retry picks up from the fund account step.
	gateway.fundAccountErr = nil
	profile, err := svc.Register(ctx, domain.RegisterRequest{
		AccountHolder: "Ravi Kumar",
		AccountNumber: "1234567890",
		IFSC:          "HDFC0000001",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationPending, profile.VerificationStatus)
	assert.Equal(t, "cont_0001", profile.GatewayContactID)
	assert.NotEmpty(t, profile.GatewayFundAccountID)
	assert.Equal(t, 1, gateway.contacts, "contact must not be recreated on retry")
}

func TestRegisterValidatesFields(t *testing.T) {
	svc, _, _, provider := setupPayout(t)
	ctx := actorcontext.WithActor(context.Background(), provider)

	for _, req := range []domain.RegisterRequest{
		{AccountNumber: "1234567890", IFSC: "HDFC0000001"},
		{AccountHolder: "Ravi", IFSC: "HDFC0000001"},
		{AccountHolder: "Ravi", AccountNumber: "1234567890"},
		{AccountHolder: "   ", AccountNumber: "1234567890", IFSC: "HDFC0000001"},
	} {
		_, err := svc.Register(ctx, req)
		assert.ErrorIs(t, err, domain.ErrInvalidProfile)
	}
}

func TestGetForProvider(t *testing.T) {
	svc, _, _, provider := setupPayout(t)
	ctx := actorcontext.WithActor(context.Background(), provider)

	_, err := svc.GetForProvider(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	created, err := svc.Register(ctx, domain.RegisterRequest{
		AccountHolder: "Ravi Kumar",
		AccountNumber: "1234567890",
		IFSC:          "HDFC0000001",
	})
	require.NoError(t, err)

	got, err := svc.GetForProvider(ctx)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = svc.GetForProvider(context.Background())
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}
