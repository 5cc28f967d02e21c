package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/servineo/servineo/internal/actorcontext"
	"github.com/servineo/servineo/internal/clock"
	identitydomain "github.com/servineo/servineo/internal/identity/domain"
	"github.com/servineo/servineo/internal/payout/domain"
	gatewaydomain "github.com/servineo/servineo/internal/providers/gateway/domain"
	"github.com/servineo/servineo/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Gateway gatewaydomain.Client
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	gateway gatewaydomain.Client
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("payout.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		gateway: p.Gateway,
	}
}

func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (domain.ProviderPayoutProfile, error) {
	actor, ok := actorcontext.ActorFromContext(ctx)
	if !ok {
		return domain.ProviderPayoutProfile{}, domain.ErrUnauthenticated
	}

	holder := strings.TrimSpace(req.AccountHolder)
	number := strings.TrimSpace(req.AccountNumber)
	ifsc := strings.ToUpper(strings.TrimSpace(req.IFSC))
	if holder == "" || number == "" || ifsc == "" {
		return domain.ProviderPayoutProfile{}, domain.ErrInvalidProfile
	}

	profile, err := s.repo.FindByProviderID(ctx, s.db, actor.ID)
	if err != nil {
		return domain.ProviderPayoutProfile{}, err
	}
	if profile != nil && profile.GatewayFundAccountID != "" {
		// Provisioning is complete; only a partially provisioned
		// profile may be re-registered.
		return domain.ProviderPayoutProfile{}, domain.ErrAlreadyExists
	}

	if profile == nil {
		profile = &domain.ProviderPayoutProfile{
			ID:                 s.genID.Generate(),
			ProviderID:         actor.ID,
			AccountHolder:      holder,
			AccountNumber:      number,
			IFSC:               ifsc,
			VerificationStatus: domain.VerificationPending,
			CreatedAt:          s.clock.Now(),
			UpdatedAt:          s.clock.Now(),
		}
		if err := s.repo.Insert(ctx, s.db, profile); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ProviderPayoutProfile{}, domain.ErrAlreadyExists
			}
			return domain.ProviderPayoutProfile{}, err
		}
	}

	// Gateway provisioning runs after the row exists so a failed call
	// leaves the profile pending and Register can be retried.
	if err := s.provision(ctx, actor, profile); err != nil {
		return domain.ProviderPayoutProfile{}, err
	}

	return *profile, nil
}

func (s *Service) provision(ctx context.Context, actor identitydomain.User, profile *domain.ProviderPayoutProfile) error {
	contactID := profile.GatewayContactID
	if contactID == "" {
		contact, err := s.gateway.CreateContact(ctx, gatewaydomain.CreateContactRequest{
			Name:  profile.AccountHolder,
			Email: actor.Email,
			Phone: actor.PhoneNumber,
		})
		if err != nil {
			return err
		}
		contactID = contact.ID
	}

	fundAccount, err := s.gateway.CreateFundAccount(ctx, gatewaydomain.CreateFundAccountRequest{
		ContactID:     contactID,
		AccountHolder: profile.AccountHolder,
		AccountNumber: profile.AccountNumber,
		IFSC:          profile.IFSC,
	})
	if err != nil {
		// Keep whatever the gateway already handed out.
		if contactID != profile.GatewayContactID {
			updateErr := s.repo.UpdateGatewayAccounts(ctx, s.db, profile.ID, contactID, "", domain.VerificationPending, s.clock.Now())
			if updateErr != nil {
				s.log.Error("payout profile partial update failed",
					zap.String("profile_id", profile.ID.String()),
					zap.Error(updateErr),
				)
			}
		}
		return err
	}

	// The profile stays pending with the gateway ids recorded.
	// Verification is advanced out of band once the bank account
	// checks clear; payouts stay gated until then.
	now := s.clock.Now()
	if err := s.repo.UpdateGatewayAccounts(ctx, s.db, profile.ID, contactID, fundAccount.ID, domain.VerificationPending, now); err != nil {
		return err
	}

	profile.GatewayContactID = contactID
	profile.GatewayFundAccountID = fundAccount.ID
	profile.UpdatedAt = now

	s.log.Info("payout profile provisioned",
		zap.String("profile_id", profile.ID.String()),
		zap.String("provider_id", profile.ProviderID.String()),
	)
	return nil
}

func (s *Service) GetForProvider(ctx context.Context) (domain.ProviderPayoutProfile, error) {
	actor, ok := actorcontext.ActorFromContext(ctx)
	if !ok {
		return domain.ProviderPayoutProfile{}, domain.ErrUnauthenticated
	}

	profile, err := s.repo.FindByProviderID(ctx, s.db, actor.ID)
	if err != nil {
		return domain.ProviderPayoutProfile{}, err
	}
	if profile == nil {
		return domain.ProviderPayoutProfile{}, domain.ErrNotFound
	}
	return *profile, nil
}
