package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	"github.com/servineo/servineo/internal/clock"
	"github.com/servineo/servineo/internal/config"
	"github.com/servineo/servineo/internal/identity/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const tokenTTL = 24 * time.Hour

type Params struct {
	fx.In

	Config config.Config
	DB     *gorm.DB
	Log    *zap.Logger
	Clock  clock.Clock
	Repo   domain.Repository
}

type Service struct {
	cfg   config.Config
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		cfg:   p.Config,
		db:    p.DB,
		log:   p.Log.Named("identity.service"),
		clock: p.Clock,
		repo:  p.Repo,
	}
}

type claims struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

func (s *Service) Authenticate(ctx context.Context, bearer string) (domain.User, error) {
	raw := strings.TrimSpace(bearer)
	if raw == "" {
		return domain.User{}, domain.ErrMissingToken
	}

	// A structurally broken token is rejected before any crypto work.
	if len(strings.Split(raw, ".")) != 3 {
		return domain.User{}, domain.ErrMalformedToken
	}

	parsed, err := jwt.ParseWithClaims(raw, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidToken
		}
		return []byte(s.cfg.AuthJWTSecret), nil
	}, jwt.WithTimeFunc(s.clock.Now))
	if err != nil || !parsed.Valid {
		return domain.User{}, domain.ErrInvalidToken
	}

	tokenClaims, ok := parsed.Claims.(*claims)
	if !ok {
		return domain.User{}, domain.ErrInvalidToken
	}

	id, err := snowflake.ParseString(tokenClaims.UserID)
	if err != nil || id == 0 {
		return domain.User{}, domain.ErrInvalidToken
	}

	user, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.User{}, err
	}
	if user == nil {
		return domain.User{}, domain.ErrNotFound
	}

	return *user, nil
}

func (s *Service) IssueToken(ctx context.Context, user domain.User) (string, error) {
	now := s.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID: user.ID.String(),
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.AuthJWTIssuer,
			Audience:  jwt.ClaimStrings{s.cfg.AuthJWTAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	})
	return token.SignedString([]byte(s.cfg.AuthJWTSecret))
}
