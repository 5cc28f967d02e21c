package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/servineo/servineo/internal/actorcontext"
	"github.com/servineo/servineo/internal/billing/domain"
	bookingdomain "github.com/servineo/servineo/internal/booking/domain"
	"github.com/servineo/servineo/internal/clock"
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
	Booking bookingdomain.Repository
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	booking bookingdomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("billing.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		booking: p.Booking,
	}
}

func (s *Service) EnsureBill(ctx context.Context, tx *gorm.DB, requestID snowflake.ID) (domain.Bill, error) {
	if tx == nil {
		tx = s.db
	}

	existing, err := s.repo.FindByRequestID(ctx, tx, requestID)
	if err != nil {
		return domain.Bill{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	request, err := s.booking.FindByID(ctx, tx, requestID)
	if err != nil {
		return domain.Bill{}, err
	}
	if request == nil {
		return domain.Bill{}, domain.ErrRequestNotFound
	}
	if request.Status != bookingdomain.StatusCompleted && request.Status != bookingdomain.StatusPaymentCompleted {
		return domain.Bill{}, domain.ErrRequestNotBillable
	}

	return s.insert(ctx, tx, request, request.ServicePrice)
}

func (s *Service) CreateManual(ctx context.Context, req domain.CreateManualRequest) (domain.Bill, error) {
	actor, ok := actorcontext.ActorFromContext(ctx)
	if !ok {
		return domain.Bill{}, domain.ErrUnauthenticated
	}

	requestID, err := snowflake.ParseString(strings.TrimSpace(req.RequestID))
	if err != nil || requestID == 0 {
		return domain.Bill{}, domain.ErrInvalidID
	}
	if req.Amount <= 0 {
		return domain.Bill{}, domain.ErrInvalidAmount
	}

	request, err := s.booking.FindByID(ctx, s.db, requestID)
	if err != nil {
		return domain.Bill{}, err
	}
	if request == nil {
		return domain.Bill{}, domain.ErrRequestNotFound
	}
	if request.ProviderID != actor.ID {
		return domain.Bill{}, domain.ErrNotOwner
	}
	if request.Status != bookingdomain.StatusAccepted {
		return domain.Bill{}, domain.ErrRequestNotBillable
	}

	existing, err := s.repo.FindByRequestID(ctx, s.db, requestID)
	if err != nil {
		return domain.Bill{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	return s.insert(ctx, s.db, request, req.Amount)
}

func (s *Service) GetForRequest(ctx context.Context, req domain.GetBillRequest) (domain.Bill, error) {
	actor, ok := actorcontext.ActorFromContext(ctx)
	if !ok {
		return domain.Bill{}, domain.ErrUnauthenticated
	}

	requestID, err := snowflake.ParseString(strings.TrimSpace(req.RequestID))
	if err != nil || requestID == 0 {
		return domain.Bill{}, domain.ErrInvalidID
	}

	request, err := s.booking.FindByID(ctx, s.db, requestID)
	if err != nil {
		return domain.Bill{}, err
	}
	if request == nil {
		return domain.Bill{}, domain.ErrRequestNotFound
	}
	if request.CustomerID != actor.ID && request.ProviderID != actor.ID {
		return domain.Bill{}, domain.ErrNotOwner
	}

	bill, err := s.repo.FindByRequestID(ctx, s.db, requestID)
	if err != nil {
		return domain.Bill{}, err
	}
	if bill == nil {
		return domain.Bill{}, domain.ErrNotFound
	}
	return *bill, nil
}

func (s *Service) insert(ctx context.Context, tx *gorm.DB, request *bookingdomain.ServiceRequest, amount int64) (domain.Bill, error) {
	bill := domain.Bill{
		ID:          s.genID.Generate(),
		RequestID:   request.ID,
		CustomerID:  request.CustomerID,
		ProviderID:  request.ProviderID,
		ServiceID:   request.ServiceID,
		Amount:      amount,
		Status:      domain.BillStatusUnpaid,
		GeneratedAt: s.clock.Now(),
	}

	if err := s.repo.Insert(ctx, tx, &bill); err != nil {
		if db.IsDuplicateKeyErr(err) {
			// A concurrent caller created the bill first; theirs wins.
			existing, findErr := s.repo.FindByRequestID(ctx, tx, request.ID)
			if findErr == nil && existing != nil {
				return *existing, nil
			}
		}
		return domain.Bill{}, err
	}

	s.log.Info("bill generated",
		zap.String("bill_id", bill.ID.String()),
		zap.String("request_id", request.ID.String()),
		zap.Int64("amount", bill.Amount),
	)
	return bill, nil
}
