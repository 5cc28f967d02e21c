package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/servineo/servineo/internal/actorcontext"
	billingdomain "github.com/servineo/servineo/internal/billing/domain"
	"github.com/servineo/servineo/internal/booking/domain"
	catalogdomain "github.com/servineo/servineo/internal/catalog/domain"
	"github.com/servineo/servineo/internal/clock"
	identitydomain "github.com/servineo/servineo/internal/identity/domain"
	"github.com/servineo/servineo/internal/notification"
	"github.com/servineo/servineo/internal/observability/metrics"
	"github.com/servineo/servineo/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Catalog  catalogdomain.Repository
	Identity identitydomain.Repository
	Billing  billingdomain.Service
	Notifier notification.Service
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	catalog  catalogdomain.Repository
	identity identitydomain.Repository
	billing  billingdomain.Service
	notifier notification.Service
	metrics  *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("booking.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		catalog:  p.Catalog,
		identity: p.Identity,
		billing:  p.Billing,
		notifier: p.Notifier,
		metrics:  p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (domain.ServiceRequest, error) {
	actor, ok := actorcontext.ActorFromContext(ctx)
	if !ok {
		return domain.ServiceRequest{}, domain.ErrUnauthenticated
	}

	offering, err := s.resolveService(ctx, req)
	if err != nil {
		return domain.ServiceRequest{}, err
	}

	if !req.TimeSlot.After(s.clock.Now()) {
		return domain.ServiceRequest{}, domain.ErrInvalidTimeSlot
	}

	address := strings.TrimSpace(req.CustomerAddress)
	if address == "" {
		address = actor.Address
	}

	now := s.clock.Now()
	request := domain.ServiceRequest{
		ID:              s.genID.Generate(),
		ServiceID:       offering.ID,
		CustomerID:      actor.ID,
		ProviderID:      offering.ProviderID,
		ServiceName:     offering.Name,
		ServicePrice:    offering.Price,
		CustomerName:    actor.Name,
		CustomerPhone:   actor.PhoneNumber,
		CustomerAddress: address,
		TimeSlot:        req.TimeSlot.UTC(),
		Status:          domain.StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Insert(ctx, s.db, &request); err != nil {
		return domain.ServiceRequest{}, err
	}

	s.metrics.RecordBookingCreated(ctx)
	s.notifyActor(ctx, request.ProviderID, func(recipient string) {
		s.notifier.BookingCreated(ctx, notification.BookingEvent{
			RequestID:    request.ID,
			ServiceName:  request.ServiceName,
			CustomerName: request.CustomerName,
			TimeSlot:     request.TimeSlot,
			Status:       string(request.Status),
			Recipient:    recipient,
		})
	})

	return request, nil
}

func (s *Service) resolveService(ctx context.Context, req domain.CreateRequest) (*catalogdomain.Service, error) {
	if serviceID := strings.TrimSpace(req.ServiceID); serviceID != "" {
		id, err := snowflake.ParseString(serviceID)
		if err != nil || id == 0 {
			return nil, domain.ErrInvalidService
		}
		offering, err := s.catalog.FindByID(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		if offering == nil {
			return nil, domain.ErrServiceNotFound
		}
		return offering, nil
	}

	name := strings.TrimSpace(req.ServiceName)
	providerID, err := snowflake.ParseString(strings.TrimSpace(req.ProviderID))
	if name == "" || err != nil || providerID == 0 {
		return nil, domain.ErrInvalidService
	}
	offering, err := s.catalog.FindByProviderAndName(ctx, s.db, providerID, name)
	if err != nil {
		return nil, err
	}
	if offering == nil {
		return nil, domain.ErrServiceNotFound
	}
	return offering, nil
}

func (s *Service) ProviderTransition(ctx context.Context, req domain.TransitionRequest) (domain.ServiceRequest, error) {
	actor, ok := actorcontext.ActorFromContext(ctx)
	if !ok {
		return domain.ServiceRequest{}, domain.ErrUnauthenticated
	}

	id, err := s.parseID(req.RequestID)
	if err != nil {
		return domain.ServiceRequest{}, err
	}

	request, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.ServiceRequest{}, err
	}
	if request == nil {
		return domain.ServiceRequest{}, domain.ErrNotFound
	}
	if request.ProviderID != actor.ID {
		return domain.ServiceRequest{}, domain.ErrNotOwner
	}

	if !req.Next.Valid() {
		return domain.ServiceRequest{}, domain.ErrInvalidStatus
	}
	if !domain.ProviderCanTransition(request.Status, req.Next) {
		return domain.ServiceRequest{}, domain.ErrInvalidTransition
	}

	now := s.clock.Now()
	moved, err := s.repo.UpdateStatus(ctx, s.db, request.ID, request.Status, req.Next, now)
	if err != nil {
		return domain.ServiceRequest{}, err
	}
	if !moved {
		// A concurrent transition won; the stored status is no longer
		// what we validated against.
		return domain.ServiceRequest{}, domain.ErrInvalidTransition
	}

	s.metrics.RecordBookingTransition(ctx, string(request.Status), string(req.Next))

	previous := request.Status
	request.Status = req.Next
	request.UpdatedAt = now

	if req.Next == domain.StatusCompleted {
		if _, err := s.billing.EnsureBill(ctx, s.db, request.ID); err != nil {
			// The bill is recreated lazily at payment time, so a
			// failure here must not undo the transition.
			s.log.Error("bill generation after completion failed",
				zap.String("request_id", request.ID.String()),
				zap.Error(err),
			)
		}
	}

	s.notifyActor(ctx, request.CustomerID, func(recipient string) {
		s.notifier.BookingStatusChanged(ctx, notification.BookingEvent{
			RequestID:    request.ID,
			ServiceName:  request.ServiceName,
			CustomerName: request.CustomerName,
			TimeSlot:     request.TimeSlot,
			Status:       string(request.Status),
			Recipient:    recipient,
		})
	})

	s.log.Info("service request transitioned",
		zap.String("request_id", request.ID.String()),
		zap.String("from", string(previous)),
		zap.String("to", string(request.Status)),
	)

	return *request, nil
}

func (s *Service) ListForCustomer(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	actor, ok := actorcontext.ActorFromContext(ctx)
	if !ok {
		return domain.ListResponse{}, domain.ErrUnauthenticated
	}
	return s.list(ctx, req, func(page pagination.Pagination) ([]*domain.ServiceRequest, error) {
		return s.repo.ListByCustomer(ctx, s.db, actor.ID, page)
	})
}

func (s *Service) ListForProvider(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	actor, ok := actorcontext.ActorFromContext(ctx)
	if !ok {
		return domain.ListResponse{}, domain.ErrUnauthenticated
	}
	return s.list(ctx, req, func(page pagination.Pagination) ([]*domain.ServiceRequest, error) {
		return s.repo.ListByProvider(ctx, s.db, actor.ID, page)
	})
}

func (s *Service) list(ctx context.Context, req domain.ListRequest, fetch func(pagination.Pagination) ([]*domain.ServiceRequest, error)) (domain.ListResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	items, err := fetch(pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(request *domain.ServiceRequest) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        request.ID.String(),
			CreatedAt: request.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	requests := make([]domain.ServiceRequest, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		requests = append(requests, *item)
	}

	resp := domain.ListResponse{Requests: requests}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) Get(ctx context.Context, req domain.GetRequest) (domain.ServiceRequest, error) {
	actor, ok := actorcontext.ActorFromContext(ctx)
	if !ok {
		return domain.ServiceRequest{}, domain.ErrUnauthenticated
	}

	id, err := s.parseID(req.RequestID)
	if err != nil {
		return domain.ServiceRequest{}, err
	}

	request, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.ServiceRequest{}, err
	}
	if request == nil {
		return domain.ServiceRequest{}, domain.ErrNotFound
	}
	if request.CustomerID != actor.ID && request.ProviderID != actor.ID {
		return domain.ServiceRequest{}, domain.ErrNotOwner
	}
	return *request, nil
}

func (s *Service) MarkPaymentCompleted(ctx context.Context, tx *gorm.DB, requestID snowflake.ID) error {
	moved, err := s.repo.UpdateStatus(ctx, tx, requestID, domain.StatusCompleted, domain.StatusPaymentCompleted, s.clock.Now())
	if err != nil {
		return err
	}
	if !moved {
		return domain.ErrInvalidTransition
	}
	s.metrics.RecordBookingTransition(ctx, string(domain.StatusCompleted), string(domain.StatusPaymentCompleted))
	return nil
}

func (s *Service) notifyActor(ctx context.Context, userID snowflake.ID, send func(recipient string)) {
	user, err := s.identity.FindByID(ctx, s.db, userID)
	if err != nil || user == nil {
		s.log.Debug("notification recipient lookup failed",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return
	}
	send(user.Email)
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
