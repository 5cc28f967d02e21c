package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/servineo/servineo/internal/actorcontext"
	billingdomain "github.com/servineo/servineo/internal/billing/domain"
	bookingdomain "github.com/servineo/servineo/internal/booking/domain"
	"github.com/servineo/servineo/internal/clock"
	"github.com/servineo/servineo/internal/config"
	identitydomain "github.com/servineo/servineo/internal/identity/domain"
	"github.com/servineo/servineo/internal/notification"
	"github.com/servineo/servineo/internal/observability/metrics"
	payoutdomain "github.com/servineo/servineo/internal/payout/domain"
	gatewaydomain "github.com/servineo/servineo/internal/providers/gateway/domain"
	"github.com/servineo/servineo/internal/settlement/domain"
	"github.com/servineo/servineo/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const gatewayPaymentCaptured = "captured"

type Params struct {
	fx.In

	Config      config.Config
	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	Billing     billingdomain.Service
	BillingRepo billingdomain.Repository
	Booking     bookingdomain.Service
	Identity    identitydomain.Repository
	Payout      payoutdomain.Repository
	Gateway     gatewaydomain.Client
	Notifier    notification.Service
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	cfg         config.Config
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	billing     billingdomain.Service
	billingRepo billingdomain.Repository
	booking     bookingdomain.Service
	identity    identitydomain.Repository
	payout      payoutdomain.Repository
	gateway     gatewaydomain.Client
	notifier    notification.Service
	metrics     *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		cfg:         p.Config,
		db:          p.DB,
		log:         p.Log.Named("settlement.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		billing:     p.Billing,
		billingRepo: p.BillingRepo,
		booking:     p.Booking,
		identity:    p.Identity,
		payout:      p.Payout,
		gateway:     p.Gateway,
		notifier:    p.Notifier,
		metrics:     p.Metrics,
	}
}

func (s *Service) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.OrderResponse, error) {
	actor, ok := actorcontext.ActorFromContext(ctx)
	if !ok {
		return domain.OrderResponse{}, domain.ErrUnauthenticated
	}

	requestID, err := s.parseID(req.RequestID)
	if err != nil {
		return domain.OrderResponse{}, err
	}

	bill, err := s.billing.EnsureBill(ctx, nil, requestID)
	if err != nil {
		return domain.OrderResponse{}, err
	}
	if bill.CustomerID != actor.ID {
		return domain.OrderResponse{}, domain.ErrNotOwner
	}
	if bill.Status == billingdomain.BillStatusPaid {
		return domain.OrderResponse{}, billingdomain.ErrAlreadyPaid
	}

	order, err := s.gateway.CreateOrder(ctx, gatewaydomain.CreateOrderRequest{
		Amount:   bill.Amount,
		Currency: s.cfg.PayoutCurrency,
		Receipt:  requestID.String(),
	})
	if err != nil {
		return domain.OrderResponse{}, err
	}

	s.log.Info("gateway order created",
		zap.String("request_id", requestID.String()),
		zap.String("order_id", order.ID),
		zap.Int64("amount", order.Amount),
	)

	return domain.OrderResponse{
		OrderID:  order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
	}, nil
}

func (s *Service) Capture(ctx context.Context, req domain.CaptureRequest) (domain.CaptureResult, error) {
	actor, ok := actorcontext.ActorFromContext(ctx)
	if !ok {
		return domain.CaptureResult{}, domain.ErrUnauthenticated
	}

	requestID, err := s.parseID(req.RequestID)
	if err != nil {
		return domain.CaptureResult{}, err
	}

	orderID := strings.TrimSpace(req.OrderID)
	paymentID := strings.TrimSpace(req.PaymentID)
	if orderID == "" || paymentID == "" {
		return domain.CaptureResult{}, domain.ErrInvalidID
	}

	// The signature gate comes first: nothing is read or written for a
	// forged request.
	if !signatureValid(s.cfg.Gateway.KeySecret, orderID, paymentID, strings.TrimSpace(req.Signature)) {
		return domain.CaptureResult{}, domain.ErrInvalidSignature
	}

	bill, err := s.billing.EnsureBill(ctx, nil, requestID)
	if err != nil {
		return domain.CaptureResult{}, err
	}
	if bill.CustomerID != actor.ID {
		return domain.CaptureResult{}, domain.ErrNotOwner
	}
	if bill.Status == billingdomain.BillStatusPaid {
		return domain.CaptureResult{}, billingdomain.ErrAlreadyPaid
	}

	existing, err := s.repo.FindPaymentByBillAndOrder(ctx, s.db, bill.ID, orderID)
	if err != nil {
		return domain.CaptureResult{}, err
	}
	if existing != nil {
		if existing.Status == domain.PaymentStatusCaptured {
			return domain.CaptureResult{}, domain.ErrDuplicatePayment
		}
		// A row in any other state means an earlier attempt left the
		// payment stuck; it needs reconciliation, not a replay.
		return domain.CaptureResult{}, domain.ErrPaymentStateInvalid
	}

	order, err := s.gateway.FetchOrder(ctx, orderID)
	if err != nil {
		return domain.CaptureResult{}, err
	}
	if order.Receipt != requestID.String() {
		return domain.CaptureResult{}, domain.ErrOrderMismatch
	}

	gatewayPayment, err := s.gateway.FetchPayment(ctx, paymentID)
	if err != nil {
		return domain.CaptureResult{}, err
	}
	if gatewayPayment.OrderID != orderID {
		return domain.CaptureResult{}, domain.ErrOrderMismatch
	}
	if gatewayPayment.Status != gatewayPaymentCaptured {
		return domain.CaptureResult{}, domain.ErrPaymentNotCaptured
	}
	if gatewayPayment.Amount != bill.Amount {
		return domain.CaptureResult{}, domain.ErrAmountMismatch
	}

	fee := bill.Amount * s.cfg.PlatformFeePercent / 100
	now := s.clock.Now()

	payment := domain.Payment{
		ID:               s.genID.Generate(),
		BillID:           bill.ID,
		CustomerID:       bill.CustomerID,
		ProviderID:       bill.ProviderID,
		Amount:           bill.Amount,
		PlatformFee:      fee,
		Status:           domain.PaymentStatusCaptured,
		PaymentMethod:    gatewayPayment.Method,
		GatewayOrderID:   orderID,
		GatewayPaymentID: paymentID,
		Metadata: datatypes.JSONMap{
			"gateway_currency": gatewayPayment.Currency,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	transfer := domain.Transfer{
		ID:         s.genID.Generate(),
		PaymentID:  payment.ID,
		ProviderID: bill.ProviderID,
		Amount:     bill.Amount - fee,
		Status:     domain.TransferStatusCreated,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertPayment(ctx, tx, &payment); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrDuplicatePayment
			}
			return err
		}

		paid, err := s.billingRepo.MarkPaid(ctx, tx, bill.ID, now)
		if err != nil {
			return err
		}
		if !paid {
			return billingdomain.ErrAlreadyPaid
		}

		if err := s.booking.MarkPaymentCompleted(ctx, tx, bill.RequestID); err != nil {
			return err
		}

		if err := s.repo.InsertTransfer(ctx, tx, &transfer); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrDuplicatePayment
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.CaptureResult{}, err
	}

	s.metrics.RecordPaymentCaptured(ctx, payment.PaymentMethod)
	s.notifyProvider(ctx, bill.ProviderID, bill.RequestID, payment.Amount)

	s.log.Info("payment captured",
		zap.String("request_id", bill.RequestID.String()),
		zap.String("payment_id", payment.ID.String()),
		zap.Int64("amount", payment.Amount),
		zap.Int64("platform_fee", payment.PlatformFee),
	)

	return domain.CaptureResult{Payment: payment, Transfer: transfer}, nil
}

func (s *Service) Payout(ctx context.Context, req domain.PayoutRequest) (domain.Transfer, error) {
	actor, ok := actorcontext.ActorFromContext(ctx)
	if !ok {
		return domain.Transfer{}, domain.ErrUnauthenticated
	}

	transferID, err := s.parseID(req.TransferID)
	if err != nil {
		return domain.Transfer{}, err
	}
	if !req.Mode.Valid() {
		return domain.Transfer{}, domain.ErrInvalidTransferMode
	}

	transfer, err := s.repo.FindTransferByID(ctx, s.db, transferID)
	if err != nil {
		return domain.Transfer{}, err
	}
	if transfer == nil {
		return domain.Transfer{}, domain.ErrTransferNotFound
	}
	if transfer.ProviderID != actor.ID {
		return domain.Transfer{}, domain.ErrNotOwner
	}
	if transfer.Status != domain.TransferStatusCreated {
		return domain.Transfer{}, domain.ErrTransferSettled
	}

	profile, err := s.payout.FindByProviderID(ctx, s.db, transfer.ProviderID)
	if err != nil {
		return domain.Transfer{}, err
	}
	if profile == nil || profile.VerificationStatus != payoutdomain.VerificationVerified {
		// The transfer stays created so the provider can retry once
		// the profile is verified.
		return domain.Transfer{}, domain.ErrProfileUnverified
	}

	gatewayTransfer, gatewayErr := s.gateway.CreateTransfer(ctx, gatewaydomain.CreateTransferRequest{
		FundAccountID: profile.GatewayFundAccountID,
		Amount:        transfer.Amount,
		Currency:      s.cfg.PayoutCurrency,
		Mode:          string(req.Mode),
		Reference:     transfer.ID.String(),
	})

	now := s.clock.Now()
	if gatewayErr != nil {
		settled, settleErr := s.repo.SettleTransfer(ctx, s.db, transfer.ID, domain.TransferStatusFailed, req.Mode, "", gatewayErr.Error(), now)
		if settleErr != nil {
			return domain.Transfer{}, settleErr
		}
		if !settled {
			return domain.Transfer{}, domain.ErrTransferSettled
		}
		s.metrics.RecordTransferSettled(ctx, string(domain.TransferStatusFailed))
		s.log.Warn("transfer payout failed",
			zap.String("transfer_id", transfer.ID.String()),
			zap.Error(gatewayErr),
		)
		return domain.Transfer{}, gatewayErr
	}

	settled, err := s.repo.SettleTransfer(ctx, s.db, transfer.ID, domain.TransferStatusCaptured, req.Mode, gatewayTransfer.ID, "", now)
	if err != nil {
		return domain.Transfer{}, err
	}
	if !settled {
		return domain.Transfer{}, domain.ErrTransferSettled
	}

	transfer.Status = domain.TransferStatusCaptured
	transfer.TransferMode = req.Mode
	transfer.GatewayTransferID = gatewayTransfer.ID
	transfer.UpdatedAt = now

	s.metrics.RecordTransferSettled(ctx, string(domain.TransferStatusCaptured))
	s.log.Info("transfer captured",
		zap.String("transfer_id", transfer.ID.String()),
		zap.Int64("amount", transfer.Amount),
		zap.String("mode", string(req.Mode)),
	)

	return *transfer, nil
}

func (s *Service) GetPaymentDetails(ctx context.Context, req domain.DetailsRequest) (domain.PaymentDetails, error) {
	actor, ok := actorcontext.ActorFromContext(ctx)
	if !ok {
		return domain.PaymentDetails{}, domain.ErrUnauthenticated
	}

	paymentID, err := s.parseID(req.PaymentID)
	if err != nil {
		return domain.PaymentDetails{}, err
	}

	payment, err := s.repo.FindPaymentByID(ctx, s.db, paymentID)
	if err != nil {
		return domain.PaymentDetails{}, err
	}
	if payment == nil {
		return domain.PaymentDetails{}, domain.ErrPaymentNotFound
	}
	if payment.CustomerID != actor.ID && payment.ProviderID != actor.ID {
		return domain.PaymentDetails{}, domain.ErrNotOwner
	}

	gatewayPayment, err := s.gateway.FetchPayment(ctx, payment.GatewayPaymentID)
	if err != nil {
		return domain.PaymentDetails{}, err
	}

	return domain.PaymentDetails{
		PaymentID:      payment.ID.String(),
		Status:         payment.Status,
		Amount:         payment.Amount,
		PlatformFee:    payment.PlatformFee,
		PaymentMethod:  payment.PaymentMethod,
		GatewayPayment: gatewayPayment,
	}, nil
}

func (s *Service) notifyProvider(ctx context.Context, providerID, requestID snowflake.ID, amount int64) {
	provider, err := s.identity.FindByID(ctx, s.db, providerID)
	if err != nil || provider == nil {
		return
	}
	s.notifier.PaymentCaptured(ctx, notification.PaymentEvent{
		RequestID: requestID,
		Amount:    amount,
		Recipient: provider.Email,
	})
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
