package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/servineo/servineo/internal/providers/email"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const sendTimeout = 10 * time.Second

type BookingEvent struct {
	RequestID    snowflake.ID
	ServiceName  string
	CustomerName string
	TimeSlot     time.Time
	Status       string
	Recipient    string
}

type PaymentEvent struct {
	RequestID   snowflake.ID
	ServiceName string
	Amount      int64
	Recipient   string
}

// Service delivers notifications without blocking the caller. Delivery
// failures are logged and never propagated.
type Service interface {
	BookingCreated(ctx context.Context, event BookingEvent)
	BookingStatusChanged(ctx context.Context, event BookingEvent)
	PaymentCaptured(ctx context.Context, event PaymentEvent)
}

type service struct {
	sender email.Sender
	log    *zap.Logger
}

func New(sender email.Sender, log *zap.Logger) Service {
	return &service{
		sender: sender,
		log:    log.Named("notification.service"),
	}
}

func (s *service) BookingCreated(ctx context.Context, event BookingEvent) {
	subject := fmt.Sprintf("New booking request for %s", event.ServiceName)
	body := fmt.Sprintf(
		"<p>%s requested <b>%s</b> for %s.</p><p>Booking reference: %s</p>",
		event.CustomerName,
		event.ServiceName,
		event.TimeSlot.Format(time.RFC1123),
		event.RequestID,
	)
	s.deliver(event.Recipient, subject, body)
}

func (s *service) BookingStatusChanged(ctx context.Context, event BookingEvent) {
	subject := fmt.Sprintf("Booking %s is now %s", event.RequestID, event.Status)
	body := fmt.Sprintf(
		"<p>Your booking for <b>%s</b> is now <b>%s</b>.</p>",
		event.ServiceName,
		event.Status,
	)
	s.deliver(event.Recipient, subject, body)
}

func (s *service) PaymentCaptured(ctx context.Context, event PaymentEvent) {
	subject := fmt.Sprintf("Payment received for booking %s", event.RequestID)
	body := fmt.Sprintf(
		"<p>Payment of %d (minor units) for <b>%s</b> was captured.</p>",
		event.Amount,
		event.ServiceName,
	)
	s.deliver(event.Recipient, subject, body)
}

func (s *service) deliver(recipient, subject, body string) {
	if recipient == "" {
		return
	}
	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := s.sender.Send(sendCtx, []string{recipient}, subject, body); err != nil {
			s.log.Warn("notification delivery failed",
				zap.String("subject", subject),
				zap.Error(err),
			)
		}
	}()
}

var Module = fx.Module("notification",
	fx.Provide(New),
)
