package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/servineo/servineo/internal/actorcontext"
	billingdomain "github.com/servineo/servineo/internal/billing/domain"
	"github.com/servineo/servineo/internal/booking/domain"
	"github.com/servineo/servineo/internal/booking/repository"
	catalogdomain "github.com/servineo/servineo/internal/catalog/domain"
	catalogrepo "github.com/servineo/servineo/internal/catalog/repository"
	"github.com/servineo/servineo/internal/clock"
	identitydomain "github.com/servineo/servineo/internal/identity/domain"
	identityrepo "github.com/servineo/servineo/internal/identity/repository"
	"github.com/servineo/servineo/internal/notification"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type billingStub struct {
	mu      sync.Mutex
	ensured []snowflake.ID
	err     error
}

func (b *billingStub) EnsureBill(ctx context.Context, tx *gorm.DB, requestID snowflake.ID) (billingdomain.Bill, error) {
	b.mu.Lock()
	b.ensured = append(b.ensured, requestID)
	b.mu.Unlock()
	return billingdomain.Bill{RequestID: requestID}, b.err
}

func (b *billingStub) CreateManual(ctx context.Context, req billingdomain.CreateManualRequest) (billingdomain.Bill, error) {
	return billingdomain.Bill{}, nil
}

func (b *billingStub) GetForRequest(ctx context.Context, req billingdomain.GetBillRequest) (billingdomain.Bill, error) {
	return billingdomain.Bill{}, nil
}

func (b *billingStub) EnsuredCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ensured)
}

type notifierStub struct {
	mu       sync.Mutex
	created  int
	statuses []string
}

func (n *notifierStub) BookingCreated(ctx context.Context, event notification.BookingEvent) {
	n.mu.Lock()
	n.created++
	n.mu.Unlock()
}

func (n *notifierStub) BookingStatusChanged(ctx context.Context, event notification.BookingEvent) {
	n.mu.Lock()
	n.statuses = append(n.statuses, event.Status)
	n.mu.Unlock()
}

func (n *notifierStub) PaymentCaptured(ctx context.Context, event notification.PaymentEvent) {}

type bookingFixture struct {
	svc      domain.Service
	db       *gorm.DB
	clock    *clock.FakeClock
	billing  *billingStub
	notifier *notifierStub
	customer identitydomain.User
	provider identitydomain.User
	offering catalogdomain.Service
}

func setupBooking(t *testing.T) *bookingFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&identitydomain.User{},
		&catalogdomain.Service{},
		&domain.ServiceRequest{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node := mustNode(t)
	fakeClock := clock.NewFakeClock(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))

	customer := identitydomain.User{
		ID:          node.Generate(),
		Name:        "Asha",
		Email:       "asha@example.com",
		PhoneNumber: "+911112223334",
		Address:     "7 Lake View",
		Role:        identitydomain.RoleCustomer,
		CreatedAt:   fakeClock.Now(),
	}
	provider := identitydomain.User{
		ID:        node.Generate(),
		Name:      "Ravi",
		Email:     "ravi@example.com",
		Role:      identitydomain.RoleProvider,
		CreatedAt: fakeClock.Now(),
	}
	if err := db.Create(&customer).Error; err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	if err := db.Create(&provider).Error; err != nil {
		t.Fatalf("seed provider: %v", err)
	}

	offering := catalogdomain.Service{
		ID:         node.Generate(),
		ProviderID: provider.ID,
		Name:       "Plumbing",
		Price:      50000,
		CreatedAt:  fakeClock.Now(),
	}
	if err := db.Create(&offering).Error; err != nil {
		t.Fatalf("seed service: %v", err)
	}

	billing := &billingStub{}
	notifier := &notifierStub{}

	svc := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    fakeClock,
		Repo:     repository.Provide(),
		Catalog:  catalogrepo.Provide(),
		Identity: identityrepo.Provide(),
		Billing:  billing,
		Notifier: notifier,
	})

	return &bookingFixture{
		svc:      svc,
		db:       db,
		clock:    fakeClock,
		billing:  billing,
		notifier: notifier,
		customer: customer,
		provider: provider,
		offering: offering,
	}
}

// nodeCounter gives every mustNode call a distinct node number: two Node
// instances sharing a node number can emit identical IDs within the same
// millisecond, which would make "stranger" users collide with fixture users.
var nodeCounter int64

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(atomic.AddInt64(&nodeCounter, 1))
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}

func (f *bookingFixture) asCustomer() context.Context {
	return actorcontext.WithActor(context.Background(), f.customer)
}

func (f *bookingFixture) asProvider() context.Context {
	return actorcontext.WithActor(context.Background(), f.provider)
}

func (f *bookingFixture) createRequest(t *testing.T) domain.ServiceRequest {
	t.Helper()
	request, err := f.svc.Create(f.asCustomer(), domain.CreateRequest{
		ServiceID: f.offering.ID.String(),
		TimeSlot:  f.clock.Now().Add(48 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	return request
}

func TestCreateSnapshotsServiceAndCustomer(t *testing.T) {
	f := setupBooking(t)

	request, err := f.svc.Create(f.asCustomer(), domain.CreateRequest{
		ServiceID:       f.offering.ID.String(),
		CustomerAddress: "9 Hill Road",
		TimeSlot:        f.clock.Now().Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if request.Status != domain.StatusPending {
		t.Fatalf("expected pending, got %s", request.Status)
	}
	if request.ServiceName != "Plumbing" || request.ServicePrice != 50000 {
		t.Fatalf("service snapshot wrong: %s %d", request.ServiceName, request.ServicePrice)
	}
	if request.CustomerName != "Asha" || request.CustomerPhone != "+911112223334" {
		t.Fatalf("customer snapshot wrong: %s %s", request.CustomerName, request.CustomerPhone)
	}
	if request.CustomerAddress != "9 Hill Road" {
		t.Fatalf("expected explicit address, got %s", request.CustomerAddress)
	}
	if f.notifier.created != 1 {
		t.Fatalf("expected one provider notification, got %d", f.notifier.created)
	}
}

func TestCreateByProviderAndName(t *testing.T) {
	f := setupBooking(t)

	request, err := f.svc.Create(f.asCustomer(), domain.CreateRequest{
		ServiceName: "Plumbing",
		ProviderID:  f.provider.ID.String(),
		TimeSlot:    f.clock.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("create by name: %v", err)
	}
	if request.ServiceID != f.offering.ID {
		t.Fatalf("resolved wrong service")
	}
}

func TestCreateRejectsPastTimeSlot(t *testing.T) {
	f := setupBooking(t)

	for _, slot := range []time.Time{
		f.clock.Now().Add(-time.Hour),
		f.clock.Now(), // boundary: "now" is not strictly future
	} {
		_, err := f.svc.Create(f.asCustomer(), domain.CreateRequest{
			ServiceID: f.offering.ID.String(),
			TimeSlot:  slot,
		})
		if err != domain.ErrInvalidTimeSlot {
			t.Fatalf("slot %v: expected ErrInvalidTimeSlot, got %v", slot, err)
		}
	}
}

func TestCreateUnknownService(t *testing.T) {
	f := setupBooking(t)

	// A well-formed id with no matching row is a lookup miss, not a
	// validation failure.
	_, err := f.svc.Create(f.asCustomer(), domain.CreateRequest{
		ServiceID: "123456789",
		TimeSlot:  f.clock.Now().Add(time.Hour),
	})
	if err != domain.ErrServiceNotFound {
		t.Fatalf("expected ErrServiceNotFound, got %v", err)
	}

	_, err = f.svc.Create(f.asCustomer(), domain.CreateRequest{
		ServiceName: "Deep Cleaning",
		ProviderID:  f.provider.ID.String(),
		TimeSlot:    f.clock.Now().Add(time.Hour),
	})
	if err != domain.ErrServiceNotFound {
		t.Fatalf("expected ErrServiceNotFound for unknown name, got %v", err)
	}
}

func TestCreateMalformedServiceID(t *testing.T) {
	f := setupBooking(t)

	_, err := f.svc.Create(f.asCustomer(), domain.CreateRequest{
		ServiceID: "not-a-service-id",
		TimeSlot:  f.clock.Now().Add(time.Hour),
	})
	if err != domain.ErrInvalidService {
		t.Fatalf("expected ErrInvalidService, got %v", err)
	}
}

func TestProviderTransitionLifecycle(t *testing.T) {
	f := setupBooking(t)
	request := f.createRequest(t)

	for _, next := range []domain.Status{
		domain.StatusAccepted,
		domain.StatusInProgress,
		domain.StatusCompleted,
	} {
		updated, err := f.svc.ProviderTransition(f.asProvider(), domain.TransitionRequest{
			RequestID: request.ID.String(),
			Next:      next,
		})
		if err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
		if updated.Status != next {
			t.Fatalf("expected %s, got %s", next, updated.Status)
		}
	}

	if f.billing.EnsuredCount() != 1 {
		t.Fatalf("expected bill generation on completion, got %d calls", f.billing.EnsuredCount())
	}
	if len(f.notifier.statuses) != 3 {
		t.Fatalf("expected 3 status notifications, got %d", len(f.notifier.statuses))
	}
}

func TestProviderTransitionRejectsInvalidEdges(t *testing.T) {
	f := setupBooking(t)
	request := f.createRequest(t)

	cases := []struct {
		name string
		next domain.Status
		want error
	}{
		{"pending to in_progress", domain.StatusInProgress, domain.ErrInvalidTransition},
		{"pending to completed", domain.StatusCompleted, domain.ErrInvalidTransition},
		{"pending to pending", domain.StatusPending, domain.ErrInvalidTransition},
		{"pending to payment_completed", domain.StatusPaymentCompleted, domain.ErrInvalidTransition},
		{"unknown status", domain.Status("done"), domain.ErrInvalidStatus},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.ProviderTransition(f.asProvider(), domain.TransitionRequest{
				RequestID: request.ID.String(),
				Next:      tc.next,
			})
			if err != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestProviderTransitionRejectedIsTerminal(t *testing.T) {
	f := setupBooking(t)
	request := f.createRequest(t)

	if _, err := f.svc.ProviderTransition(f.asProvider(), domain.TransitionRequest{
		RequestID: request.ID.String(),
		Next:      domain.StatusRejected,
	}); err != nil {
		t.Fatalf("reject: %v", err)
	}

	_, err := f.svc.ProviderTransition(f.asProvider(), domain.TransitionRequest{
		RequestID: request.ID.String(),
		Next:      domain.StatusAccepted,
	})
	if err != domain.ErrInvalidTransition {
		t.Fatalf("expected ErrInvalidTransition after reject, got %v", err)
	}
}

func TestProviderTransitionOwnership(t *testing.T) {
	f := setupBooking(t)
	request := f.createRequest(t)

	other := identitydomain.User{
		ID:   mustNode(t).Generate(),
		Name: "Mallory",
		Role: identitydomain.RoleProvider,
	}
	_, err := f.svc.ProviderTransition(actorcontext.WithActor(context.Background(), other), domain.TransitionRequest{
		RequestID: request.ID.String(),
		Next:      domain.StatusAccepted,
	})
	if err != domain.ErrNotOwner {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
}

func TestGetVisibleToBothParties(t *testing.T) {
	f := setupBooking(t)
	request := f.createRequest(t)

	for _, ctx := range []context.Context{f.asCustomer(), f.asProvider()} {
		got, err := f.svc.Get(ctx, domain.GetRequest{RequestID: request.ID.String()})
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.ID != request.ID {
			t.Fatalf("wrong request returned")
		}
	}

	stranger := identitydomain.User{ID: mustNode(t).Generate(), Name: "Eve", Role: identitydomain.RoleCustomer}
	if _, err := f.svc.Get(actorcontext.WithActor(context.Background(), stranger), domain.GetRequest{
		RequestID: request.ID.String(),
	}); err != domain.ErrNotOwner {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
}

func TestListForCustomerPaginates(t *testing.T) {
	f := setupBooking(t)
	for i := 0; i < 5; i++ {
		f.createRequest(t)
	}

	first, err := f.svc.ListForCustomer(f.asCustomer(), domain.ListRequest{PageSize: 3})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(first.Requests) != 3 || !first.HasMore {
		t.Fatalf("expected first page of 3 with more, got %d (hasMore=%v)", len(first.Requests), first.HasMore)
	}

	second, err := f.svc.ListForCustomer(f.asCustomer(), domain.ListRequest{
		PageSize:  3,
		PageToken: first.NextPageToken,
	})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(second.Requests) != 2 || second.HasMore {
		t.Fatalf("expected final page of 2, got %d (hasMore=%v)", len(second.Requests), second.HasMore)
	}

	// Newest first, no overlap between pages.
	seen := map[snowflake.ID]bool{}
	for _, r := range append(first.Requests, second.Requests...) {
		if seen[r.ID] {
			t.Fatalf("request %s appeared twice", r.ID)
		}
		seen[r.ID] = true
	}
}

func TestMarkPaymentCompleted(t *testing.T) {
	f := setupBooking(t)
	request := f.createRequest(t)

	// Walk to completed first.
	for _, next := range []domain.Status{domain.StatusAccepted, domain.StatusInProgress, domain.StatusCompleted} {
		if _, err := f.svc.ProviderTransition(f.asProvider(), domain.TransitionRequest{
			RequestID: request.ID.String(),
			Next:      next,
		}); err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
	}

	if err := f.svc.MarkPaymentCompleted(context.Background(), f.db, request.ID); err != nil {
		t.Fatalf("mark payment completed: %v", err)
	}
	if err := f.svc.MarkPaymentCompleted(context.Background(), f.db, request.ID); err != domain.ErrInvalidTransition {
		t.Fatalf("expected ErrInvalidTransition on second mark, got %v", err)
	}
}
