package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	billingdomain "github.com/servineo/servineo/internal/billing/domain"
	billingrepo "github.com/servineo/servineo/internal/billing/repository"
	billingservice "github.com/servineo/servineo/internal/billing/service"
	bookingdomain "github.com/servineo/servineo/internal/booking/domain"
	bookingrepo "github.com/servineo/servineo/internal/booking/repository"
	bookingservice "github.com/servineo/servineo/internal/booking/service"
	catalogdomain "github.com/servineo/servineo/internal/catalog/domain"
	catalogrepo "github.com/servineo/servineo/internal/catalog/repository"
	"github.com/servineo/servineo/internal/clock"
	"github.com/servineo/servineo/internal/config"
	identitydomain "github.com/servineo/servineo/internal/identity/domain"
	identityrepo "github.com/servineo/servineo/internal/identity/repository"
	identityservice "github.com/servineo/servineo/internal/identity/service"
	"github.com/servineo/servineo/internal/notification"
	"github.com/servineo/servineo/internal/observability"
	payoutdomain "github.com/servineo/servineo/internal/payout/domain"
	payoutrepo "github.com/servineo/servineo/internal/payout/repository"
	payoutservice "github.com/servineo/servineo/internal/payout/service"
	gatewaydomain "github.com/servineo/servineo/internal/providers/gateway/domain"
	settlementdomain "github.com/servineo/servineo/internal/settlement/domain"
	settlementrepo "github.com/servineo/servineo/internal/settlement/repository"
	settlementservice "github.com/servineo/servineo/internal/settlement/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const apiTestSecret = "api-test-secret"

type apiGateway struct {
	mu       sync.Mutex
	orderSeq int
	orders   map[string]gatewaydomain.Order
	payments map[string]gatewaydomain.Payment
}

func newAPIGateway() *apiGateway {
	return &apiGateway{
		orders:   map[string]gatewaydomain.Order{},
		payments: map[string]gatewaydomain.Payment{},
	}
}

func (g *apiGateway) CreateOrder(ctx context.Context, req gatewaydomain.CreateOrderRequest) (gatewaydomain.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orderSeq++
	order := gatewaydomain.Order{
		ID:       fmt.Sprintf("order_%04d", g.orderSeq),
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   "created",
	}
	g.orders[order.ID] = order
	return order, nil
}

func (g *apiGateway) FetchOrder(ctx context.Context, orderID string) (gatewaydomain.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	order, ok := g.orders[orderID]
	if !ok {
		return gatewaydomain.Order{}, fmt.Errorf("%w: unknown order", gatewaydomain.ErrRejected)
	}
	return order, nil
}

func (g *apiGateway) FetchPayment(ctx context.Context, paymentID string) (gatewaydomain.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	payment, ok := g.payments[paymentID]
	if !ok {
		return gatewaydomain.Payment{}, fmt.Errorf("%w: unknown payment", gatewaydomain.ErrRejected)
	}
	return payment, nil
}

func (g *apiGateway) CreateTransfer(ctx context.Context, req gatewaydomain.CreateTransferRequest) (gatewaydomain.Transfer, error) {
	return gatewaydomain.Transfer{ID: "pout_0001", Amount: req.Amount, Status: "processed", Mode: req.Mode}, nil
}

func (g *apiGateway) CreateContact(ctx context.Context, req gatewaydomain.CreateContactRequest) (gatewaydomain.Contact, error) {
	return gatewaydomain.Contact{ID: "cont_0001"}, nil
}

func (g *apiGateway) CreateFundAccount(ctx context.Context, req gatewaydomain.CreateFundAccountRequest) (gatewaydomain.FundAccount, error) {
	return gatewaydomain.FundAccount{ID: "fa_0001"}, nil
}

func (g *apiGateway) settlePayment(orderID string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	order := g.orders[orderID]
	paymentID := "pay_" + orderID
	g.payments[paymentID] = gatewaydomain.Payment{
		ID:       paymentID,
		OrderID:  orderID,
		Amount:   order.Amount,
		Currency: order.Currency,
		Status:   "captured",
		Method:   "upi",
	}
	return paymentID
}

type dropNotifier struct{}

func (dropNotifier) BookingCreated(ctx context.Context, event notification.BookingEvent)       {}
func (dropNotifier) BookingStatusChanged(ctx context.Context, event notification.BookingEvent) {}
func (dropNotifier) PaymentCaptured(ctx context.Context, event notification.PaymentEvent)      {}

type apiFixture struct {
	engine        *gin.Engine
	db            *gorm.DB
	node          *snowflake.Node
	gateway       *apiGateway
	customerToken string
	providerToken string
	offering      catalogdomain.Service
}

func setupAPI(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&identitydomain.User{},
		&catalogdomain.Service{},
		&bookingdomain.ServiceRequest{},
		&billingdomain.Bill{},
		&settlementdomain.Payment{},
		&settlementdomain.Transfer{},
		&payoutdomain.ProviderPayoutProfile{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	fakeClock := clock.NewFakeClock(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	gateway := newAPIGateway()
	log := zap.NewNop()

	cfg := config.Config{
		AuthJWTSecret:      "http-test-jwt-secret",
		AuthJWTIssuer:      "servineo",
		AuthJWTAudience:    "servineo-api",
		PlatformFeePercent: 10,
		PayoutCurrency:     "INR",
		Gateway: config.GatewayConfig{
			KeySecret: apiTestSecret,
		},
	}

	customer := identitydomain.User{
		ID:    node.Generate(),
		Name:  "Asha",
		Email: "asha@example.com",
		Role:  identitydomain.RoleCustomer,
	}
	provider := identitydomain.User{
		ID:    node.Generate(),
		Name:  "Ravi",
		Email: "ravi@example.com",
		Role:  identitydomain.RoleProvider,
	}
	offering := catalogdomain.Service{
		ID:         node.Generate(),
		ProviderID: provider.ID,
		Name:       "Plumbing",
		Price:      50000,
	}
	for _, row := range []any{&customer, &provider, &offering} {
		if err := db.Create(row).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	identitySvc := identityservice.New(identityservice.Params{
		Config: cfg,
		DB:     db,
		Log:    log,
		Clock:  fakeClock,
		Repo:   identityrepo.Provide(),
	})
	billingSvc := billingservice.New(billingservice.Params{
		DB:      db,
		Log:     log,
		GenID:   node,
		Clock:   fakeClock,
		Repo:    billingrepo.Provide(),
		Booking: bookingrepo.Provide(),
	})
	bookingSvc := bookingservice.New(bookingservice.Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    fakeClock,
		Repo:     bookingrepo.Provide(),
		Catalog:  catalogrepo.Provide(),
		Identity: identityrepo.Provide(),
		Billing:  billingSvc,
		Notifier: dropNotifier{},
	})
	settlementSvc := settlementservice.New(settlementservice.Params{
		Config:      cfg,
		DB:          db,
		Log:         log,
		GenID:       node,
		Clock:       fakeClock,
		Repo:        settlementrepo.Provide(),
		Billing:     billingSvc,
		BillingRepo: billingrepo.Provide(),
		Booking:     bookingSvc,
		Identity:    identityrepo.Provide(),
		Payout:      payoutrepo.Provide(),
		Gateway:     gateway,
		Notifier:    dropNotifier{},
	})
	payoutSvc := payoutservice.New(payoutservice.Params{
		DB:      db,
		Log:     log,
		GenID:   node,
		Clock:   fakeClock,
		Repo:    payoutrepo.Provide(),
		Gateway: gateway,
	})

	engine := NewEngine(observability.Config{}, nil)
	NewServer(ServerParams{
		Gin:           engine,
		Cfg:           cfg,
		DB:            db,
		GenID:         node,
		IdentitySvc:   identitySvc,
		BookingSvc:    bookingSvc,
		BillingSvc:    billingSvc,
		SettlementSvc: settlementSvc,
		PayoutSvc:     payoutSvc,
	})

	customerToken, err := identitySvc.IssueToken(context.Background(), customer)
	if err != nil {
		t.Fatalf("issue customer token: %v", err)
	}
	providerToken, err := identitySvc.IssueToken(context.Background(), provider)
	if err != nil {
		t.Fatalf("issue provider token: %v", err)
	}

	return &apiFixture{
		engine:        engine,
		db:            db,
		node:          node,
		gateway:       gateway,
		customerToken: customerToken,
		providerToken: providerToken,
		offering:      offering,
	}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

type apiEnvelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	var envelope apiEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			t.Fatalf("decode data: %v (%s)", err, rec.Body.String())
		}
	}
}

func errorType(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope apiEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	if envelope.Error == nil {
		t.Fatalf("expected error payload, got %s", rec.Body.String())
	}
	return envelope.Error.Type
}

func apiSign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(apiTestSecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// createAndComplete books a request and walks it to completed through
// the provider endpoint.
func (f *apiFixture) createAndComplete(t *testing.T) string {
	t.Helper()

	rec := f.do(t, http.MethodPost, "/api/service-requests", f.customerToken, gin.H{
		"service_id": f.offering.ID.String(),
		"time_slot":  "2025-06-03T10:00:00Z",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create request: %d %s", rec.Code, rec.Body.String())
	}
	var created bookingdomain.ServiceRequest
	decodeEnvelope(t, rec, &created)
	requestID := created.ID.String()

	for _, status := range []string{"accepted", "in_progress", "completed"} {
		rec := f.do(t, http.MethodPatch, "/api/service-requests/"+requestID+"/provider", f.providerToken, gin.H{
			"status": status,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("transition to %s: %d %s", status, rec.Code, rec.Body.String())
		}
	}
	return requestID
}

func TestAPIRequiresAuthentication(t *testing.T) {
	f := setupAPI(t)

	rec := f.do(t, http.MethodGet, "/api/service-requests", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if errorType(t, rec) != "unauthorized" {
		t.Fatalf("expected unauthorized error type, got %s", rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/api/service-requests", "not-a-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for malformed token, got %d", rec.Code)
	}
}

func TestAPIRoleGates(t *testing.T) {
	f := setupAPI(t)

	// Providers cannot book their own services.
	rec := f.do(t, http.MethodPost, "/api/service-requests", f.providerToken, gin.H{
		"service_id": f.offering.ID.String(),
		"time_slot":  "2025-06-03T10:00:00Z",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d %s", rec.Code, rec.Body.String())
	}

	// Customers cannot register payout profiles.
	rec = f.do(t, http.MethodPost, "/api/provider/payout-profile", f.customerToken, gin.H{
		"account_holder": "Asha",
		"account_number": "123",
		"ifsc":           "HDFC0000001",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestAPIServiceRequestLifecycle(t *testing.T) {
	f := setupAPI(t)

	rec := f.do(t, http.MethodPost, "/api/service-requests", f.customerToken, gin.H{
		"service_id": f.offering.ID.String(),
		"time_slot":  "2025-06-03T10:00:00Z",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	var created bookingdomain.ServiceRequest
	decodeEnvelope(t, rec, &created)
	if created.Status != bookingdomain.StatusPending {
		t.Fatalf("expected pending, got %s", created.Status)
	}

	// Skipping accepted is rejected with a conflict.
	rec = f.do(t, http.MethodPatch, "/api/service-requests/"+created.ID.String()+"/provider", f.providerToken, gin.H{
		"status": "completed",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d %s", rec.Code, rec.Body.String())
	}
	if errorType(t, rec) != "conflict" {
		t.Fatalf("expected conflict type, got %s", rec.Body.String())
	}

	rec = f.do(t, http.MethodPatch, "/api/service-requests/"+created.ID.String()+"/provider", f.providerToken, gin.H{
		"status": "accepted",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("accept: %d %s", rec.Code, rec.Body.String())
	}

	// An unknown service id is a 404, not a validation failure.
	rec = f.do(t, http.MethodPost, "/api/service-requests", f.customerToken, gin.H{
		"service_id": f.node.Generate().String(),
		"time_slot":  "2025-06-03T10:00:00Z",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown service, got %d %s", rec.Code, rec.Body.String())
	}
	if errorType(t, rec) != "not_found" {
		t.Fatalf("expected not_found type, got %s", rec.Body.String())
	}

	// Bad RFC3339 time slot on creation.
	rec = f.do(t, http.MethodPost, "/api/service-requests", f.customerToken, gin.H{
		"service_id": f.offering.ID.String(),
		"time_slot":  "tomorrow at ten",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d %s", rec.Code, rec.Body.String())
	}
	if errorType(t, rec) != "validation_error" {
		t.Fatalf("expected validation_error, got %s", rec.Body.String())
	}

	// Both parties can read the request.
	for _, token := range []string{f.customerToken, f.providerToken} {
		rec = f.do(t, http.MethodGet, "/api/service-requests/"+created.ID.String(), token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("get: %d %s", rec.Code, rec.Body.String())
		}
	}
}

func TestAPICaptureFlow(t *testing.T) {
	f := setupAPI(t)
	requestID := f.createAndComplete(t)

	rec := f.do(t, http.MethodPost, "/api/payment/order", f.customerToken, gin.H{
		"request_id": requestID,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create order: %d %s", rec.Code, rec.Body.String())
	}
	var order settlementdomain.OrderResponse
	decodeEnvelope(t, rec, &order)
	if order.Amount != 50000 {
		t.Fatalf("expected order amount 50000, got %d", order.Amount)
	}

	paymentID := f.gateway.settlePayment(order.OrderID)

	// A forged signature never reaches the gateway or the database.
	rec = f.do(t, http.MethodPost, "/api/payment/"+requestID, f.customerToken, gin.H{
		"order_id":   order.OrderID,
		"payment_id": paymentID,
		"signature":  "deadbeef",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for forged signature, got %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/api/payment/"+requestID, f.customerToken, gin.H{
		"order_id":   order.OrderID,
		"payment_id": paymentID,
		"signature":  apiSign(order.OrderID, paymentID),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("capture: %d %s", rec.Code, rec.Body.String())
	}
	var result settlementdomain.CaptureResult
	decodeEnvelope(t, rec, &result)
	if result.Payment.PlatformFee != 5000 || result.Transfer.Amount != 45000 {
		t.Fatalf("unexpected split: fee %d transfer %d", result.Payment.PlatformFee, result.Transfer.Amount)
	}

	// Replay conflicts.
	rec = f.do(t, http.MethodPost, "/api/payment/"+requestID, f.customerToken, gin.H{
		"order_id":   order.OrderID,
		"payment_id": paymentID,
		"signature":  apiSign(order.OrderID, paymentID),
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on replay, got %d %s", rec.Code, rec.Body.String())
	}

	// The request is now settled end to end.
	rec = f.do(t, http.MethodGet, "/api/service-requests/"+requestID, f.customerToken, nil)
	var request bookingdomain.ServiceRequest
	decodeEnvelope(t, rec, &request)
	if request.Status != bookingdomain.StatusPaymentCompleted {
		t.Fatalf("expected payment_completed, got %s", request.Status)
	}

	rec = f.do(t, http.MethodGet, "/api/service-requests/"+requestID+"/bill", f.customerToken, nil)
	var bill billingdomain.Bill
	decodeEnvelope(t, rec, &bill)
	if bill.Status != billingdomain.BillStatusPaid {
		t.Fatalf("expected paid bill, got %s", bill.Status)
	}
}

func TestAPIPayoutFlow(t *testing.T) {
	f := setupAPI(t)
	requestID := f.createAndComplete(t)

	rec := f.do(t, http.MethodPost, "/api/payment/order", f.customerToken, gin.H{
		"request_id": requestID,
	})
	var order settlementdomain.OrderResponse
	decodeEnvelope(t, rec, &order)
	paymentID := f.gateway.settlePayment(order.OrderID)

	rec = f.do(t, http.MethodPost, "/api/payment/"+requestID, f.customerToken, gin.H{
		"order_id":   order.OrderID,
		"payment_id": paymentID,
		"signature":  apiSign(order.OrderID, paymentID),
	})
	var result settlementdomain.CaptureResult
	decodeEnvelope(t, rec, &result)
	transferID := result.Transfer.ID.String()

	// Without a verified profile the payout is rejected and retryable.
	rec = f.do(t, http.MethodPost, "/api/payment/transfer/"+transferID, f.providerToken, gin.H{
		"mode": "IMPS",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without profile, got %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/api/provider/payout-profile", f.providerToken, gin.H{
		"account_holder": "Ravi Kumar",
		"account_number": "1234567890",
		"ifsc":           "HDFC0000001",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register profile: %d %s", rec.Code, rec.Body.String())
	}

	// Registration alone leaves the profile pending, so the payout is
	// still gated until verification lands from the gateway.
	rec = f.do(t, http.MethodPost, "/api/payment/transfer/"+transferID, f.providerToken, gin.H{
		"mode": "IMPS",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 while pending, got %d %s", rec.Code, rec.Body.String())
	}

	if err := f.db.Model(&payoutdomain.ProviderPayoutProfile{}).
		Where("verification_status = ?", payoutdomain.VerificationPending).
		Update("verification_status", payoutdomain.VerificationVerified).Error; err != nil {
		t.Fatalf("verify profile: %v", err)
	}

	rec = f.do(t, http.MethodPost, "/api/payment/transfer/"+transferID, f.providerToken, gin.H{
		"mode": "IMPS",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("payout: %d %s", rec.Code, rec.Body.String())
	}
	var transfer settlementdomain.Transfer
	decodeEnvelope(t, rec, &transfer)
	if transfer.Status != settlementdomain.TransferStatusCaptured {
		t.Fatalf("expected captured transfer, got %s", transfer.Status)
	}

	// Customers cannot trigger payouts.
	rec = f.do(t, http.MethodPost, "/api/payment/transfer/"+transferID, f.customerToken, gin.H{
		"mode": "imps",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	// Payment details visible to the provider.
	rec = f.do(t, http.MethodGet, "/api/payment/details/"+result.Payment.ID.String(), f.providerToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("details: %d %s", rec.Code, rec.Body.String())
	}
}
