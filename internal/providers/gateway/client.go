package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/servineo/servineo/internal/config"
	"github.com/servineo/servineo/internal/providers/gateway/domain"
)

type gatewayErrorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

type httpClient struct {
	baseURL       string
	keyID         string
	keySecret     string
	accountNumber string
	client        *http.Client
}

// New builds the HTTP gateway client from configuration.
func New(cfg config.Config) domain.Client {
	timeout := time.Duration(cfg.Gateway.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	return &httpClient{
		baseURL:       strings.TrimRight(strings.TrimSpace(cfg.Gateway.BaseURL), "/"),
		keyID:         strings.TrimSpace(cfg.Gateway.KeyID),
		keySecret:     strings.TrimSpace(cfg.Gateway.KeySecret),
		accountNumber: strings.TrimSpace(cfg.Gateway.AccountNumber),
		client:        &http.Client{Timeout: timeout},
	}
}

func (c *httpClient) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.Order, error) {
	var order domain.Order
	err := c.doRequest(ctx, http.MethodPost, "/v1/orders", map[string]any{
		"amount":   req.Amount,
		"currency": req.Currency,
		"receipt":  req.Receipt,
	}, &order)
	return order, err
}

func (c *httpClient) FetchOrder(ctx context.Context, orderID string) (domain.Order, error) {
	var order domain.Order
	err := c.doRequest(ctx, http.MethodGet, "/v1/orders/"+orderID, nil, &order)
	return order, err
}

func (c *httpClient) FetchPayment(ctx context.Context, paymentID string) (domain.Payment, error) {
	var payment domain.Payment
	err := c.doRequest(ctx, http.MethodGet, "/v1/payments/"+paymentID, nil, &payment)
	return payment, err
}

func (c *httpClient) CreateTransfer(ctx context.Context, req domain.CreateTransferRequest) (domain.Transfer, error) {
	var transfer domain.Transfer
	err := c.doRequest(ctx, http.MethodPost, "/v1/payouts", map[string]any{
		"account_number":  c.accountNumber,
		"fund_account_id": req.FundAccountID,
		"amount":          req.Amount,
		"currency":        req.Currency,
		"mode":            strings.ToUpper(req.Mode),
		"purpose":         "payout",
		"reference_id":    req.Reference,
	}, &transfer)
	return transfer, err
}

func (c *httpClient) CreateContact(ctx context.Context, req domain.CreateContactRequest) (domain.Contact, error) {
	var contact domain.Contact
	err := c.doRequest(ctx, http.MethodPost, "/v1/contacts", map[string]any{
		"name":    req.Name,
		"email":   req.Email,
		"contact": req.Phone,
		"type":    "vendor",
	}, &contact)
	return contact, err
}

func (c *httpClient) CreateFundAccount(ctx context.Context, req domain.CreateFundAccountRequest) (domain.FundAccount, error) {
	var account domain.FundAccount
	err := c.doRequest(ctx, http.MethodPost, "/v1/fund_accounts", map[string]any{
		"contact_id":   req.ContactID,
		"account_type": "bank_account",
		"bank_account": map[string]any{
			"name":           req.AccountHolder,
			"account_number": req.AccountNumber,
			"ifsc":           req.IFSC,
		},
	}, &account)
	return account, err
}

func (c *httpClient) doRequest(ctx context.Context, method, path string, body map[string]any, out any) error {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status %d", domain.ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var gatewayErr gatewayErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&gatewayErr); err != nil {
			return fmt.Errorf("%w: status %d", domain.ErrRejected, resp.StatusCode)
		}
		description := strings.TrimSpace(gatewayErr.Error.Description)
		if description == "" {
			description = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return fmt.Errorf("%w: %s", domain.ErrRejected, description)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return err
		}
	}
	return nil
}
