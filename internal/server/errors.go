package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	billingdomain "github.com/servineo/servineo/internal/billing/domain"
	bookingdomain "github.com/servineo/servineo/internal/booking/domain"
	catalogdomain "github.com/servineo/servineo/internal/catalog/domain"
	identitydomain "github.com/servineo/servineo/internal/identity/domain"
	payoutdomain "github.com/servineo/servineo/internal/payout/domain"
	gatewaydomain "github.com/servineo/servineo/internal/providers/gateway/domain"
	settlementdomain "github.com/servineo/servineo/internal/settlement/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case isUnauthorizedError(err):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case isForbiddenError(err):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, gatewaydomain.ErrUnavailable):
		return http.StatusBadGateway, errorPayload{
			Type:    "gateway_unavailable",
			Message: "payment gateway unavailable",
		}
	case errors.Is(err, ErrInternal):
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, bookingdomain.ErrInvalidID),
		errors.Is(err, bookingdomain.ErrInvalidService),
		errors.Is(err, bookingdomain.ErrInvalidTimeSlot),
		errors.Is(err, bookingdomain.ErrInvalidStatus),
		errors.Is(err, billingdomain.ErrInvalidID),
		errors.Is(err, billingdomain.ErrInvalidAmount),
		errors.Is(err, settlementdomain.ErrInvalidID),
		errors.Is(err, settlementdomain.ErrInvalidSignature),
		errors.Is(err, settlementdomain.ErrAmountMismatch),
		errors.Is(err, settlementdomain.ErrOrderMismatch),
		errors.Is(err, settlementdomain.ErrInvalidTransferMode),
		errors.Is(err, settlementdomain.ErrProfileUnverified),
		errors.Is(err, payoutdomain.ErrInvalidProfile),
		errors.Is(err, gatewaydomain.ErrRejected):
		return true
	default:
		return false
	}
}

func isUnauthorizedError(err error) bool {
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, identitydomain.ErrMissingToken),
		errors.Is(err, identitydomain.ErrMalformedToken),
		errors.Is(err, identitydomain.ErrInvalidToken),
		errors.Is(err, identitydomain.ErrNotFound),
		errors.Is(err, bookingdomain.ErrUnauthenticated),
		errors.Is(err, billingdomain.ErrUnauthenticated),
		errors.Is(err, settlementdomain.ErrUnauthenticated),
		errors.Is(err, payoutdomain.ErrUnauthenticated):
		return true
	default:
		return false
	}
}

func isForbiddenError(err error) bool {
	switch {
	case errors.Is(err, ErrForbidden),
		errors.Is(err, bookingdomain.ErrNotOwner),
		errors.Is(err, billingdomain.ErrNotOwner),
		errors.Is(err, settlementdomain.ErrNotOwner):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, bookingdomain.ErrInvalidTransition),
		errors.Is(err, billingdomain.ErrRequestNotBillable),
		errors.Is(err, billingdomain.ErrAlreadyPaid),
		errors.Is(err, settlementdomain.ErrDuplicatePayment),
		errors.Is(err, settlementdomain.ErrPaymentStateInvalid),
		errors.Is(err, settlementdomain.ErrPaymentNotCaptured),
		errors.Is(err, settlementdomain.ErrTransferSettled),
		errors.Is(err, payoutdomain.ErrAlreadyExists):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, bookingdomain.ErrInvalidTransition):
		return "invalid status transition"
	case errors.Is(err, billingdomain.ErrRequestNotBillable):
		return "request cannot be billed in its current status"
	case errors.Is(err, billingdomain.ErrAlreadyPaid):
		return "bill already paid"
	case errors.Is(err, settlementdomain.ErrDuplicatePayment):
		return "payment already recorded"
	case errors.Is(err, settlementdomain.ErrPaymentStateInvalid):
		return "payment is in an unsettleable state"
	case errors.Is(err, settlementdomain.ErrPaymentNotCaptured):
		return "payment not captured at gateway"
	case errors.Is(err, settlementdomain.ErrTransferSettled):
		return "transfer already settled"
	case errors.Is(err, payoutdomain.ErrAlreadyExists):
		return "payout profile already registered"
	default:
		return "conflict"
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, bookingdomain.ErrNotFound),
		errors.Is(err, bookingdomain.ErrServiceNotFound),
		errors.Is(err, billingdomain.ErrNotFound),
		errors.Is(err, billingdomain.ErrRequestNotFound),
		errors.Is(err, catalogdomain.ErrNotFound),
		errors.Is(err, settlementdomain.ErrPaymentNotFound),
		errors.Is(err, settlementdomain.ErrTransferNotFound),
		errors.Is(err, payoutdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, gatewaydomain.ErrRejected):
		return "gateway_rejected"
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "invalid_signature":
		return "signature verification failed"
	case "amount_mismatch":
		return "gateway amount does not match bill"
	case "order_mismatch":
		return "gateway order does not match request"
	case "payout_profile_unverified":
		return "payout profile is not verified"
	case "gateway_rejected":
		return "payment gateway rejected the request"
	default:
		return "invalid value"
	}
}

// classifyErrorForLog buckets handler errors for the request log.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	switch {
	case status >= http.StatusInternalServerError:
		return "server_error", payload.Type
	case status >= http.StatusBadRequest:
		return "client_error", payload.Type
	default:
		return "", ""
	}
}
