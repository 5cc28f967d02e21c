package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	settlementdomain "github.com/servineo/servineo/internal/settlement/domain"
)

type createOrderRequest struct {
	RequestID string `json:"request_id"`
}

func (s *Server) CreatePaymentOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.settlementSvc.CreateOrder(c.Request.Context(), settlementdomain.CreateOrderRequest{
		RequestID: strings.TrimSpace(req.RequestID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

type capturePaymentRequest struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

func (s *Server) CapturePayment(c *gin.Context) {
	var req capturePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	requestID := strings.TrimSpace(c.Param("requestId"))

	// At most one capture per booking is in flight at a time.
	lockToken, locked, err := s.paymentLimiter.TryLockCapture(c.Request.Context(), requestID)
	if err == nil && !locked {
		AbortWithError(c, settlementdomain.ErrDuplicatePayment)
		return
	}
	if err == nil && lockToken != "" {
		defer func() {
			_ = s.paymentLimiter.ReleaseCapture(c.Request.Context(), requestID, lockToken)
		}()
	}

	resp, err := s.settlementSvc.Capture(c.Request.Context(), settlementdomain.CaptureRequest{
		RequestID: requestID,
		OrderID:   strings.TrimSpace(req.OrderID),
		PaymentID: strings.TrimSpace(req.PaymentID),
		Signature: strings.TrimSpace(req.Signature),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPaymentDetails(c *gin.Context) {
	resp, err := s.settlementSvc.GetPaymentDetails(c.Request.Context(), settlementdomain.DetailsRequest{
		PaymentID: strings.TrimSpace(c.Param("paymentId")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type payoutRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) PayoutTransfer(c *gin.Context) {
	var req payoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.settlementSvc.Payout(c.Request.Context(), settlementdomain.PayoutRequest{
		TransferID: strings.TrimSpace(c.Param("transferId")),
		Mode:       settlementdomain.TransferMode(strings.ToLower(strings.TrimSpace(req.Mode))),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
