package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/servineo/servineo/internal/actorcontext"
	billingdomain "github.com/servineo/servineo/internal/billing/domain"
	bookingdomain "github.com/servineo/servineo/internal/booking/domain"
	identitydomain "github.com/servineo/servineo/internal/identity/domain"
	"github.com/servineo/servineo/pkg/db/pagination"
)

type createServiceRequestRequest struct {
	ServiceID   string `json:"service_id"`
	ServiceName string `json:"service_name"`
	ProviderID  string `json:"provider_id"`
	Address     string `json:"address"`
	TimeSlot    string `json:"time_slot"`
}

func (s *Server) CreateServiceRequest(c *gin.Context) {
	var req createServiceRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	timeSlot, err := time.Parse(time.RFC3339, strings.TrimSpace(req.TimeSlot))
	if err != nil {
		AbortWithError(c, newValidationError("time_slot", "invalid_time_slot", "time_slot must be RFC3339"))
		return
	}

	resp, err := s.bookingSvc.Create(c.Request.Context(), bookingdomain.CreateRequest{
		ServiceID:       strings.TrimSpace(req.ServiceID),
		ServiceName:     strings.TrimSpace(req.ServiceName),
		ProviderID:      strings.TrimSpace(req.ProviderID),
		CustomerAddress: strings.TrimSpace(req.Address),
		TimeSlot:        timeSlot,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListServiceRequests(c *gin.Context) {
	var query struct {
		pagination.Pagination
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	listReq := bookingdomain.ListRequest{
		PageToken: query.PageToken,
		PageSize:  int32(query.PageSize),
	}

	actor, ok := actorcontext.ActorFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var (
		resp bookingdomain.ListResponse
		err  error
	)
	if actor.Role == identitydomain.RoleProvider {
		resp, err = s.bookingSvc.ListForProvider(c.Request.Context(), listReq)
	} else {
		resp, err = s.bookingSvc.ListForCustomer(c.Request.Context(), listReq)
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetServiceRequest(c *gin.Context) {
	resp, err := s.bookingSvc.Get(c.Request.Context(), bookingdomain.GetRequest{
		RequestID: strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type transitionRequest struct {
	Status string `json:"status"`
}

func (s *Server) TransitionServiceRequest(c *gin.Context) {
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.bookingSvc.ProviderTransition(c.Request.Context(), bookingdomain.TransitionRequest{
		RequestID: strings.TrimSpace(c.Param("id")),
		Next:      bookingdomain.Status(strings.TrimSpace(req.Status)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type createBillRequest struct {
	Amount int64 `json:"amount"`
}

func (s *Server) CreateBill(c *gin.Context) {
	var req createBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.billingSvc.CreateManual(c.Request.Context(), billingdomain.CreateManualRequest{
		RequestID: strings.TrimSpace(c.Param("id")),
		Amount:    req.Amount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetBill(c *gin.Context) {
	resp, err := s.billingSvc.GetForRequest(c.Request.Context(), billingdomain.GetBillRequest{
		RequestID: strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
