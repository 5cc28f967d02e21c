package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	payoutdomain "github.com/servineo/servineo/internal/payout/domain"
)

type registerPayoutProfileRequest struct {
	AccountHolder string `json:"account_holder"`
	AccountNumber string `json:"account_number"`
	IFSC          string `json:"ifsc"`
}

func (s *Server) RegisterPayoutProfile(c *gin.Context) {
	var req registerPayoutProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.payoutSvc.Register(c.Request.Context(), payoutdomain.RegisterRequest{
		AccountHolder: strings.TrimSpace(req.AccountHolder),
		AccountNumber: strings.TrimSpace(req.AccountNumber),
		IFSC:          strings.TrimSpace(req.IFSC),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetPayoutProfile(c *gin.Context) {
	resp, err := s.payoutSvc.GetForProvider(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
