package server

import (
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/servineo/servineo/internal/actorcontext"
	identitydomain "github.com/servineo/servineo/internal/identity/domain"
	obscontext "github.com/servineo/servineo/internal/observability/context"
)

// AuthRequired resolves the bearer token to a user and stores it in the
// request context for downstream handlers and services.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		user, err := s.identitySvc.Authenticate(c.Request.Context(), strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := actorcontext.WithActor(c.Request.Context(), user)
		ctx = obscontext.WithUserID(ctx, user.ID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (s *Server) RequireRole(role identitydomain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorcontext.ActorFromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if actor.Role != role {
			AbortWithError(c, ErrForbidden)
			return
		}
		c.Next()
	}
}

// RateLimitPayments applies the per-user token bucket to the payment
// endpoints. With no limiter configured every request passes.
func (s *Server) RateLimitPayments() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.paymentLimiter.Enabled() {
			c.Next()
			return
		}

		actor, ok := actorcontext.ActorFromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		endpoint := c.FullPath()
		result, err := s.paymentLimiter.Allow(c.Request.Context(), actor.ID.String(), endpoint)
		if err != nil {
			// Redis being down must not take payments down with it.
			s.obsMetrics.RecordRateLimitAllowed(c.Request.Context(), endpoint)
			c.Next()
			return
		}
		if !result.Allowed {
			s.obsMetrics.RecordRateLimitDenied(c.Request.Context(), endpoint, "bucket_exhausted")
			if result.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(result.RetryAfter.Seconds()))))
			}
			AbortWithError(c, ErrRateLimited)
			return
		}

		s.obsMetrics.RecordRateLimitAllowed(c.Request.Context(), endpoint)
		c.Next()
	}
}
