package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/servineo/servineo/internal/billing"
	billingdomain "github.com/servineo/servineo/internal/billing/domain"
	"github.com/servineo/servineo/internal/booking"
	bookingdomain "github.com/servineo/servineo/internal/booking/domain"
	"github.com/servineo/servineo/internal/catalog"
	"github.com/servineo/servineo/internal/clock"
	"github.com/servineo/servineo/internal/config"
	"github.com/servineo/servineo/internal/identity"
	identitydomain "github.com/servineo/servineo/internal/identity/domain"
	"github.com/servineo/servineo/internal/notification"
	"github.com/servineo/servineo/internal/observability"
	obsmiddleware "github.com/servineo/servineo/internal/observability/logger"
	obsmetrics "github.com/servineo/servineo/internal/observability/metrics"
	obstracing "github.com/servineo/servineo/internal/observability/tracing"
	"github.com/servineo/servineo/internal/payout"
	payoutdomain "github.com/servineo/servineo/internal/payout/domain"
	"github.com/servineo/servineo/internal/providers/email"
	"github.com/servineo/servineo/internal/providers/gateway"
	"github.com/servineo/servineo/internal/ratelimit"
	"github.com/servineo/servineo/internal/settlement"
	settlementdomain "github.com/servineo/servineo/internal/settlement/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	config.Module,
	clock.Module,
	fx.Provide(registerGin),
	email.Module,
	gateway.Module,
	notification.Module,
	identity.Module,
	catalog.Module,
	booking.Module,
	billing.Module,
	settlement.Module,
	payout.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	db             *gorm.DB
	genID          *snowflake.Node
	identitySvc    identitydomain.Service
	bookingSvc     bookingdomain.Service
	billingSvc     billingdomain.Service
	settlementSvc  settlementdomain.Service
	payoutSvc      payoutdomain.Service
	paymentLimiter *ratelimit.PaymentLimiter
	obsMetrics     *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	DB             *gorm.DB
	GenID          *snowflake.Node
	IdentitySvc    identitydomain.Service
	BookingSvc     bookingdomain.Service
	BillingSvc     billingdomain.Service
	SettlementSvc  settlementdomain.Service
	PayoutSvc      payoutdomain.Service
	PaymentLimiter *ratelimit.PaymentLimiter `optional:"true"`
	ObsMetrics     *obsmetrics.Metrics       `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		db:             p.DB,
		genID:          p.GenID,
		identitySvc:    p.IdentitySvc,
		bookingSvc:     p.BookingSvc,
		billingSvc:     p.BillingSvc,
		settlementSvc:  p.SettlementSvc,
		payoutSvc:      p.PayoutSvc,
		paymentLimiter: p.PaymentLimiter,
		obsMetrics:     p.ObsMetrics,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")
	api.Use(s.AuthRequired())

	requests := api.Group("/service-requests")
	{
		requests.POST("", s.RequireRole(identitydomain.RoleCustomer), s.CreateServiceRequest)
		requests.GET("", s.ListServiceRequests)
		requests.GET("/:id", s.GetServiceRequest)
		requests.PATCH("/:id/provider", s.RequireRole(identitydomain.RoleProvider), s.TransitionServiceRequest)
		requests.POST("/:id/bill", s.RequireRole(identitydomain.RoleProvider), s.CreateBill)
		requests.GET("/:id/bill", s.GetBill)
	}

	payments := api.Group("/payment")
	payments.Use(s.RateLimitPayments())
	{
		payments.POST("/order", s.RequireRole(identitydomain.RoleCustomer), s.CreatePaymentOrder)
		payments.GET("/details/:paymentId", s.GetPaymentDetails)
		payments.POST("/transfer/:transferId", s.RequireRole(identitydomain.RoleProvider), s.PayoutTransfer)
		payments.POST("/:requestId", s.RequireRole(identitydomain.RoleCustomer), s.CapturePayment)
	}

	provider := api.Group("/provider")
	provider.Use(s.RequireRole(identitydomain.RoleProvider))
	{
		provider.POST("/payout-profile", s.RegisterPayoutProfile)
		provider.GET("/payout-profile", s.GetPayoutProfile)
	}
}
