package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/domijob/domijob/internal/affiliate"
	affiliatedomain "github.com/domijob/domijob/internal/affiliate/domain"
	"github.com/domijob/domijob/internal/authorization"
	"github.com/domijob/domijob/internal/cache"
	"github.com/domijob/domijob/internal/config"
	"github.com/domijob/domijob/internal/credit"
	creditdomain "github.com/domijob/domijob/internal/credit/domain"
	"github.com/domijob/domijob/internal/credit/guest"
	"github.com/domijob/domijob/internal/notification"
	notificationdomain "github.com/domijob/domijob/internal/notification/domain"
	"github.com/domijob/domijob/internal/observability"
	"github.com/domijob/domijob/internal/payment"
	paymentdomain "github.com/domijob/domijob/internal/payment/domain"
	"github.com/domijob/domijob/internal/payout"
	payoutdomain "github.com/domijob/domijob/internal/payout/domain"
	"github.com/domijob/domijob/internal/ratelimit"
)

var Module = fx.Module("http.server",
	authorization.Module,
	cache.Module,
	observability.Module,
	ratelimit.Module,
	affiliate.Module,
	payout.Module,
	credit.Module,
	notification.Module,
	payment.Module,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) { s.RegisterRoutes() }),
	fx.Invoke(run),
)

type ServerParams struct {
	fx.In

	Engine          *gin.Engine
	Log             *zap.Logger
	Cfg             config.Config
	AffiliateSvc    affiliatedomain.Service
	PayoutSvc       payoutdomain.Service
	CreditSvc       creditdomain.Service
	NotificationSvc notificationdomain.Service
	PaymentSvc      paymentdomain.Service
	AuthzSvc        authorization.Service
	ClickLimiter    *ratelimit.ClickLimiter `optional:"true"`
}

type Server struct {
	engine          *gin.Engine
	log             *zap.Logger
	cfg             config.Config
	affiliateSvc    affiliatedomain.Service
	payoutSvc       payoutdomain.Service
	creditSvc       creditdomain.Service
	notificationSvc notificationdomain.Service
	paymentSvc      paymentdomain.Service
	authzSvc        authorization.Service
	clickLimiter    *ratelimit.ClickLimiter
	guestCodec      *guest.Codec
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:          p.Engine,
		log:             p.Log.Named("http.server"),
		cfg:             p.Cfg,
		affiliateSvc:    p.AffiliateSvc,
		payoutSvc:       p.PayoutSvc,
		creditSvc:       p.CreditSvc,
		notificationSvc: p.NotificationSvc,
		paymentSvc:      p.PaymentSvc,
		authzSvc:        p.AuthzSvc,
		clickLimiter:    p.ClickLimiter,
		guestCodec:      guest.NewCodec(p.Cfg.GuestCookieSecret, p.Cfg.Credit.GuestAllowance),
	}
}

func NewEngine(cfg config.Config) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(observability.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func (s *Server) RegisterRoutes() {
	// Public referral redirect.
	s.engine.GET("/r/:code", s.TrackClick)

	// Payment processor webhooks.
	s.engine.POST("/webhooks/payments/:provider", s.HandlePaymentWebhook)

	api := s.engine.Group("/api")

	// Credit debit accepts both registered users and guests.
	api.POST("/credits/debit", s.Identity(), s.DebitCredits)

	authed := api.Group("", s.Identity(), s.RequireUser())
	{
		authed.POST("/affiliate/register", s.RegisterAffiliate)
		authed.GET("/affiliate/stats", s.AffiliateStats)
		authed.GET("/affiliate/clicks", s.ListAffiliateClicks)
		authed.GET("/affiliate/referrals", s.ListAffiliateReferrals)
		authed.PUT("/affiliate/payment-details", s.UpdatePaymentDetails)
		authed.POST("/affiliate/conversions", s.RecordConversion)

		authed.POST("/payouts", s.RequestPayout)
		authed.GET("/payouts", s.ListPayouts)
		authed.GET("/payouts/:id", s.GetPayout)

		authed.POST("/credits/signup-bonus", s.GrantSignupBonus)
		authed.GET("/credits", s.GetCreditBalance)
		authed.GET("/credits/transactions", s.ListCreditTransactions)

		authed.GET("/notifications", s.ListNotifications)
		authed.POST("/notifications/:id/read", s.MarkNotificationRead)
	}

	admin := api.Group("/admin", s.Identity(), s.RequireUser())
	{
		admin.POST("/payouts/:id/transition",
			s.Authorize(authorization.ObjectPayout, authorization.ActionPayoutTransition), s.TransitionPayout)
		admin.POST("/credits/grant",
			s.Authorize(authorization.ObjectCredit, authorization.ActionCreditGrant), s.GrantCredits)
		admin.POST("/affiliates/:id/active",
			s.Authorize(authorization.ObjectAffiliate, authorization.ActionAffiliateModerate), s.SetAffiliateActive)
	}
}

func run(lc fx.Lifecycle, engine *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			_ = ctx
			log.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
