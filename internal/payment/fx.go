package payment

import (
	"github.com/domijob/domijob/internal/config"
	"github.com/domijob/domijob/internal/payment/adapters/stripe"
	"github.com/domijob/domijob/internal/payment/domain"
	"github.com/domijob/domijob/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(
		fx.Annotate(
			func(cfg config.Config) domain.Adapter {
				return stripe.NewAdapter(cfg.StripeWebhookSecret)
			},
			fx.ResultTags(`group:"payment.adapters"`),
		),
	),
	fx.Provide(service.New),
)
