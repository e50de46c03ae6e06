package payout

import (
	"github.com/domijob/domijob/internal/payout/repository"
	"github.com/domijob/domijob/internal/payout/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payout.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
