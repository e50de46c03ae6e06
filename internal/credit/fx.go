package credit

import (
	"github.com/domijob/domijob/internal/credit/repository"
	"github.com/domijob/domijob/internal/credit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("credit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
