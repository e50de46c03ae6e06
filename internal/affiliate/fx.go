package affiliate

import (
	"github.com/domijob/domijob/internal/affiliate/repository"
	"github.com/domijob/domijob/internal/affiliate/service"
	"go.uber.org/fx"
)

var Module = fx.Module("affiliate.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
