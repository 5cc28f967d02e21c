package settlement

import (
	"github.com/servineo/servineo/internal/settlement/repository"
	"github.com/servineo/servineo/internal/settlement/service"
	"go.uber.org/fx"
)

var Module = fx.Module("settlement.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
