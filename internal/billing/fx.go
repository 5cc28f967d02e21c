package billing

import (
	"github.com/servineo/servineo/internal/billing/repository"
	"github.com/servineo/servineo/internal/billing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("billing.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
