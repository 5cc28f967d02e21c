package payout

import (
	"github.com/servineo/servineo/internal/payout/repository"
	"github.com/servineo/servineo/internal/payout/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payout.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
