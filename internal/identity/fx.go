package identity

import (
	"github.com/servineo/servineo/internal/identity/repository"
	"github.com/servineo/servineo/internal/identity/service"
	"go.uber.org/fx"
)

var Module = fx.Module("identity.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
