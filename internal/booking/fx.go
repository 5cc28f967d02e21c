package booking

import (
	"github.com/servineo/servineo/internal/booking/repository"
	"github.com/servineo/servineo/internal/booking/service"
	"go.uber.org/fx"
)

var Module = fx.Module("booking.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
