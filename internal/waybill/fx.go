package waybill

import (
	"github.com/railzwaylabs/cargoledger/internal/waybill/repository"
	"github.com/railzwaylabs/cargoledger/internal/waybill/service"
	"go.uber.org/fx"
)

var Module = fx.Module("waybill.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
