package payment

import (
	"github.com/railzwaylabs/cargoledger/internal/payment/repository"
	"github.com/railzwaylabs/cargoledger/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
