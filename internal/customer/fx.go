package customer

import (
	"github.com/railzwaylabs/cargoledger/internal/customer/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("customer.repository",
	fx.Provide(repository.Provide),
)
