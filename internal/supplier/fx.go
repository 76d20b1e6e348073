package supplier

import (
	"github.com/railzwaylabs/cargoledger/internal/supplier/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("supplier.repository",
	fx.Provide(repository.Provide),
)
