package product

import (
	"github.com/railzwaylabs/cargoledger/internal/product/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("product.repository",
	fx.Provide(repository.Provide),
)
