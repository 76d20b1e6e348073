package invoice

import (
	"github.com/railzwaylabs/cargoledger/internal/invoice/render"
	"github.com/railzwaylabs/cargoledger/internal/invoice/repository"
	"github.com/railzwaylabs/cargoledger/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(repository.Provide),
	fx.Provide(render.NewPDFGenerator),
	fx.Provide(service.New),
)
