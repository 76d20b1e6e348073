package recompute

import (
	"github.com/railzwaylabs/cargoledger/internal/recompute/service"
	"go.uber.org/fx"
)

var Module = fx.Module("recompute.service",
	fx.Provide(service.New),
)
