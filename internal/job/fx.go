package job

import (
	"github.com/railzwaylabs/cargoledger/internal/job/domain"
	"github.com/railzwaylabs/cargoledger/internal/job/repository"
	"github.com/railzwaylabs/cargoledger/internal/job/runner"
	"github.com/railzwaylabs/cargoledger/internal/job/service"
	"go.uber.org/fx"
)

var Module = fx.Module("job.service",
	fx.Provide(repository.Provide),
	fx.Provide(runner.NewHandlers),
	fx.Provide(runner.New),
	fx.Provide(func(r *runner.Runner) domain.Dispatcher { return r }),
	fx.Provide(service.New),
)

// StartRunner runs the job workers for the lifetime of the application.
func StartRunner(lc fx.Lifecycle, r *runner.Runner) {
	lc.Append(fx.Hook{
		OnStart: r.Start,
		OnStop:  r.Stop,
	})
}
