package observability

import (
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(NewLogger),
	fx.Provide(NewMetrics),
	fx.Provide(NewTracerProvider),
	// the provider registers itself globally, so force construction
	fx.Invoke(func(trace.TracerProvider) {}),
)
