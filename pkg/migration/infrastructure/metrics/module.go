package metrics

import (
	"go.uber.org/fx"

	metrics "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/metrics"
)

// Module is an Fx module that provides PrometheusRecorder and OTelTracer.
var Module = fx.Options(
	// Provide PrometheusRecorder as a metrics.MetricRecorder interface.
	fx.Provide(fx.Annotate(
		NewPrometheusRecorder,
		fx.As(new(metrics.MetricRecorder)),
	)),
	// Provide OTelTracer as a metrics.Tracer interface.
	fx.Provide(fx.Annotate(
		NewOTelTracer,
		fx.As(new(metrics.Tracer)),
	)),
)
