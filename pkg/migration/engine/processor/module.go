package processor

import (
	"go.uber.org/fx"

	metrics "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/metrics"
	config "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/config"
	port "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/port"
	resource "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/engine/resource"
)

func provideProcessor(
	store port.ActivityStore,
	calc port.Calculator,
	notifier port.ProgressNotifier,
	monitor *resource.Monitor,
	recorder metrics.MetricRecorder,
	tracer metrics.Tracer,
	cfg *config.Config,
) *Processor {
	return NewProcessor(store, calc, notifier, monitor, recorder, tracer, cfg.Migration.Processor)
}

// Module is an Fx module that provides the batch processor.
var Module = fx.Options(
	fx.Provide(provideProcessor),
)
