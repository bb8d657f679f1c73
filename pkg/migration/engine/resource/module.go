package resource

import (
	"context"
	"time"

	"go.uber.org/fx"

	config "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/config"
)

func provideMonitor(cfg *config.Config) *Monitor {
	return NewMonitor(cfg.Migration.Resource)
}

func registerLifecycle(lc fx.Lifecycle, monitor *Monitor) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// The start context is cancelled once startup finishes; the
			// sampling loop must outlive it and is stopped via OnStop.
			monitor.Start(context.Background())
			return nil
		},
		OnStop: func(ctx context.Context) error {
			monitor.Stop(5 * time.Second)
			return nil
		},
	})
}

// Module is an Fx module that provides the resource monitor and ties its
// sampling goroutine to the application lifecycle.
var Module = fx.Options(
	fx.Provide(provideMonitor),
	fx.Invoke(registerLifecycle),
)
