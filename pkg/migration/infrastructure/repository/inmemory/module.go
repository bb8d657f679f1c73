package inmemory

import (
	"go.uber.org/fx"

	model "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/model"
	port "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/port"
)

func provideConfigurationService() *ConfigurationService {
	// Without a database there is nowhere to look configurations up, so the
	// memory store ships the stock 28-day, 0.07-decay configuration under the
	// id "default".
	return NewConfigurationService(model.Configuration{
		ConfigurationID:   "default",
		ChronicPeriodDays: 28,
		DecayRate:         0.07,
	})
}

// Module provides the in-memory store implementations. Selected over the
// gorm-backed stores when migration.database_ref is "memory".
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(NewActivityStore, fx.As(new(port.ActivityStore))),
		fx.Annotate(NewLedgerRepository, fx.As(new(port.LedgerRepository))),
		fx.Annotate(provideConfigurationService, fx.As(new(port.ConfigurationService))),
	),
)
