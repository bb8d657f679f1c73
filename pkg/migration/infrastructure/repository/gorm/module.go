package gorm

import (
	"context"

	"go.uber.org/fx"
	"gorm.io/gorm"

	config "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/config"
	port "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/port"
	schema "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/infrastructure/schema"
	logger "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/support/util/logger"
)

// provideDefaultConnection opens the connection named by the migration
// database reference.
func provideDefaultConnection(cfg *config.Config, provider *Provider) (*gorm.DB, error) {
	return provider.Resolve(cfg.Migration.DatabaseRef)
}

// registerLifecycle runs the schema migrations on start and closes all
// connections on stop.
func registerLifecycle(lc fx.Lifecycle, cfg *config.Config, provider *Provider) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			sqlDB, dbType, err := provider.ResolveSQL(cfg.Migration.DatabaseRef)
			if err != nil {
				return err
			}
			logger.Infof("Applying schema migrations on '%s' (%s).", cfg.Migration.DatabaseRef, dbType)
			return schema.NewMigrator(sqlDB, dbType).Up(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return provider.CloseAll()
		},
	})
}

// Module is an Fx module that provides the GORM-backed stores over the
// configured database connection.
var Module = fx.Options(
	fx.Provide(NewProvider),
	fx.Provide(provideDefaultConnection),
	fx.Provide(fx.Annotate(
		NewActivityStore,
		fx.As(new(port.ActivityStore)),
	)),
	fx.Provide(fx.Annotate(
		NewLedgerRepository,
		fx.As(new(port.LedgerRepository)),
	)),
	fx.Provide(fx.Annotate(
		NewConfigurationService,
		fx.As(new(port.ConfigurationService)),
	)),
	fx.Invoke(registerLifecycle),
)
