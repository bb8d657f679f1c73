package local

import (
	"go.uber.org/fx"

	config "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/config"
	port "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/port"
)

func provideBackupStore(cfg *config.Config) (*BackupStore, error) {
	return NewBackupStore(cfg.Migration.Backup)
}

// Module is an Fx module that provides the local filesystem backup store.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		provideBackupStore,
		fx.As(new(port.BackupStore)),
	)),
)
