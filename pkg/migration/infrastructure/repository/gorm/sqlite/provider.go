// Package sqlite registers the SQLite dialector with the gorm adapter.
package sqlite

import (
	"errors"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	gormadaptor "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/infrastructure/repository/gorm"
)

// init registers the SQLite dialector factory with the gorm adapter.
func init() {
	gormadaptor.RegisterDialector("sqlite", func(cfg gormadaptor.DatabaseConfig) (gorm.Dialector, error) {
		if cfg.Database == "" {
			return nil, errors.New("sqlite database path cannot be empty")
		}
		// The SQLite dialector takes the file path directly.
		return sqlite.Open(cfg.Database), nil
	})
}
