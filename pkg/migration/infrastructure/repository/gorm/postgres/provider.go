// Package postgres registers the PostgreSQL dialector with the gorm adapter.
package postgres

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	gormadaptor "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/infrastructure/repository/gorm"
)

// init registers the PostgreSQL dialector factory with the gorm adapter.
func init() {
	gormadaptor.RegisterDialector("postgres", func(cfg gormadaptor.DatabaseConfig) (gorm.Dialector, error) {
		return postgres.Open(connectionString(cfg)), nil
	})
}

// connectionString builds the DSN expected by gorm.io/driver/postgres.
func connectionString(c gormadaptor.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.Sslmode)
}
