// Package mysql registers the MySQL dialector with the gorm adapter.
package mysql

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	gormadaptor "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/infrastructure/repository/gorm"
)

// init registers the MySQL dialector factory with the gorm adapter.
func init() {
	gormadaptor.RegisterDialector("mysql", func(cfg gormadaptor.DatabaseConfig) (gorm.Dialector, error) {
		return mysql.Open(connectionString(cfg)), nil
	})
}

// connectionString builds the DSN expected by gorm.io/driver/mysql:
// user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True&loc=Local
func connectionString(c gormadaptor.DatabaseConfig) string {
	var authPart string
	if c.User != "" {
		authPart = c.User
		if c.Password != "" {
			authPart = fmt.Sprintf("%s:%s", c.User, c.Password)
		}
		authPart += "@"
	}
	return fmt.Sprintf("%stcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		authPart, c.Host, c.Port, c.Database)
}
