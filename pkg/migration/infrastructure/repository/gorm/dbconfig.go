package gorm

// PoolConfig holds connection pool settings for a database connection.
type PoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int `mapstructure:"conn_max_lifetime_minutes"`
}

// DatabaseConfig describes one named database connection. Entries under the
// root config's "database" key are decoded into this structure per adapter.
type DatabaseConfig struct {
	Type     string     `mapstructure:"type"`
	Host     string     `mapstructure:"host"`
	Port     int        `mapstructure:"port"`
	User     string     `mapstructure:"user"`
	Password string     `mapstructure:"password"`
	Database string     `mapstructure:"database"`
	Sslmode  string     `mapstructure:"sslmode"`
	Pool     PoolConfig `mapstructure:"pool"`
}
