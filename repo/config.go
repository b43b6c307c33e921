package repo

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx database/sql driver
	"github.com/spf13/viper"
)

// Config holds the connection settings for a repository pool
type Config struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Debug           bool          `mapstructure:"debug"`
}

// LoadConfig reads a Config from viper under the "database" key,
// applying pool defaults. Environment variables override file values
// the usual viper way (DATABASE_URL and friends).
func LoadConfig(v *viper.Viper) (*Config, error) {
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.debug", false)

	var cfg Config
	if err := v.UnmarshalKey("database", &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("database.url is required")
	}
	return &cfg, nil
}

// Open creates the connection pool described by the config
func (c *Config) Open() (*sql.DB, error) {
	db, err := sql.Open("pgx", c.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(c.MaxOpenConns)
	db.SetMaxIdleConns(c.MaxIdleConns)
	db.SetConnMaxLifetime(c.ConnMaxLifetime)
	return db, nil
}
