package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load parses environment variables into the provided struct using `env` tags.
// Nested structs may set `envPrefix` to group related settings:
//
//	type Config struct {
//	    Port     int            `env:"HTTP_PORT" envDefault:"8080"`
//	    Postgres PostgresConfig `envPrefix:"POSTGRES_"`
//	}
func Load(cfg any) error {
	return LoadWithOptions(cfg, env.Options{})
}

// LoadWithPrefix is Load with every variable name prefixed, e.g. "INVENTORY_".
func LoadWithPrefix(cfg any, prefix string) error {
	return LoadWithOptions(cfg, env.Options{Prefix: prefix})
}

// LoadWithOptions exposes the full env.Options, mostly so tests can inject
// an Environment map instead of touching the process environment.
func LoadWithOptions(cfg any, opts env.Options) error {
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
