package config

import (
	"errors"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// overrides are the environment variables that take precedence over the
// YAML file. Empty values leave the file setting alone.
type overrides struct {
	Listen      string `env:"SHIFTCAL_LISTEN"`
	Timezone    string `env:"SHIFTCAL_TIMEZONE"`
	StoreDriver string `env:"SHIFTCAL_STORE_DRIVER"`
	StoreDSN    string `env:"SHIFTCAL_STORE_DSN"`
	LogLevel    string `env:"SHIFTCAL_LOG_LEVEL"`
	RedisAddr   string `env:"SHIFTCAL_REDIS_ADDR"`
}

// ApplyEnv loads dotenv files (".env" when none are given; missing files are
// ignored) and then applies SHIFTCAL_* overrides. Variables already present
// in the process environment win over dotenv values.
func (c *Config) ApplyEnv(dotenvFiles ...string) error {
	if err := godotenv.Load(dotenvFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	var o overrides
	if err := env.Parse(&o); err != nil {
		var aggErr env.AggregateError
		if errors.As(err, &aggErr) && len(aggErr.Errors) > 0 {
			return aggErr.Errors[0]
		}
		return err
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Listen, o.Listen)
	set(&c.Timezone, o.Timezone)
	set(&c.Store.Driver, o.StoreDriver)
	set(&c.Store.DSN, o.StoreDSN)
	set(&c.Log.Level, o.LogLevel)
	set(&c.Cache.RedisAddr, o.RedisAddr)

	c.Normalize()
	return nil
}
