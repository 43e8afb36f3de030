package config

import (
	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every environment variable read by parseEnv.
const EnvPrefix = "AUTHKEEPER_"

// parseEnv overlays variables that are set; unset ones leave cfg untouched.
// A malformed value (e.g. a bad duration) panics, like a bad JSON file.
func parseEnv(cfg *Config) {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		panic(err)
	}
}
