package config

import "github.com/kelseyhightower/envconfig"

// parseEnv overlays variables named EnvPrefix_<TAG> onto config. Variables
// that are not set leave the current value untouched.
func parseEnv(config *Config) error {
	return envconfig.Process(EnvPrefix, config)
}
