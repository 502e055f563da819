// Package commands provides CLI command implementations.
package commands

import (
	"os"

	"flow-trainer/config"
	"flow-trainer/logging"
)

// loadConfig reads the process configuration and installs the logger
func loadConfig(json bool) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Setup(os.Stderr, cfg.LogLevel, json)
	return cfg, nil
}
