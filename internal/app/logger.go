package app

import (
	"strings"

	"github.com/modelgrid/connecthub/pkg/logger"
)

// ConfigureLogging initialises the global logger from server settings.
func ConfigureLogging(cfg ServerConfig) error {
	level := strings.TrimSpace(cfg.LogLevel)
	if level == "" {
		level = "info"
	}
	return logger.Init(logger.Options{
		Level:       level,
		Development: cfg.Development,
	})
}
