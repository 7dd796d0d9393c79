// Package providers contains dependency injection providers for the PathWatch service.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/pathwatch/pathwatch-server/internal/config"
	"github.com/pathwatch/pathwatch-server/internal/logger"
	"github.com/pathwatch/pathwatch-server/internal/walker"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting PathWatch",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"watch_paths", len(cfg.Watch.Paths),
		"callback_concurrency", cfg.Monitor.CallbackConcurrency,
	)

	return log, nil
}

// ProvideWalker provides the directory-tree enumerator used for recursive
// registration seeding.
func ProvideWalker(i do.Injector) (*walker.Walker, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return walker.New(log.Logger), nil
}
