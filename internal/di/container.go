// Package di provides dependency injection configuration for the PathWatch service.
package di

import (
	"github.com/samber/do/v2"

	"github.com/pathwatch/pathwatch-server/internal/config"
	"github.com/pathwatch/pathwatch-server/internal/di/providers"
	"github.com/pathwatch/pathwatch-server/internal/logger"
	"github.com/pathwatch/pathwatch-server/internal/walker"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideWalker)

	// Monitoring
	do.Provide(injector, providers.ProvideMonitor)
	do.Provide(injector, providers.ProvideWatchService)

	return injector
}

// Bootstrap initializes all services and returns an error if any of them
// fails to come up. This triggers lazy initialization in dependency order.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*logger.Logger](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*walker.Walker](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.MonitorHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.WatchServiceHandle](injector); err != nil {
		return err
	}
	return nil
}
