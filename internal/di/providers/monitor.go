package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/pathwatch/pathwatch-server/internal/config"
	"github.com/pathwatch/pathwatch-server/internal/logger"
	"github.com/pathwatch/pathwatch-server/internal/monitor"
	"github.com/pathwatch/pathwatch-server/internal/walker"
	"github.com/pathwatch/pathwatch-server/internal/watcher"
)

// MonitorHandle wraps the monitor with shutdown capability.
type MonitorHandle struct {
	*monitor.Monitor
}

// Shutdown implements do.Shutdownable.
func (h *MonitorHandle) Shutdown() error {
	h.Monitor.Stop()
	return nil
}

// ProvideMonitor provides the monitoring coordinator.
func ProvideMonitor(i do.Injector) (*MonitorHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	enum := do.MustInvoke[*walker.Walker](i)

	m, err := monitor.New(log.Logger, enum, cfg.Monitor.CallbackConcurrency)
	if err != nil {
		return nil, err
	}

	return &MonitorHandle{Monitor: m}, nil
}

// WatchServiceHandle runs the watch source and the monitor's event loop.
type WatchServiceHandle struct {
	*watcher.Watcher
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *WatchServiceHandle) Shutdown() error {
	h.cancel()
	return h.Watcher.Stop()
}

// ProvideWatchService provides the file system watcher wired into the monitor.
func ProvideWatchService(i do.Injector) (*WatchServiceHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	monitorHandle := do.MustInvoke[*MonitorHandle](i)

	w, err := watcher.New(log.Logger, watcher.Options{
		IgnorePatterns: cfg.Watch.IgnorePatterns,
		Debounce:       cfg.Watch.Debounce,
	})
	if err != nil {
		return nil, err
	}

	for _, path := range cfg.Watch.Paths {
		if err := w.Watch(path); err != nil {
			return nil, err
		}
		log.Info("Watching path", "path", path)
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Run the platform backend in the background.
	go func() {
		if err := w.Start(ctx); err != nil {
			log.Error("File watcher error", "error", err)
		}
	}()

	// Feed the monitor from the watch source.
	go func() {
		if err := monitorHandle.Run(ctx, w.Events()); err != nil && ctx.Err() == nil {
			log.Error("Monitor event loop error", "error", err)
		}
	}()

	// Surface backend errors without stopping the service.
	go func() {
		for {
			select {
			case err, ok := <-w.Errors():
				if !ok {
					return
				}
				log.Warn("file watcher error", "error", err)
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info("File watcher started", "watch_paths", len(cfg.Watch.Paths))

	return &WatchServiceHandle{
		Watcher: w,
		cancel:  cancel,
	}, nil
}
