// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/MKhiriev/go-field-sync/internal/adapter"
	"github.com/MKhiriev/go-field-sync/internal/config"
	"github.com/MKhiriev/go-field-sync/internal/connectivity"
	"github.com/MKhiriev/go-field-sync/internal/logger"
	"github.com/MKhiriev/go-field-sync/internal/service"
	"github.com/MKhiriev/go-field-sync/internal/store"
	"github.com/MKhiriev/go-field-sync/internal/utils"
	"github.com/MKhiriev/go-field-sync/internal/workers"
	"github.com/MKhiriev/go-field-sync/models"
)

// App is the device process: storage, engine and background workers.
type App struct {
	cfg *config.ClientConfig

	storages *store.ClientStorages
	services *service.Services
	monitor  *connectivity.Manual
	workers  *workers.Workers

	out    io.Writer
	logger *logger.Logger

	shutdownOnce sync.Once
	shutdownErr  error
}

var _ Client = (*App)(nil)

// Option customises an [App].
type Option func(*App)

// WithOutput redirects the status lines, os.Stdout by default.
func WithOutput(w io.Writer) Option {
	return func(a *App) { a.out = w }
}

func NewApp(cfg *config.ClientConfig, log *logger.Logger, opts ...Option) *App {
	app := &App{cfg: cfg, out: os.Stdout, logger: log}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

// Init opens local storage and wires the engine. The device starts offline
// until the first probe succeeds.
func (a *App) Init(ctx context.Context) error {
	a.logger.Info().Msg("initializing client app...")

	storages, err := store.NewClientStorages(ctx, a.cfg.Storage, utils.NewUUIDGenerator(), a.logger)
	if err != nil {
		return fmt.Errorf("create local storage: %w", err)
	}

	remote, err := adapter.NewHTTPRemoteAPI(a.cfg.Adapter, a.cfg.App, a.logger)
	if err != nil {
		_ = storages.Close()
		return fmt.Errorf("create remote adapter: %w", err)
	}

	monitor := connectivity.NewManual(false)
	prober, err := connectivity.NewProber(a.cfg.Adapter, a.cfg.Connectivity, monitor, a.logger)
	if err != nil {
		_ = storages.Close()
		return fmt.Errorf("create connectivity prober: %w", err)
	}

	a.services = service.NewServices(service.Dependencies{
		LocalStore: storages.LocalStore,
		Queue:      storages.OperationQueue,
		SyncMeta:   storages.SyncMeta,
		Remote:     remote,
		Monitor:    monitor,
	}, a.cfg.Sync, a.logger)

	a.storages = storages
	a.monitor = monitor
	a.workers = workers.NewWorkers(prober, a.services.Sync)
	return nil
}

// Records returns the record service for the UI layer.
func (a *App) Records() service.RecordService {
	return a.services.Records
}

// Sync returns the sync orchestrator for the UI layer.
func (a *App) Sync() service.SyncOrchestrator {
	return a.services.Sync
}

// Run starts the prober and the sync loop, prints status changes and blocks
// until ctx is done or the process receives SIGTERM, SIGINT or SIGQUIT.
func (a *App) Run(ctx context.Context) error {
	if a.services == nil {
		return ErrNotInitialized
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	events, unsubscribe := a.services.Sync.Subscribe()
	defer unsubscribe()

	if err := a.workers.Start(ctx); err != nil {
		return fmt.Errorf("start workers: %w", err)
	}
	a.logger.Info().Msg("client started")
	a.printStatus(ctx)

	for {
		select {
		case <-ctx.Done():
			a.logger.Info().Msg("stop requested")
			return a.Shutdown(context.WithoutCancel(ctx))
		case ev := <-events:
			switch ev.Type {
			case models.ChangeState:
				a.printStatus(ctx)
			case models.ChangeOperationFailed:
				fmt.Fprintln(a.out, renderFailure(ev))
			}
		}
	}
}

// Shutdown stops the workers and closes the database. It is safe to call
// more than once.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownOnce.Do(func() {
		if a.services == nil {
			return
		}
		a.workers.Stop()

		if err := a.storages.Close(); err != nil {
			logger.FromContext(ctx).Err(err).Str("func", "App.Shutdown").Msg("error closing local storage")
			a.shutdownErr = errors.Join(a.shutdownErr, err)
		}
		a.logger.Info().Msg("client shut down gracefully")
	})
	return a.shutdownErr
}

func (a *App) printStatus(ctx context.Context) {
	status, err := a.services.Sync.SyncStatus(ctx)
	if err != nil {
		a.logger.Err(err).Str("func", "App.printStatus").Msg("error reading sync status")
		return
	}
	fmt.Fprintln(a.out, renderStatus(status))
}
