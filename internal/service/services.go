// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"time"

	"github.com/MKhiriev/go-field-sync/internal/adapter"
	"github.com/MKhiriev/go-field-sync/internal/config"
	"github.com/MKhiriev/go-field-sync/internal/connectivity"
	"github.com/MKhiriev/go-field-sync/internal/logger"
	"github.com/MKhiriev/go-field-sync/internal/store"
	"github.com/MKhiriev/go-field-sync/internal/validators"
	"github.com/MKhiriev/go-field-sync/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MKhiriev/go-field-sync/internal/service"

// Dependencies are the collaborators the engine is built on.
type Dependencies struct {
	LocalStore store.LocalStore
	Queue      store.OperationQueue
	SyncMeta   store.SyncMetaRepository
	Remote     adapter.RemoteAPI
	Monitor    connectivity.Monitor
}

// Services groups the engine components sharing one notifier.
type Services struct {
	Records    RecordService
	Sync       SyncOrchestrator
	Resolver   ConflictResolver
	Reconciler IdentityReconciler
	Notifier   *Notifier
}

type options struct {
	now    func() time.Time
	tracer trace.Tracer
}

// Option customises [NewServices].
type Option func(*options)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithTracer replaces the tracer obtained from the global provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) { o.tracer = tracer }
}

func NewServices(deps Dependencies, cfg config.ClientSync, log *logger.Logger, opts ...Option) *Services {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}

	notifier := NewNotifier(o.now)
	resolver := NewConflictResolver()
	reconciler := NewIdentityReconciler(deps.LocalStore, deps.Queue, notifier, log)

	orchestrator := &syncOrchestrator{
		localStore: deps.LocalStore,
		queue:      deps.Queue,
		meta:       deps.SyncMeta,
		remote:     deps.Remote,
		monitor:    deps.Monitor,
		resolver:   resolver,
		reconciler: reconciler,
		notifier:   notifier,
		cfg:        cfg,
		backoff:    backoffPolicy{base: cfg.BackoffBase, max: cfg.BackoffMax},
		now:        o.now,
		tracer:     o.tracer,
		logger:     log,
		state:      models.StateIdle,
		wake:       make(chan struct{}, 1),
	}

	records := &recordService{
		localStore: deps.LocalStore,
		queue:      deps.Queue,
		remote:     deps.Remote,
		monitor:    deps.Monitor,
		resolver:   resolver,
		reconciler: reconciler,
		notifier:   notifier,
		validator:  validators.NewEntityValidator(),
		sync:       orchestrator,
		now:        o.now,
		logger:     log,
	}

	return &Services{
		Records:    records,
		Sync:       orchestrator,
		Resolver:   resolver,
		Reconciler: reconciler,
		Notifier:   notifier,
	}
}
