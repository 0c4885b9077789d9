// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MKhiriev/go-field-sync/internal/adapter"
	"github.com/MKhiriev/go-field-sync/internal/config"
	"github.com/MKhiriev/go-field-sync/internal/connectivity"
	"github.com/MKhiriev/go-field-sync/internal/logger"
	"github.com/MKhiriev/go-field-sync/internal/remotetest"
	"github.com/MKhiriev/go-field-sync/internal/store"
	"github.com/MKhiriev/go-field-sync/internal/utils"
	"github.com/MKhiriev/go-field-sync/models"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

const fieldWorkerID = 77

var testSyncConfig = config.ClientSync{
	Interval:    time.Hour,
	MaxRetries:  3,
	BackoffBase: time.Minute,
	BackoffMax:  time.Hour,
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

// harness wires the engine to a real in-memory database and the in-memory
// remote.
type harness struct {
	t        *testing.T
	storages *store.ClientStorages
	server   *remotetest.Server
	monitor  *connectivity.Manual
	clock    *fakeClock
	svc      *Services
}

func newHarness(t *testing.T, online bool) *harness {
	t.Helper()

	db, err := store.NewConnectSQLite(context.Background(), config.ClientDB{DSN: ":memory:"}, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, db.Migrate())

	clock := &fakeClock{now: t0}
	storages := store.NewClientStoragesFromDB(db, utils.NewUUIDGenerator(), clock.Now, logger.Nop())
	t.Cleanup(func() { _ = storages.Close() })

	server := remotetest.New(t, remotetest.WithAuth())
	api, err := adapter.NewHTTPRemoteAPI(
		config.ClientAdapter{HTTPAddress: server.URL, RequestTimeout: 5 * time.Second},
		config.ClientApp{AuthToken: remotetest.Token(fieldWorkerID), DeviceID: "tablet-1"},
		logger.Nop(),
	)
	require.NoError(t, err)

	monitor := connectivity.NewManual(online)
	svc := NewServices(Dependencies{
		LocalStore: storages.LocalStore,
		Queue:      storages.OperationQueue,
		SyncMeta:   storages.SyncMeta,
		Remote:     api,
		Monitor:    monitor,
	}, testSyncConfig, logger.Nop(), WithClock(clock.Now), WithTracer(noop.NewTracerProvider().Tracer("test")))

	return &harness{t: t, storages: storages, server: server, monitor: monitor, clock: clock, svc: svc}
}

func (h *harness) save(e models.Entity) models.Entity {
	h.t.Helper()

	saved, err := h.svc.Records.Save(context.Background(), e)
	require.NoError(h.t, err)
	return saved
}

func (h *harness) sync() models.SyncReport {
	h.t.Helper()

	report, err := h.svc.Sync.TriggerSync(context.Background())
	require.NoError(h.t, err)
	return report
}

func (h *harness) status() models.SyncStatus {
	h.t.Helper()

	status, err := h.svc.Sync.SyncStatus(context.Background())
	require.NoError(h.t, err)
	return status
}

func (h *harness) queued() []models.PendingOperation {
	h.t.Helper()

	ops, err := h.storages.OperationQueue.List(context.Background())
	require.NoError(h.t, err)
	return ops
}

func (h *harness) local(kind models.EntityKind, id int64) models.Entity {
	h.t.Helper()

	e, err := h.storages.LocalStore.Get(context.Background(), kind, id)
	require.NoError(h.t, err)
	return e
}

func newChild(name string) *models.Child {
	return &models.Child{
		FullName:    name,
		DateOfBirth: time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
		District:    "Blantyre",
	}
}

func drain(ch <-chan models.ChangeEvent) []models.ChangeEvent {
	var out []models.ChangeEvent
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}
