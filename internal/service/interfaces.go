// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package service implements the offline-first synchronization engine: the
// consumer-facing record service, the conflict resolver, the identity
// reconciler and the sync orchestrator that drives pull and push cycles.
package service

import (
	"context"

	"github.com/MKhiriev/go-field-sync/models"
)

// Resolution is the outcome of merging two versions of a record.
type Resolution struct {
	// Entity is the surviving version.
	Entity models.Entity
	// Deleted reports that a local deletion won; Entity is then the
	// tombstone.
	Deleted bool
}

// ConflictResolver merges a local and a remote version of one record. It is
// pure: the same inputs always give the same output and neither input is
// modified.
type ConflictResolver interface {
	Resolve(local, remote models.Entity, op models.OperationKind) (Resolution, error)
}

// IdentityReconciler replaces a temporary identifier with the one assigned
// by the server, everywhere on the device.
type IdentityReconciler interface {
	// Reconcile stores server under its id, removes the record held under
	// tempID and rewrites every local reference and queued operation that
	// still uses tempID. It returns the records whose references changed.
	Reconcile(ctx context.Context, kind models.EntityKind, tempID int64, server models.Entity) ([]models.Entity, error)
}

// RecordService is the data surface used by the UI layer. Writes land in
// the local store immediately.
type RecordService interface {
	// Save creates (zero id) or updates a record and returns the stored
	// version. Offline creates receive a temporary id.
	Save(ctx context.Context, e models.Entity) (models.Entity, error)
	// Delete removes a record locally and schedules the remote deletion.
	Delete(ctx context.Context, kind models.EntityKind, id int64) error
	// Get reads one record from the local store.
	Get(ctx context.Context, kind models.EntityKind, id int64) (models.Entity, error)
	// Query reads the records matching filter from the local store.
	Query(ctx context.Context, kind models.EntityKind, filter models.Filter) ([]models.Entity, error)
}

// SyncOrchestrator drives synchronization cycles.
type SyncOrchestrator interface {
	// TriggerSync runs a cycle now, or waits for the running one and returns
	// its result.
	TriggerSync(ctx context.Context) (models.SyncReport, error)
	// SyncStatus returns the current status snapshot.
	SyncStatus(ctx context.Context) (models.SyncStatus, error)
	// RetryFailed returns quarantined operations to the queue and returns
	// how many were reset.
	RetryFailed(ctx context.Context) (int, error)
	// Subscribe delivers change notifications until the returned function
	// is called.
	Subscribe() (<-chan models.ChangeEvent, func())

	// Kick requests a background cycle. It never blocks.
	Kick()
	// Start runs the trigger loop: connectivity transitions, the interval
	// timer and kicks.
	Start(ctx context.Context) error
	// Stop ends the trigger loop after the running cycle completes.
	Stop()
}
