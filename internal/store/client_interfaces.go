// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/MKhiriev/go-field-sync/models"
)

//go:generate mockgen -source=client_interfaces.go -destination=../mock/client_store_mock.go -package=mock

// LocalStore is the durable keyed persistence of entities, one collection
// per entity kind, with secondary indexes.
type LocalStore interface {
	// Get returns the record or [ErrRecordNotFound].
	Get(ctx context.Context, kind models.EntityKind, id int64) (models.Entity, error)
	// Put inserts or replaces a record and its index entries.
	Put(ctx context.Context, entity models.Entity) error
	// Delete removes a record. Deleting an absent record is not an error.
	Delete(ctx context.Context, kind models.EntityKind, id int64) error
	// QueryByIndex returns the records with an exact index entry.
	QueryByIndex(ctx context.Context, kind models.EntityKind, index, value string) ([]models.Entity, error)
	// Search returns the records matching predicate; nil matches all.
	Search(ctx context.Context, kind models.EntityKind, predicate models.Predicate) ([]models.Entity, error)
	// ReplaceAll atomically replaces the whole collection.
	ReplaceAll(ctx context.Context, kind models.EntityKind, entities []models.Entity) error
	// RewriteReferences replaces every foreign reference to from with to in
	// all collections and returns the changed records.
	RewriteReferences(ctx context.Context, from, to int64) ([]models.Entity, error)
	// NextTempID returns a new negative identifier, never handed out before.
	NextTempID(ctx context.Context) (int64, error)
}

// OperationQueue is the durable, time-ordered log of pending mutations.
type OperationQueue interface {
	// Enqueue appends op, assigning its ID and EnqueuedAt.
	Enqueue(ctx context.Context, op models.PendingOperation) (models.PendingOperation, error)
	// List returns all operations in non-decreasing EnqueuedAt order.
	List(ctx context.Context) ([]models.PendingOperation, error)
	// Get returns one operation or [ErrOperationNotFound].
	Get(ctx context.Context, id string) (models.PendingOperation, error)
	// FindByEntity returns the operations targeting one entity, in order.
	FindByEntity(ctx context.Context, kind models.EntityKind, entityID int64) ([]models.PendingOperation, error)
	// RemoveByID drops one operation.
	RemoveByID(ctx context.Context, id string) error
	// UpdateRetry stores a new delivery state.
	UpdateRetry(ctx context.Context, id string, retry models.RetryState) error
	// MarkFailed quarantines an operation with its final delivery state.
	MarkFailed(ctx context.Context, id string, retry models.RetryState) error
	// ReplacePayload rewrites the target id and the payload of an operation.
	ReplacePayload(ctx context.Context, id string, entityID int64, payload json.RawMessage) error
	// ResetFailed clears quarantine and retry state of every failed
	// operation and returns how many were reset.
	ResetFailed(ctx context.Context) (int, error)
	// Count returns the number of deliverable and quarantined operations.
	Count(ctx context.Context) (pending, failed int, err error)
	// Clear drops every operation.
	Clear(ctx context.Context) error
}

// SyncMetaRepository persists the bookkeeping of completed sync cycles.
type SyncMetaRepository interface {
	LastSyncedAt(ctx context.Context) (time.Time, error)
	SetLastSyncedAt(ctx context.Context, at time.Time) error
}
