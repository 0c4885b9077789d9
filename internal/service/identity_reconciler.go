// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/MKhiriev/go-field-sync/internal/logger"
	"github.com/MKhiriev/go-field-sync/internal/store"
	"github.com/MKhiriev/go-field-sync/models"
)

type identityReconciler struct {
	localStore store.LocalStore
	queue      store.OperationQueue
	notifier   *Notifier
	logger     *logger.Logger
}

func NewIdentityReconciler(localStore store.LocalStore, queue store.OperationQueue, notifier *Notifier, log *logger.Logger) IdentityReconciler {
	return &identityReconciler{localStore: localStore, queue: queue, notifier: notifier, logger: log}
}

// Reconcile rewrites tempID eagerly: the stored record, every referencing
// record and every queued operation that targets or mentions it. The server
// copy is written first so an interruption never loses the record.
func (r *identityReconciler) Reconcile(ctx context.Context, kind models.EntityKind, tempID int64, server models.Entity) ([]models.Entity, error) {
	if server == nil {
		return nil, ErrNilEntity
	}
	if server.Kind() != kind {
		return nil, fmt.Errorf("%w: %s and %s", ErrKindMismatch, kind, server.Kind())
	}
	if !models.IsTemporaryID(tempID) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTemporary, tempID)
	}
	serverID := server.GetID()
	if serverID <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidServerID, serverID)
	}

	log := logger.FromContext(ctx)

	if err := r.localStore.Put(ctx, server); err != nil {
		return nil, fmt.Errorf("store reconciled %s %d: %w", kind, serverID, err)
	}

	if err := r.rewriteQueue(ctx, kind, tempID, serverID); err != nil {
		return nil, err
	}

	changed, err := r.localStore.RewriteReferences(ctx, tempID, serverID)
	if err != nil {
		return nil, fmt.Errorf("rewrite references to %d: %w", tempID, err)
	}

	if err = r.localStore.Delete(ctx, kind, tempID); err != nil {
		return nil, fmt.Errorf("remove temporary %s %d: %w", kind, tempID, err)
	}

	log.Debug().
		Str("func", "identityReconciler.Reconcile").
		Str("collection", kind.Collection()).
		Int64("temp_id", tempID).
		Int64("entity_id", serverID).
		Int("references", len(changed)).
		Msg("temporary id reconciled")

	r.notifier.Publish(models.ChangeEvent{
		Type:       models.ChangeReconciled,
		Kind:       kind,
		EntityID:   serverID,
		PreviousID: tempID,
	})

	return changed, nil
}

// rewriteQueue retargets operations on tempID and rewrites references to it
// inside queued payloads.
func (r *identityReconciler) rewriteQueue(ctx context.Context, kind models.EntityKind, tempID, serverID int64) error {
	ops, err := r.queue.List(ctx)
	if err != nil {
		return fmt.Errorf("list queue for reconcile: %w", err)
	}

	needle := []byte(strconv.FormatInt(tempID, 10))
	for _, op := range ops {
		target := op.EntityKind == kind && op.EntityID == tempID
		if !target && !bytes.Contains(op.Payload, needle) {
			continue
		}

		e, err := op.Entity()
		if err != nil {
			r.logger.Err(err).
				Str("func", "identityReconciler.rewriteQueue").
				Str("operation_id", op.ID).
				Msg("skipping undecodable operation")
			continue
		}

		entityID := op.EntityID
		changed := e.RewriteReference(tempID, serverID)
		if target {
			e.SetID(serverID)
			entityID = serverID
			changed = true
		}
		if !changed {
			continue
		}

		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode rewritten operation %s: %w", op.ID, err)
		}
		if err = r.queue.ReplacePayload(ctx, op.ID, entityID, payload); err != nil {
			return fmt.Errorf("rewrite operation %s: %w", op.ID, err)
		}
	}
	return nil
}
