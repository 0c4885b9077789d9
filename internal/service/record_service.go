// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MKhiriev/go-field-sync/internal/adapter"
	"github.com/MKhiriev/go-field-sync/internal/connectivity"
	"github.com/MKhiriev/go-field-sync/internal/logger"
	"github.com/MKhiriev/go-field-sync/internal/store"
	"github.com/MKhiriev/go-field-sync/internal/validators"
	"github.com/MKhiriev/go-field-sync/models"
)

type recordService struct {
	localStore store.LocalStore
	queue      store.OperationQueue
	remote     adapter.RemoteAPI
	monitor    connectivity.Monitor
	resolver   ConflictResolver
	reconciler IdentityReconciler
	notifier   *Notifier
	validator  validators.Validator
	sync       interface{ Kick() }
	now        func() time.Time
	logger     *logger.Logger
}

// Save validates e and writes it locally first. When the device is online and nothing is
// waiting in the queue, the change is sent right away; otherwise, or when
// the remote is unreachable, it is queued. A validation rejection undoes the
// local write and is returned to the caller.
func (s *recordService) Save(ctx context.Context, e models.Entity) (models.Entity, error) {
	if e == nil {
		return nil, ErrNilEntity
	}
	kind := e.Kind()
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownEntityKind, kind)
	}

	e = e.Clone()
	s.prepare(e)
	if err := s.validator.Validate(ctx, e); err != nil {
		return nil, err
	}

	op := models.OpUpdate
	var previous models.Entity

	switch id := e.GetID(); {
	case id == 0:
		tempID, err := s.localStore.NextTempID(ctx)
		if err != nil {
			return nil, fmt.Errorf("allocate temporary id: %w", err)
		}
		e.SetID(tempID)
		op = models.OpCreate
	default:
		current, err := s.localStore.Get(ctx, kind, id)
		switch {
		case err == nil:
			previous = current
		case errors.Is(err, store.ErrRecordNotFound) && !models.IsTemporaryID(id):
		default:
			return nil, fmt.Errorf("load %s %d: %w", kind, id, err)
		}
		if models.IsTemporaryID(id) {
			op = models.OpCreate
		}
	}

	if err := s.localStore.Put(ctx, e); err != nil {
		return nil, fmt.Errorf("save %s %d: %w", kind, e.GetID(), err)
	}
	s.notifier.Publish(models.ChangeEvent{Type: models.ChangeSaved, Kind: kind, EntityID: e.GetID()})

	// A record pointing at an unacknowledged one waits for it in the queue.
	direct := (previous == nil || !models.IsTemporaryID(e.GetID())) && !models.HasTemporaryReference(e)
	if direct && s.canSendDirectly(ctx) {
		saved, handled, err := s.sendSave(ctx, op, e, previous)
		if err != nil || handled {
			return saved, err
		}
	}

	if err := s.enqueue(ctx, op, e); err != nil {
		return nil, err
	}
	return e, nil
}

// sendSave transmits a save. handled is false when the change still has to
// be queued.
func (s *recordService) sendSave(ctx context.Context, op models.OperationKind, e, previous models.Entity) (saved models.Entity, handled bool, err error) {
	log := logger.FromContext(ctx)

	var server models.Entity
	if op == models.OpCreate {
		server, err = s.remote.Create(ctx, e)
	} else {
		server, err = s.remote.Update(ctx, e)
	}

	switch classifyRemote(err) {
	case failureLocal:
		if err != nil {
			return nil, false, err
		}
	case failureValidation:
		if revertErr := s.revert(ctx, e, previous); revertErr != nil {
			return nil, false, errors.Join(err, revertErr)
		}
		return nil, false, err
	case failureConflict:
		var conflict *adapter.ConflictError
		if errors.As(err, &conflict) && conflict.Server != nil && op == models.OpCreate {
			return s.settleCreate(ctx, e, conflict.Server)
		}
		if errors.As(err, &conflict) && conflict.Server != nil && op == models.OpUpdate {
			res, resolveErr := s.resolver.Resolve(e, conflict.Server, models.OpUpdate)
			if resolveErr != nil {
				return nil, false, resolveErr
			}
			if putErr := s.localStore.Put(ctx, res.Entity); putErr != nil {
				return nil, false, putErr
			}
			return res.Entity, true, s.enqueue(ctx, op, res.Entity)
		}
		return nil, false, nil
	default:
		log.Debug().Err(err).
			Str("func", "recordService.sendSave").
			Str("collection", e.Kind().Collection()).
			Int64("entity_id", e.GetID()).
			Msg("remote unreachable, queueing")
		return nil, false, nil
	}

	res, err := s.resolver.Resolve(e, server, models.OpUpdate)
	if err != nil {
		return nil, false, err
	}
	merged := res.Entity
	merged.SetID(server.GetID())

	if op == models.OpCreate {
		if _, err = s.reconciler.Reconcile(ctx, e.Kind(), e.GetID(), merged); err != nil {
			return nil, false, err
		}
	} else if err = s.localStore.Put(ctx, merged); err != nil {
		return nil, false, err
	}

	s.notifier.Publish(models.ChangeEvent{Type: models.ChangePushed, Kind: e.Kind(), EntityID: merged.GetID()})
	return merged, true, nil
}

// settleCreate handles a direct create the server answered with its own
// copy. A winning local version is sent as an update of the server record,
// or queued when that fails.
func (s *recordService) settleCreate(ctx context.Context, e, server models.Entity) (models.Entity, bool, error) {
	tempID := e.GetID()
	winner, localWon, err := settleCreateConflict(ctx, s.resolver, s.reconciler, tempID, e, server)
	if err != nil {
		return nil, false, err
	}
	if !localWon {
		s.notifier.Publish(models.ChangeEvent{Type: models.ChangePulled, Kind: e.Kind(), EntityID: winner.GetID(), PreviousID: tempID})
		return winner, true, nil
	}

	_, err = s.remote.Update(ctx, winner)
	switch classifyRemote(err) {
	case failureLocal:
		if err != nil {
			return nil, false, err
		}
		s.notifier.Publish(models.ChangeEvent{Type: models.ChangePushed, Kind: e.Kind(), EntityID: winner.GetID(), PreviousID: tempID})
		return winner, true, nil
	case failureValidation:
		if revertErr := s.localStore.Put(ctx, server); revertErr != nil {
			return nil, false, errors.Join(err, revertErr)
		}
		return nil, false, err
	}
	// Queued as a create of the server id: the next pull keeps the
	// later-wins rule instead of merging.
	return winner, true, s.enqueue(ctx, models.OpCreate, winner)
}

// Delete removes the record locally. Pending changes to a record the server
// has never seen are dropped and nothing is sent.
func (s *recordService) Delete(ctx context.Context, kind models.EntityKind, id int64) error {
	local, err := s.localStore.Get(ctx, kind, id)
	if err != nil {
		return err
	}

	if err = s.localStore.Delete(ctx, kind, id); err != nil {
		return fmt.Errorf("delete %s %d: %w", kind, id, err)
	}
	s.notifier.Publish(models.ChangeEvent{Type: models.ChangeDeleted, Kind: kind, EntityID: id})

	pending, err := s.queue.FindByEntity(ctx, kind, id)
	if err != nil {
		return err
	}
	for _, op := range pending {
		if err = s.queue.RemoveByID(ctx, op.ID); err != nil {
			return err
		}
	}
	if models.IsTemporaryID(id) {
		return nil
	}

	tombstone := local.Clone()
	tombstone.Touch(s.now())

	if s.canSendDirectly(ctx) {
		err = s.remote.Delete(ctx, kind, id)
		switch classifyRemote(err) {
		case failureLocal:
			if err == nil {
				return nil
			}
			return err
		case failureValidation:
			if revertErr := s.localStore.Put(ctx, local); revertErr != nil {
				return errors.Join(err, revertErr)
			}
			return err
		}
	}

	return s.enqueue(ctx, models.OpDelete, tombstone)
}

func (s *recordService) Get(ctx context.Context, kind models.EntityKind, id int64) (models.Entity, error) {
	return s.localStore.Get(ctx, kind, id)
}

func (s *recordService) Query(ctx context.Context, kind models.EntityKind, filter models.Filter) ([]models.Entity, error) {
	if filter.Index != "" && len(filter.Where) == 0 {
		return s.localStore.QueryByIndex(ctx, kind, filter.Index, filter.Value)
	}
	return s.localStore.Search(ctx, kind, filter.Predicate())
}

// enqueue records a change for the next push. An update of a record that
// is still waiting for its create replaces the payload of that create.
func (s *recordService) enqueue(ctx context.Context, kind models.OperationKind, e models.Entity) error {
	op, err := models.NewPendingOperation(kind, e)
	if err != nil {
		return err
	}

	if models.IsTemporaryID(e.GetID()) {
		pending, err := s.queue.FindByEntity(ctx, e.Kind(), e.GetID())
		if err != nil {
			return err
		}
		for _, p := range pending {
			if p.OperationKind == models.OpCreate {
				return s.queue.ReplacePayload(ctx, p.ID, e.GetID(), op.Payload)
			}
		}
		op.OperationKind = models.OpCreate
	}

	queued, err := s.queue.Enqueue(ctx, op)
	if err != nil {
		return fmt.Errorf("enqueue %s %s %d: %w", kind, e.Kind(), e.GetID(), err)
	}

	logger.FromContext(ctx).Debug().
		Str("func", "recordService.enqueue").
		Str("collection", e.Kind().Collection()).
		Int64("entity_id", e.GetID()).
		Str("operation_id", queued.ID).
		Msg("operation queued")

	if s.monitor.Online() {
		s.sync.Kick()
	}
	return nil
}

func (s *recordService) canSendDirectly(ctx context.Context) bool {
	if !s.monitor.Online() {
		return false
	}
	pending, _, err := s.queue.Count(ctx)
	return err == nil && pending == 0
}

func (s *recordService) revert(ctx context.Context, e, previous models.Entity) error {
	if previous == nil {
		return s.localStore.Delete(ctx, e.Kind(), e.GetID())
	}
	return s.localStore.Put(ctx, previous)
}

// prepare stamps derived fields before a save.
func (s *recordService) prepare(e models.Entity) {
	e.Touch(s.now())

	userID, err := s.remote.UserID()
	if err != nil {
		userID = 0
	}

	switch v := e.(type) {
	case *models.Child:
		v.CreatedBy = pick(userID, v.CreatedBy)
	case *models.Screening:
		v.DeriveReferral()
		v.CreatedBy = pick(userID, v.CreatedBy)
	case *models.Tier:
		v.AssignedBy = pick(userID, v.AssignedBy)
	case *models.Referral:
		v.CreatedBy = pick(userID, v.CreatedBy)
		if v.Status == "" {
			v.Status = models.ReferralPending
		}
	case *models.User:
	}
}
