// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MKhiriev/go-field-sync/internal/adapter"
	"github.com/MKhiriev/go-field-sync/internal/config"
	"github.com/MKhiriev/go-field-sync/internal/connectivity"
	"github.com/MKhiriev/go-field-sync/internal/logger"
	"github.com/MKhiriev/go-field-sync/internal/store"
	"github.com/MKhiriev/go-field-sync/models"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const cycleKey = "sync"

type entityKey struct {
	kind models.EntityKind
	id   int64
}

type syncOrchestrator struct {
	localStore store.LocalStore
	queue      store.OperationQueue
	meta       store.SyncMetaRepository
	remote     adapter.RemoteAPI
	monitor    connectivity.Monitor
	resolver   ConflictResolver
	reconciler IdentityReconciler
	notifier   *Notifier

	cfg     config.ClientSync
	backoff backoffPolicy
	now     func() time.Time
	tracer  trace.Tracer
	logger  *logger.Logger

	group singleflight.Group

	mu      sync.RWMutex
	state   models.SyncState
	lastErr string

	wake chan struct{}

	runMu  sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// TriggerSync runs a cycle on behalf of a caller. Callers arriving while a
// cycle runs share its result. The cycle is detached from ctx: once started
// it always completes.
func (o *syncOrchestrator) TriggerSync(ctx context.Context) (models.SyncReport, error) {
	if !o.monitor.Online() {
		return models.SyncReport{}, ErrOffline
	}

	v, err, _ := o.group.Do(cycleKey, func() (any, error) {
		return o.runCycle(context.WithoutCancel(ctx))
	})
	report, _ := v.(models.SyncReport)
	return report, err
}

// background runs a cycle for a timer, connectivity or kick trigger. It is
// dropped when a cycle is already running or the device is offline.
func (o *syncOrchestrator) background(ctx context.Context, trigger string) {
	log := o.logger.With().Str("trigger", trigger).Logger()

	if o.currentState() == models.StateSyncing {
		log.Debug().Str("func", "syncOrchestrator.background").Msg("cycle running, trigger dropped")
		return
	}
	if !o.monitor.Online() {
		return
	}

	if _, err := o.TriggerSync(ctx); err != nil {
		log.Warn().Err(err).Str("func", "syncOrchestrator.background").Msg("sync cycle failed")
	}
}

func (o *syncOrchestrator) runCycle(ctx context.Context) (models.SyncReport, error) {
	ctx = o.logger.WithContext(ctx)
	ctx, span := o.tracer.Start(ctx, "sync.cycle")
	defer span.End()

	report := models.SyncReport{StartedAt: o.now().UTC()}
	o.setState(models.StateSyncing, o.lastError())

	err := o.pull(ctx, &report)
	if err != nil {
		report.PullErr = err
	} else {
		err = o.push(ctx, &report)
	}
	if err == nil {
		err = o.meta.SetLastSyncedAt(ctx, report.StartedAt)
	}
	report.Duration = o.now().Sub(report.StartedAt)

	span.SetAttributes(
		attribute.Int("sync.pulled", report.Pulled),
		attribute.Int("sync.conflicts", report.ConflictsResolved),
		attribute.Int("sync.pushed", report.Pushed),
		attribute.Int("sync.push_failed", report.PushFailed),
		attribute.Int("sync.quarantined", report.Quarantined),
	)

	log := logger.FromContext(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Err(err).Str("func", "syncOrchestrator.runCycle").Msg("sync cycle failed")
		// Error is reported, then the orchestrator is ready again. The
		// message stays visible until a cycle succeeds.
		o.setState(models.StateError, err.Error())
		o.setState(models.StateIdle, err.Error())
		return report, err
	}

	log.Info().
		Int("pulled", report.Pulled).
		Int("pushed", report.Pushed).
		Int("push_failed", report.PushFailed).
		Int("quarantined", report.Quarantined).
		Dur("duration", report.Duration).
		Msg("sync cycle completed")
	o.setState(models.StateIdle, "")
	return report, nil
}

// ── pull ────────────────────────────────────────────────────────────────────

func (o *syncOrchestrator) pull(ctx context.Context, report *models.SyncReport) error {
	ctx, span := o.tracer.Start(ctx, "sync.pull")
	defer span.End()

	for _, kind := range models.EntityKinds {
		if err := o.pullKind(ctx, kind, report); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("%w: %s: %w", ErrPullFailed, kind.Collection(), err)
		}
	}
	return nil
}

// pullKind replaces the local collection with the remote one. A record
// whose local copy differs is merged rather than overwritten, a pending
// update is rewritten to carry the merge, and local records the server has
// not seen yet are kept. Pending operations and local copies are read after
// the remote list so that saves made during the request are respected.
func (o *syncOrchestrator) pullKind(ctx context.Context, kind models.EntityKind, report *models.SyncReport) error {
	remote, err := o.remote.List(ctx, kind)
	if err != nil {
		return err
	}

	ops, err := o.queue.List(ctx)
	if err != nil {
		return err
	}
	pending := make(map[entityKey]models.PendingOperation, len(ops))
	for _, op := range ops {
		if op.EntityKind == kind {
			pending[entityKey{op.EntityKind, op.EntityID}] = op
		}
	}

	local, err := o.localStore.Search(ctx, kind, nil)
	if err != nil {
		return err
	}

	localByID := make(map[int64]models.Entity, len(local))
	for _, e := range local {
		localByID[e.GetID()] = e
	}

	resolved := make([]models.Entity, 0, len(remote)+len(pending))
	inRemote := make(map[int64]bool, len(remote))

	for _, r := range remote {
		id := r.GetID()
		inRemote[id] = true

		op, hasPending := pending[entityKey{kind, id}]
		l, hasLocal := localByID[id]

		switch {
		case hasPending && op.OperationKind == models.OpDelete:
			keep, err := o.resolvePendingDelete(ctx, op, r)
			if err != nil {
				return err
			}
			report.ConflictsResolved++
			if keep != nil {
				resolved = append(resolved, keep)
			}
		case !hasLocal:
			resolved = append(resolved, r)
		case cmp.Equal(l, r, cmpopts.EquateEmpty()):
			resolved = append(resolved, l)
		case hasPending:
			merged, err := o.resolvePendingUpdate(ctx, op, l, r)
			if err != nil {
				return err
			}
			report.ConflictsResolved++
			resolved = append(resolved, merged)
		default:
			res, err := o.resolver.Resolve(l, r, models.OpUpdate)
			if err != nil {
				return err
			}
			report.ConflictsResolved++
			resolved = append(resolved, res.Entity)
		}
	}

	for _, l := range local {
		id := l.GetID()
		if inRemote[id] {
			continue
		}
		if _, ok := pending[entityKey{kind, id}]; ok || models.IsTemporaryID(id) {
			resolved = append(resolved, l)
		}
	}

	if err = o.localStore.ReplaceAll(ctx, kind, resolved); err != nil {
		return err
	}

	report.Pulled += len(remote)
	o.notifier.Publish(models.ChangeEvent{Type: models.ChangePulled, Kind: kind})
	return nil
}

// resolvePendingDelete decides between a queued local deletion and the
// current server copy. It returns the record to keep, or nil when the
// deletion stands.
func (o *syncOrchestrator) resolvePendingDelete(ctx context.Context, op models.PendingOperation, remote models.Entity) (models.Entity, error) {
	tombstone, err := op.Entity()
	if err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "syncOrchestrator.resolvePendingDelete").
			Str("operation_id", op.ID).
			Msg("undecodable deletion, keeping server copy")
		return remote, nil
	}

	res, err := o.resolver.Resolve(tombstone, remote, models.OpDelete)
	if err != nil {
		return nil, err
	}
	if res.Deleted {
		return nil, nil
	}

	if err = o.queue.RemoveByID(ctx, op.ID); err != nil {
		return nil, err
	}
	return res.Entity, nil
}

// resolvePendingUpdate merges a locally edited record with the server copy
// and makes the queued operation carry the merged version. A create that
// was retargeted to a server id after a conflict keeps create semantics.
func (o *syncOrchestrator) resolvePendingUpdate(ctx context.Context, op models.PendingOperation, local, remote models.Entity) (models.Entity, error) {
	res, err := o.resolver.Resolve(local, remote, op.OperationKind)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(res.Entity)
	if err != nil {
		return nil, err
	}
	if err = o.queue.ReplacePayload(ctx, op.ID, op.EntityID, payload); err != nil {
		return nil, err
	}
	return res.Entity, nil
}

// ── push ────────────────────────────────────────────────────────────────────

// push sends queued operations oldest first. A failed item never stops the
// items after it, except that operations depending on a record whose create
// did not go through in this cycle are skipped. Only local storage failures
// abort the phase.
func (o *syncOrchestrator) push(ctx context.Context, report *models.SyncReport) error {
	ctx, span := o.tracer.Start(ctx, "sync.push")
	defer span.End()

	ops, err := o.queue.List(ctx)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %w", ErrPushAborted, err)
	}

	blocked := make(map[int64]bool)
	for _, listed := range ops {
		// Earlier deliveries may have rewritten or removed this operation.
		op, err := o.queue.Get(ctx, listed.ID)
		if errors.Is(err, store.ErrOperationNotFound) {
			continue
		}
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("%w: %w", ErrPushAborted, err)
		}

		isTempCreate := op.OperationKind == models.OpCreate && models.IsTemporaryID(op.EntityID)
		if op.Failed {
			if isTempCreate {
				blocked[op.EntityID] = true
			}
			continue
		}

		e, err := op.Entity()
		if err != nil {
			if qErr := o.quarantine(ctx, op, op.Retry.Reject(fmt.Errorf("%w: %w", ErrCorruptOperation, err), o.now()), report); qErr != nil {
				return fmt.Errorf("%w: %w", ErrPushAborted, qErr)
			}
			continue
		}

		if dependsOn(op, e, blocked) || !o.backoff.Eligible(op.Retry, o.now()) {
			report.Skipped++
			if isTempCreate {
				blocked[op.EntityID] = true
			}
			continue
		}

		delivered, err := o.deliver(ctx, op, e, report)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("%w: %w", ErrPushAborted, err)
		}
		if !delivered && isTempCreate {
			blocked[op.EntityID] = true
		}
	}
	return nil
}

// dependsOn reports whether op targets or references a temporary id in
// blocked.
func dependsOn(op models.PendingOperation, e models.Entity, blocked map[int64]bool) bool {
	if models.IsTemporaryID(op.EntityID) && op.OperationKind != models.OpCreate {
		return true
	}
	if blocked[op.EntityID] {
		return true
	}
	for _, id := range e.References() {
		if blocked[id] {
			return true
		}
	}
	return false
}

// deliver sends one operation and records the outcome. The returned error
// is a local failure only.
func (o *syncOrchestrator) deliver(ctx context.Context, op models.PendingOperation, e models.Entity, report *models.SyncReport) (bool, error) {
	log := logger.FromContext(ctx)

	var err error
	switch {
	case op.OperationKind == models.OpCreate && models.IsTemporaryID(op.EntityID):
		err = o.pushCreate(ctx, op, e)
	case op.OperationKind == models.OpDelete:
		err = o.pushDelete(ctx, op, e)
	default:
		err = o.pushUpdate(ctx, op, e)
	}

	if err == nil {
		report.Pushed++
		return true, nil
	}

	now := o.now()
	switch classifyRemote(err) {
	case failureLocal:
		return false, err
	case failureValidation:
		log.Warn().Err(err).
			Str("func", "syncOrchestrator.deliver").
			Str("operation_id", op.ID).
			Str("collection", op.EntityKind.Collection()).
			Int64("entity_id", op.EntityID).
			Msg("operation rejected by server")
		return false, o.quarantine(ctx, op, op.Retry.Reject(err, now), report)
	}

	next := op.Retry.Fail(err, now)
	if next.Exhausted(o.cfg.MaxRetries) {
		return false, o.quarantine(ctx, op, next, report)
	}

	log.Debug().Err(err).
		Str("func", "syncOrchestrator.deliver").
		Str("operation_id", op.ID).
		Int("retry_count", next.Count).
		Msg("operation will be retried")

	report.PushFailed++
	return false, o.queue.UpdateRetry(ctx, op.ID, next)
}

func (o *syncOrchestrator) pushCreate(ctx context.Context, op models.PendingOperation, e models.Entity) error {
	server, err := o.remote.Create(ctx, e)
	var conflict *adapter.ConflictError
	if errors.As(err, &conflict) && conflict.Server != nil {
		return o.pushCreateConflict(ctx, op, e, conflict.Server)
	}
	if err != nil {
		return err
	}

	merged := server
	local, err := o.localStore.Get(ctx, op.EntityKind, op.EntityID)
	switch {
	case err == nil:
		res, resolveErr := o.resolver.Resolve(local, server, models.OpUpdate)
		if resolveErr != nil {
			return resolveErr
		}
		merged = res.Entity
		merged.SetID(server.GetID())
	case !errors.Is(err, store.ErrRecordNotFound):
		return err
	}

	if _, err = o.reconciler.Reconcile(ctx, op.EntityKind, op.EntityID, merged); err != nil {
		return err
	}
	if err = o.queue.RemoveByID(ctx, op.ID); err != nil {
		return err
	}

	o.notifier.Publish(models.ChangeEvent{Type: models.ChangePushed, Kind: op.EntityKind, EntityID: merged.GetID(), PreviousID: op.EntityID})
	return nil
}

// pushCreateConflict settles a create the server already holds a version
// of. When the local version wins, the create operation, now retargeted to
// the server id, is sent as an update and stays queued if that fails.
func (o *syncOrchestrator) pushCreateConflict(ctx context.Context, op models.PendingOperation, e, server models.Entity) error {
	local := e
	stored, err := o.localStore.Get(ctx, op.EntityKind, op.EntityID)
	switch {
	case err == nil:
		local = stored
	case !errors.Is(err, store.ErrRecordNotFound):
		return err
	}

	winner, localWon, err := settleCreateConflict(ctx, o.resolver, o.reconciler, op.EntityID, local, server)
	if err != nil {
		return err
	}
	tempID := op.EntityID
	op.EntityID = winner.GetID()

	if !localWon {
		if err = o.queue.RemoveByID(ctx, op.ID); err != nil {
			return err
		}
		o.notifier.Publish(models.ChangeEvent{Type: models.ChangePulled, Kind: op.EntityKind, EntityID: op.EntityID, PreviousID: tempID})
		return nil
	}

	payload, err := json.Marshal(winner)
	if err != nil {
		return err
	}
	if err = o.queue.ReplacePayload(ctx, op.ID, op.EntityID, payload); err != nil {
		return err
	}
	if _, err = o.remote.Update(ctx, winner); err != nil {
		return err
	}
	return o.acknowledge(ctx, op)
}

// settleCreateConflict resolves a create answered with the server's own
// copy. The winner replaces the temporary record under the server id;
// localWon reports that the server still has to receive it.
func settleCreateConflict(ctx context.Context, resolver ConflictResolver, reconciler IdentityReconciler, tempID int64, local, server models.Entity) (winner models.Entity, localWon bool, err error) {
	res, err := resolver.Resolve(local, server, models.OpCreate)
	if err != nil {
		return nil, false, err
	}
	winner = res.Entity
	winner.SetID(server.GetID())

	if _, err = reconciler.Reconcile(ctx, server.Kind(), tempID, winner); err != nil {
		return nil, false, err
	}
	return winner, local.Modified().After(server.Modified()), nil
}

func (o *syncOrchestrator) pushUpdate(ctx context.Context, op models.PendingOperation, e models.Entity) error {
	_, err := o.remote.Update(ctx, e)
	if err == nil {
		return o.acknowledge(ctx, op)
	}

	if errors.Is(err, adapter.ErrNotFound) {
		return o.acceptRemoteDeletion(ctx, op)
	}

	var conflict *adapter.ConflictError
	if !errors.As(err, &conflict) || conflict.Server == nil {
		return err
	}

	res, resolveErr := o.resolver.Resolve(e, conflict.Server, models.OpUpdate)
	if resolveErr != nil {
		return resolveErr
	}
	if putErr := o.localStore.Put(ctx, res.Entity); putErr != nil {
		return putErr
	}

	if _, err = o.remote.Update(ctx, res.Entity); err == nil {
		return o.acknowledge(ctx, op)
	}

	payload, marshalErr := json.Marshal(res.Entity)
	if marshalErr != nil {
		return marshalErr
	}
	if replaceErr := o.queue.ReplacePayload(ctx, op.ID, op.EntityID, payload); replaceErr != nil {
		return replaceErr
	}
	return err
}

func (o *syncOrchestrator) pushDelete(ctx context.Context, op models.PendingOperation, tombstone models.Entity) error {
	err := o.remote.Delete(ctx, op.EntityKind, op.EntityID)
	if err == nil {
		return o.acknowledge(ctx, op)
	}

	var conflict *adapter.ConflictError
	if !errors.As(err, &conflict) || conflict.Server == nil {
		return err
	}

	res, resolveErr := o.resolver.Resolve(tombstone, conflict.Server, models.OpDelete)
	if resolveErr != nil {
		return resolveErr
	}
	if res.Deleted {
		return err
	}

	if putErr := o.localStore.Put(ctx, res.Entity); putErr != nil {
		return putErr
	}
	if removeErr := o.queue.RemoveByID(ctx, op.ID); removeErr != nil {
		return removeErr
	}
	o.notifier.Publish(models.ChangeEvent{Type: models.ChangePulled, Kind: op.EntityKind, EntityID: op.EntityID})
	return nil
}

func (o *syncOrchestrator) acknowledge(ctx context.Context, op models.PendingOperation) error {
	if err := o.queue.RemoveByID(ctx, op.ID); err != nil {
		return err
	}
	o.notifier.Publish(models.ChangeEvent{Type: models.ChangePushed, Kind: op.EntityKind, EntityID: op.EntityID})
	return nil
}

// acceptRemoteDeletion drops a record the server no longer has, together
// with every operation queued for it.
func (o *syncOrchestrator) acceptRemoteDeletion(ctx context.Context, op models.PendingOperation) error {
	if err := o.localStore.Delete(ctx, op.EntityKind, op.EntityID); err != nil {
		return err
	}

	ops, err := o.queue.FindByEntity(ctx, op.EntityKind, op.EntityID)
	if err != nil {
		return err
	}
	for _, p := range ops {
		if err = o.queue.RemoveByID(ctx, p.ID); err != nil {
			return err
		}
	}

	o.notifier.Publish(models.ChangeEvent{Type: models.ChangeDeleted, Kind: op.EntityKind, EntityID: op.EntityID})
	return nil
}

func (o *syncOrchestrator) quarantine(ctx context.Context, op models.PendingOperation, retry models.RetryState, report *models.SyncReport) error {
	if err := o.queue.MarkFailed(ctx, op.ID, retry); err != nil {
		return err
	}
	report.Quarantined++

	o.notifier.Publish(models.ChangeEvent{
		Type:     models.ChangeOperationFailed,
		Kind:     op.EntityKind,
		EntityID: op.EntityID,
		Err:      retry.LastError,
	})
	return nil
}

// ── status ──────────────────────────────────────────────────────────────────

func (o *syncOrchestrator) SyncStatus(ctx context.Context) (models.SyncStatus, error) {
	pending, failed, err := o.queue.Count(ctx)
	if err != nil {
		return models.SyncStatus{}, err
	}
	lastSynced, err := o.meta.LastSyncedAt(ctx)
	if err != nil {
		return models.SyncStatus{}, err
	}

	o.mu.RLock()
	state, lastErr := o.state, o.lastErr
	o.mu.RUnlock()

	return models.SyncStatus{
		SyncMeta: models.SyncMeta{
			LastSyncedAt: lastSynced,
			PendingCount: pending,
			FailedCount:  failed,
		},
		State:     state,
		IsSyncing: state == models.StateSyncing,
		IsOnline:  o.monitor.Online(),
		LastError: lastErr,
	}, nil
}

func (o *syncOrchestrator) RetryFailed(ctx context.Context) (int, error) {
	n, err := o.queue.ResetFailed(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		o.notifier.Publish(models.ChangeEvent{Type: models.ChangeState, State: o.currentState()})
		o.Kick()
	}
	return n, nil
}

func (o *syncOrchestrator) Subscribe() (<-chan models.ChangeEvent, func()) {
	return o.notifier.Subscribe()
}

func (o *syncOrchestrator) currentState() models.SyncState {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return o.state
}

func (o *syncOrchestrator) lastError() string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return o.lastErr
}

func (o *syncOrchestrator) setState(state models.SyncState, lastErr string) {
	o.mu.Lock()
	o.state = state
	o.lastErr = lastErr
	o.mu.Unlock()

	o.notifier.Publish(models.ChangeEvent{Type: models.ChangeState, State: state, Err: lastErr})
}

// ── trigger loop ────────────────────────────────────────────────────────────

func (o *syncOrchestrator) Kick() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// Start launches the trigger loop. It syncs once right away when online,
// on every offline to online transition, on kicks and on each interval tick
// while operations are pending (or always with SyncAlways).
func (o *syncOrchestrator) Start(ctx context.Context) error {
	o.Stop()

	o.runMu.Lock()
	loopCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.wg.Add(1)
	o.runMu.Unlock()

	transitions, unsubscribe := o.monitor.Subscribe()

	go func() {
		defer o.wg.Done()
		defer unsubscribe()

		ticker := time.NewTicker(o.cfg.Interval)
		defer ticker.Stop()

		o.background(loopCtx, "start")

		for {
			select {
			case <-loopCtx.Done():
				return
			case tr, ok := <-transitions:
				if !ok {
					return
				}
				if tr.Online {
					o.background(loopCtx, "reconnect")
				}
			case <-o.wake:
				o.background(loopCtx, "kick")
			case <-ticker.C:
				if o.dueOnTimer(loopCtx) {
					o.background(loopCtx, "timer")
				}
			}
		}
	}()

	return nil
}

func (o *syncOrchestrator) dueOnTimer(ctx context.Context) bool {
	if o.cfg.SyncAlways {
		return true
	}
	pending, _, err := o.queue.Count(ctx)
	return err == nil && pending > 0
}

// Stop ends the trigger loop and waits for the running cycle, if any.
func (o *syncOrchestrator) Stop() {
	o.runMu.Lock()
	cancel := o.cancel
	o.cancel = nil
	o.runMu.Unlock()

	if cancel != nil {
		cancel()
	}
	o.wg.Wait()
}
