// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MKhiriev/go-field-sync/internal/logger"
	"github.com/MKhiriev/go-field-sync/models"
)

const operationsTable = "pending_operations"

// IDGenerator produces unique, time-ordered operation identifiers.
type IDGenerator interface {
	Generate() string
}

// operationQueue is the SQLite-backed implementation of [OperationQueue].
// EnqueuedAt is clamped to be non-decreasing so that the queue order is
// stable even if the wall clock steps back.
type operationQueue struct {
	*DB
	ids    IDGenerator
	now    func() time.Time
	logger *logger.Logger
}

// NewOperationQueue constructs an [OperationQueue] over db.
func NewOperationQueue(db *DB, ids IDGenerator, now func() time.Time, logger *logger.Logger) OperationQueue {
	if now == nil {
		now = time.Now
	}
	return &operationQueue{
		DB:     db,
		ids:    ids,
		now:    now,
		logger: logger,
	}
}

func (q *operationQueue) Enqueue(ctx context.Context, op models.PendingOperation) (models.PendingOperation, error) {
	log := logger.FromContext(ctx)

	if !op.EntityKind.Valid() {
		return models.PendingOperation{}, fmt.Errorf("%w: %q", models.ErrUnknownEntityKind, op.EntityKind)
	}
	if !op.OperationKind.Valid() {
		return models.PendingOperation{}, fmt.Errorf("unknown operation kind %q", op.OperationKind)
	}

	if op.ID == "" {
		op.ID = q.ids.Generate()
	}
	op.Retry = models.RetryState{}
	op.Failed = false

	payload, err := q.seal(op.Payload)
	if err != nil {
		return models.PendingOperation{}, fmt.Errorf("seal operation payload: %w", err)
	}

	err = q.inTx(ctx, "enqueue", operationsTable, func(tx *sql.Tx) error {
		var last string
		if err := tx.QueryRowContext(ctx, lastEnqueuedAt).Scan(&last); err != nil {
			return q.storageError("enqueue", operationsTable, fmt.Errorf("%w: %w", ErrScanningRow, err))
		}

		at := q.now().UTC()
		if last != "" {
			if prev, parseErr := parseTime(last); parseErr == nil && at.Before(prev) {
				at = prev
			}
		}
		op.EnqueuedAt = at

		_, err := tx.ExecContext(ctx, insertOperation,
			op.ID,
			string(op.EntityKind),
			op.EntityID,
			string(op.OperationKind),
			string(payload),
			formatTime(op.EnqueuedAt),
		)
		if err != nil {
			return q.storageError("enqueue", operationsTable, fmt.Errorf("%w: %w", ErrExecutingStatement, err))
		}
		return nil
	})
	if err != nil {
		log.Err(err).
			Str("func", "operationQueue.Enqueue").
			Str("entity_kind", string(op.EntityKind)).
			Int64("entity_id", op.EntityID).
			Msg("failed to enqueue operation")
		return models.PendingOperation{}, err
	}

	log.Debug().
		Str("func", "operationQueue.Enqueue").
		Str("operation_id", op.ID).
		Str("operation_kind", string(op.OperationKind)).
		Int64("entity_id", op.EntityID).
		Msg("operation enqueued")

	return op, nil
}

func (q *operationQueue) List(ctx context.Context) ([]models.PendingOperation, error) {
	return q.selectOperations(ctx, "list", listOperations)
}

func (q *operationQueue) FindByEntity(ctx context.Context, kind models.EntityKind, entityID int64) ([]models.PendingOperation, error) {
	return q.selectOperations(ctx, "findByEntity", findOperationsByEntity, string(kind), entityID)
}

func (q *operationQueue) Get(ctx context.Context, id string) (models.PendingOperation, error) {
	op, err := scanOperation(q.DB.QueryRowContext(ctx, getOperation, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.PendingOperation{}, fmt.Errorf("%w: %s", ErrOperationNotFound, id)
	}
	if err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "operationQueue.Get").
			Str("operation_id", id).
			Msg("failed to read operation")
		return models.PendingOperation{}, q.storageError("get", operationsTable, err)
	}
	if op.Payload, err = q.open(op.Payload); err != nil {
		return models.PendingOperation{}, q.storageError("get", operationsTable, fmt.Errorf("%w: %w", ErrDecodingRecord, err))
	}
	return op, nil
}

func (q *operationQueue) selectOperations(ctx context.Context, op, query string, args ...any) ([]models.PendingOperation, error) {
	log := logger.FromContext(ctx)

	rows, err := q.DB.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).
			Str("func", "operationQueue."+op).
			Msg("failed to execute query")
		return nil, q.storageError(op, operationsTable, fmt.Errorf("%w: %w", ErrExecutingQuery, err))
	}
	defer rows.Close()

	result := make([]models.PendingOperation, 0)
	for rows.Next() {
		item, scanErr := scanOperation(rows)
		if scanErr != nil {
			log.Err(scanErr).
				Str("func", "operationQueue."+op).
				Msg("failed to scan operation row")
			return nil, q.storageError(op, operationsTable, scanErr)
		}
		if item.Payload, err = q.open(item.Payload); err != nil {
			return nil, q.storageError(op, operationsTable, fmt.Errorf("%w: %w", ErrDecodingRecord, err))
		}
		result = append(result, item)
	}

	if err = rows.Err(); err != nil {
		return nil, q.storageError(op, operationsTable, fmt.Errorf("%w: %w", ErrScanningRows, err))
	}

	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOperation(row rowScanner) (models.PendingOperation, error) {
	var (
		op            models.PendingOperation
		entityKind    string
		operationKind string
		payload       string
		enqueuedAt    string
		lastAttemptAt string
	)

	err := row.Scan(
		&op.ID,
		&entityKind,
		&op.EntityID,
		&operationKind,
		&payload,
		&enqueuedAt,
		&op.Retry.Count,
		&op.Retry.LastError,
		&lastAttemptAt,
		&op.Failed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return op, err
	}
	if err != nil {
		return op, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	op.EntityKind = models.EntityKind(entityKind)
	op.OperationKind = models.OperationKind(operationKind)
	op.Payload = json.RawMessage(payload)

	if op.EnqueuedAt, err = parseTime(enqueuedAt); err != nil {
		return op, fmt.Errorf("%w: enqueued_at: %w", ErrScanningRow, err)
	}
	if lastAttemptAt != "" {
		if op.Retry.LastAttemptAt, err = parseTime(lastAttemptAt); err != nil {
			return op, fmt.Errorf("%w: last_attempt_at: %w", ErrScanningRow, err)
		}
	}

	return op, nil
}

func (q *operationQueue) RemoveByID(ctx context.Context, id string) error {
	if _, err := q.DB.ExecContext(ctx, deleteOperation, id); err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "operationQueue.RemoveByID").
			Str("operation_id", id).
			Msg("failed to remove operation")
		return q.storageError("removeById", operationsTable, fmt.Errorf("%w: %w", ErrExecutingStatement, err))
	}
	return nil
}

func (q *operationQueue) UpdateRetry(ctx context.Context, id string, retry models.RetryState) error {
	return q.updateRetry(ctx, "updateRetry", id, retry, false)
}

func (q *operationQueue) MarkFailed(ctx context.Context, id string, retry models.RetryState) error {
	return q.updateRetry(ctx, "markFailed", id, retry, true)
}

func (q *operationQueue) updateRetry(ctx context.Context, op, id string, retry models.RetryState, failed bool) error {
	var lastAttemptAt any
	if !retry.LastAttemptAt.IsZero() {
		lastAttemptAt = formatTime(retry.LastAttemptAt)
	}

	res, err := q.DB.ExecContext(ctx, updateOperationRetry, retry.Count, retry.LastError, lastAttemptAt, failed, id)
	if err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "operationQueue."+op).
			Str("operation_id", id).
			Msg("failed to update retry state")
		return q.storageError(op, operationsTable, fmt.Errorf("%w: %w", ErrExecutingStatement, err))
	}

	return q.expectOneRow(res, op, id)
}

func (q *operationQueue) ReplacePayload(ctx context.Context, id string, entityID int64, payload json.RawMessage) error {
	sealed, err := q.seal(payload)
	if err != nil {
		return fmt.Errorf("seal operation payload: %w", err)
	}

	res, err := q.DB.ExecContext(ctx, updateOperationPayload, entityID, string(sealed), id)
	if err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "operationQueue.ReplacePayload").
			Str("operation_id", id).
			Msg("failed to replace payload")
		return q.storageError("replacePayload", operationsTable, fmt.Errorf("%w: %w", ErrExecutingStatement, err))
	}

	return q.expectOneRow(res, "replacePayload", id)
}

func (q *operationQueue) expectOneRow(res sql.Result, op, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return q.storageError(op, operationsTable, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrOperationNotFound, id)
	}
	return nil
}

func (q *operationQueue) ResetFailed(ctx context.Context) (int, error) {
	res, err := q.DB.ExecContext(ctx, resetFailedOperations)
	if err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "operationQueue.ResetFailed").
			Msg("failed to reset quarantined operations")
		return 0, q.storageError("resetFailed", operationsTable, fmt.Errorf("%w: %w", ErrExecutingStatement, err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, q.storageError("resetFailed", operationsTable, err)
	}
	return int(affected), nil
}

func (q *operationQueue) Count(ctx context.Context) (int, int, error) {
	var pending, failed int
	if err := q.DB.QueryRowContext(ctx, countOperations).Scan(&pending, &failed); err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "operationQueue.Count").
			Msg("failed to count operations")
		return 0, 0, q.storageError("count", operationsTable, fmt.Errorf("%w: %w", ErrScanningRow, err))
	}
	return pending, failed, nil
}

func (q *operationQueue) Clear(ctx context.Context) error {
	if _, err := q.DB.ExecContext(ctx, clearOperations); err != nil {
		return q.storageError("clear", operationsTable, fmt.Errorf("%w: %w", ErrExecutingStatement, err))
	}
	return nil
}
