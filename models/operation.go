// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// OperationKind is the type of mutation recorded by a [PendingOperation].
type OperationKind string

const (
	OpCreate OperationKind = "create"
	OpUpdate OperationKind = "update"
	OpDelete OperationKind = "delete"
)

// Valid reports whether k is a known operation kind.
func (k OperationKind) Valid() bool {
	switch k {
	case OpCreate, OpUpdate, OpDelete:
		return true
	}
	return false
}

// PendingOperation is a local mutation waiting to be transmitted to the
// remote service. Operations are pushed oldest first by EnqueuedAt.
type PendingOperation struct {
	// ID is a time-ordered UUID assigned on enqueue.
	ID string `json:"id"`

	// EntityKind selects the remote resource the operation targets.
	EntityKind EntityKind `json:"entityKind"`

	// EntityID is the identifier of the target record at enqueue time. It
	// is rewritten when a temporary identifier is reconciled.
	EntityID int64 `json:"entityId"`

	// OperationKind is create, update or delete.
	OperationKind OperationKind `json:"operationKind"`

	// Payload is the JSON encoding of the entity version to transmit. For a
	// delete it carries the last known version with LastModified set to the
	// deletion time.
	Payload json.RawMessage `json:"payload"`

	// EnqueuedAt orders the queue.
	EnqueuedAt time.Time `json:"enqueuedAt"`

	// Retry is the delivery state of the operation.
	Retry RetryState `json:"retry"`

	// Failed marks an operation quarantined after exhausting its retries or
	// after a validation rejection. Failed operations are not pushed until
	// they are reset.
	Failed bool `json:"failed"`
}

// NewPendingOperation builds an operation for entity e. ID and EnqueuedAt
// are assigned by the queue.
func NewPendingOperation(kind OperationKind, e Entity) (PendingOperation, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return PendingOperation{}, fmt.Errorf("encode %s payload: %w", e.Kind(), err)
	}

	return PendingOperation{
		EntityKind:    e.Kind(),
		EntityID:      e.GetID(),
		OperationKind: kind,
		Payload:       payload,
	}, nil
}

// Entity decodes the operation payload.
func (op PendingOperation) Entity() (Entity, error) {
	return DecodeEntity(op.EntityKind, op.Payload)
}

// RetryState is the delivery history of one operation. It is a value type:
// transitions return a new state and never mutate the receiver.
type RetryState struct {
	Count         int       `json:"count"`
	LastError     string    `json:"lastError,omitempty"`
	LastAttemptAt time.Time `json:"lastAttemptAt,omitempty"`
}

// Fail returns the state after a failed attempt at time at.
func (r RetryState) Fail(err error, at time.Time) RetryState {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return RetryState{Count: r.Count + 1, LastError: msg, LastAttemptAt: at.UTC()}
}

// Reject returns the state after a non-retryable rejection. The count is
// left untouched.
func (r RetryState) Reject(err error, at time.Time) RetryState {
	next := r
	if err != nil {
		next.LastError = err.Error()
	}
	next.LastAttemptAt = at.UTC()
	return next
}

// Reset returns the zero state.
func (r RetryState) Reset() RetryState {
	return RetryState{}
}

// Exhausted reports whether the attempt count reached ceiling.
func (r RetryState) Exhausted(ceiling int) bool {
	return ceiling > 0 && r.Count >= ceiling
}
