// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by local repositories. Callers should use
// [errors.Is] to match against these values.
var (
	// ErrRecordNotFound is returned when a record is absent from its
	// collection.
	ErrRecordNotFound = errors.New("record not found")

	// ErrOperationNotFound is returned when a pending operation id is not
	// present in the queue.
	ErrOperationNotFound = errors.New("pending operation not found")

	// ErrInvalidEntityID is returned when an entity without an identifier is
	// written.
	ErrInvalidEntityID = errors.New("entity has no identifier")

	// ErrInvalidPredicate is returned when a search predicate cannot be
	// compiled (unknown predicate type or malformed field name).
	ErrInvalidPredicate = errors.New("invalid search predicate")

	// ErrQuotaExceeded matches every [StorageError] of kind [ErrorKindQuota].
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrPermissionDenied matches every [StorageError] of kind
	// [ErrorKindPermission].
	ErrPermissionDenied = errors.New("storage permission denied")
)

// Low-level database operation errors. These are wrapped inside a
// [StorageError] when a SQL-level operation fails.
var (
	ErrBuildingSQLQuery     = errors.New("error building sql query")
	ErrExecutingQuery       = errors.New("error executing sql query")
	ErrBeginningTransaction = errors.New("failed to begin transaction")
	ErrCommitingTransaction = errors.New("failed to commit transaction")
	ErrExecutingStatement   = errors.New("failed to execute statement")
	ErrScanningRow          = errors.New("failed to scan row")
	ErrScanningRows         = errors.New("failed to scan rows")
	ErrDecodingRecord       = errors.New("failed to decode record")
)

// ErrorKind classifies a storage failure for the caller.
type ErrorKind string

const (
	ErrorKindQuota      ErrorKind = "quota"
	ErrorKindPermission ErrorKind = "permission"
	ErrorKindOther      ErrorKind = "other"
)

// StorageError reports a failed local persistence call. It is never
// swallowed by the store: every repository method returns it as is.
type StorageError struct {
	// Op is the repository operation, e.g. "put" or "enqueue".
	Op string
	// Collection is the affected collection or table.
	Collection string
	Kind       ErrorKind
	Err        error
}

func (e *StorageError) Error() string {
	if e.Collection == "" {
		return fmt.Sprintf("storage %s (%s): %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("storage %s %s (%s): %v", e.Op, e.Collection, e.Kind, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels [ErrQuotaExceeded] and [ErrPermissionDenied].
func (e *StorageError) Is(target error) bool {
	switch target {
	case ErrQuotaExceeded:
		return e.Kind == ErrorKindQuota
	case ErrPermissionDenied:
		return e.Kind == ErrorKindPermission
	}
	return false
}
