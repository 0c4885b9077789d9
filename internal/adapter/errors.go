// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package adapter

import (
	"errors"
	"fmt"

	"github.com/MKhiriev/go-field-sync/models"
)

var (
	ErrNetwork      = errors.New("network error")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("client unauthorized")
	ErrNoToken      = errors.New("no auth token configured")
)

// NetworkError is a transport failure or an unexpected status. It is
// retryable.
type NetworkError struct {
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Body != "":
		return fmt.Sprintf("%s: http %d: %s", e.Op, e.Status, e.Body)
	default:
		return fmt.Sprintf("%s: http %d", e.Op, e.Status)
	}
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Is matches [ErrNetwork], [ErrNotFound] for a 404 and [ErrUnauthorized] for
// a 401.
func (e *NetworkError) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return true
	case ErrNotFound:
		return e.Status == 404
	case ErrUnauthorized:
		return e.Status == 401
	}
	return false
}

// ValidationError is a 400 or 422 response. The server will reject the same
// request again, so it is never retried.
type ValidationError struct {
	Op     string
	Status int
	Body   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: rejected with %d: %s", e.Op, e.Status, e.Body)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ConflictError is a 409 response. Server holds the current server copy when
// the response carried one.
type ConflictError struct {
	Op     string
	Body   string
	Server models.Entity
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: conflict: %s", e.Op, e.Body)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }
