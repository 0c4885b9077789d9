// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"errors"

	"github.com/MKhiriev/go-field-sync/internal/adapter"
)

var (
	ErrNilEntity        = errors.New("nil entity")
	ErrKindMismatch     = errors.New("entities of different kinds")
	ErrNothingToResolve = errors.New("both sides are empty")
	ErrInvalidTemporary = errors.New("identifier is not temporary")
	ErrInvalidServerID  = errors.New("server identifier must be positive")
	ErrOffline          = errors.New("remote service unreachable")
	ErrPullFailed       = errors.New("pull failed")
	ErrPushAborted      = errors.New("push aborted")
	ErrCorruptOperation = errors.New("operation payload cannot be decoded")
)

// remoteFailure classifies an error returned by the remote API.
type remoteFailure int

const (
	// failureLocal is not a remote error: a storage or programming failure
	// that aborts the current operation.
	failureLocal remoteFailure = iota
	failureNetwork
	failureValidation
	failureConflict
)

func classifyRemote(err error) remoteFailure {
	var (
		netErr      *adapter.NetworkError
		validErr    *adapter.ValidationError
		conflictErr *adapter.ConflictError
	)

	switch {
	case errors.As(err, &validErr):
		return failureValidation
	case errors.As(err, &conflictErr):
		return failureConflict
	case errors.As(err, &netErr):
		return failureNetwork
	}
	return failureLocal
}
