// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import "errors"

// Validation errors returned by [ClientConfig.validate] when required
// configuration groups are incomplete or invalid.
var (
	// ErrInvalidAdapterConfigs indicates a missing remote address or a
	// non-positive request timeout.
	ErrInvalidAdapterConfigs = errors.New("invalid adapter configuration")
	// ErrInvalidStorageConfigs indicates an empty local database DSN.
	ErrInvalidStorageConfigs = errors.New("invalid storage configuration")
	// ErrInvalidAppConfigs indicates a missing auth token.
	ErrInvalidAppConfigs = errors.New("invalid app configuration")
	// ErrInvalidSyncConfigs indicates a non-positive interval, retry ceiling
	// or backoff, or a backoff cap below its base.
	ErrInvalidSyncConfigs = errors.New("invalid sync configuration")
	// ErrInvalidConnectivityConfigs indicates a non-positive probe interval.
	ErrInvalidConnectivityConfigs = errors.New("invalid connectivity configuration")
)
