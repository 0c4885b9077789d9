// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package client

import "context"

// Client defines the lifecycle contract for runnable client applications.
type Client interface {
	// Init opens local resources and wires the services.
	Init(ctx context.Context) error
	// Run starts background work and blocks until ctx is cancelled or a
	// termination signal arrives.
	Run(ctx context.Context) error
	// Shutdown stops background work and releases local resources.
	Shutdown(ctx context.Context) error
}
