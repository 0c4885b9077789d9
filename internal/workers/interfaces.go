// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package workers provides abstractions for managing the background workers
// of the client: the sync loop and the connectivity prober.
package workers

import "context"

// Worker is a long-running background component.
//
// Start launches the worker and returns once it is running; the work itself
// happens on goroutines owned by the worker. Stop signals them to finish and
// blocks until they have exited. Stop must be safe to call on a worker that
// was never started.
type Worker interface {
	Start(ctx context.Context) error
	Stop()
}
