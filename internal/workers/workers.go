// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package workers

import (
	"context"
	"fmt"
)

// Workers starts its members in order and stops them in reverse order.
type Workers struct {
	workers []Worker
	started int
}

func NewWorkers(workers ...Worker) *Workers {
	return &Workers{workers: workers}
}

// Start starts every worker. When one fails the workers already started are
// stopped and the error is returned.
func (w *Workers) Start(ctx context.Context) error {
	for i, worker := range w.workers {
		if err := worker.Start(ctx); err != nil {
			w.started = i
			w.Stop()
			return fmt.Errorf("start worker %d: %w", i, err)
		}
	}
	w.started = len(w.workers)
	return nil
}

func (w *Workers) Stop() {
	for i := w.started - 1; i >= 0; i-- {
		w.workers[i].Stop()
	}
	w.started = 0
}
