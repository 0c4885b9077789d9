// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"time"

	"github.com/MKhiriev/go-field-sync/models"
	"github.com/sethvargo/go-retry"
)

// backoffPolicy decides when a failed operation may be attempted again:
// base after the first failure, doubling per failure up to max.
type backoffPolicy struct {
	base time.Duration
	max  time.Duration
}

// Delay returns the wait after count failed attempts.
func (p backoffPolicy) Delay(count int) time.Duration {
	if count <= 0 || p.base <= 0 {
		return 0
	}

	b := retry.WithCappedDuration(p.max, retry.NewExponential(p.base))

	var d time.Duration
	for range min(count, 63) {
		d, _ = b.Next()
	}
	return d
}

// Eligible reports whether an operation with state r may be sent at now.
func (p backoffPolicy) Eligible(r models.RetryState, now time.Time) bool {
	if r.Count == 0 || r.LastAttemptAt.IsZero() {
		return true
	}
	return !now.Before(r.LastAttemptAt.Add(p.Delay(r.Count)))
}
