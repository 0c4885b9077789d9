// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/go-field-sync/internal/logger"
)

func TestSyncMetaRepository_LastSyncedAt(t *testing.T) {
	r := NewSyncMetaRepository(newTestDB(t), logger.Nop())

	at, err := r.LastSyncedAt(ctx())
	require.NoError(t, err)
	assert.True(t, at.IsZero())

	want := time.Date(2026, 4, 2, 10, 30, 0, 123, time.UTC)
	require.NoError(t, r.SetLastSyncedAt(ctx(), want))
	require.NoError(t, r.SetLastSyncedAt(ctx(), want.Add(time.Hour)))

	at, err = r.LastSyncedAt(ctx())
	require.NoError(t, err)
	assert.True(t, want.Add(time.Hour).Equal(at))
}
