// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package client

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MKhiriev/go-field-sync/internal/config"
	"github.com/MKhiriev/go-field-sync/internal/logger"
	"github.com/MKhiriev/go-field-sync/internal/remotetest"
	"github.com/MKhiriev/go-field-sync/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a bytes.Buffer safe for concurrent use.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

func testConfig(address string) *config.ClientConfig {
	cfg := config.NewClientConfig(&config.StructuredConfig{})
	cfg.App.AuthToken = remotetest.Token(7)
	cfg.App.DeviceID = "tablet-1"
	cfg.Adapter.HTTPAddress = address
	cfg.Adapter.RequestTimeout = 2 * time.Second
	cfg.Storage.DB.DSN = ":memory:"
	cfg.Connectivity.ProbeInterval = 50 * time.Millisecond
	cfg.Sync.Interval = time.Hour
	return cfg
}

func TestApp_RunSyncsAndShutsDown(t *testing.T) {
	server := remotetest.New(t, remotetest.WithAuth())
	server.Seed(&models.Child{Meta: models.Meta{ID: 5, LastModified: time.Now().UTC()}, FullName: "Five"})

	out := &syncBuffer{}
	app := NewApp(testConfig(server.URL), logger.Nop(), WithOutput(out))
	require.NoError(t, app.Init(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, err := app.Records().Get(context.Background(), models.KindChild, 5)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "sync: idle") && strings.Contains(out.String(), "online")
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	assert.NoError(t, app.Shutdown(context.Background()), "second shutdown is a no-op")
}

func TestApp_InitInvalidAddress(t *testing.T) {
	app := NewApp(testConfig("://bad"), logger.Nop())

	assert.Error(t, app.Init(context.Background()))
	assert.ErrorIs(t, app.Run(context.Background()), ErrNotInitialized)
	assert.NoError(t, app.Shutdown(context.Background()))
}

func TestRenderStatus(t *testing.T) {
	synced := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		status models.SyncStatus
		want   []string
	}{
		{
			name:   "never synced offline",
			status: models.SyncStatus{State: models.StateIdle, SyncMeta: models.SyncMeta{PendingCount: 3}},
			want:   []string{"offline", "sync: idle", "pending 3", "last sync never"},
		},
		{
			name: "failed operations and error",
			status: models.SyncStatus{
				State:     models.StateError,
				IsOnline:  true,
				LastError: "pull failed: children: http 500",
				SyncMeta:  models.SyncMeta{FailedCount: 2, LastSyncedAt: synced},
			},
			want: []string{"online", "error", "failed 2", "error: pull failed: children: http 500"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := renderStatus(tt.status)
			for _, want := range tt.want {
				assert.Contains(t, line, want)
			}
		})
	}
}

func TestRenderFailure(t *testing.T) {
	line := renderFailure(models.ChangeEvent{Kind: models.KindScreening, EntityID: -4, Err: "rejected with 422"})

	assert.Contains(t, line, "not synced:")
	assert.Contains(t, line, "screening -4: rejected with 422")
}
