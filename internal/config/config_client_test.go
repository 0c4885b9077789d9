// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validStructuredConfig() *StructuredConfig {
	return &StructuredConfig{
		App:     App{AuthToken: "bearer", DeviceID: "tablet-1"},
		Adapter: Adapter{HTTPAddress: "localhost:8080"},
		Storage: Storage{DB: DB{DSN: "field.db"}},
	}
}

func TestNewClientConfig_AppliesDefaults(t *testing.T) {
	cfg := NewClientConfig(validStructuredConfig())

	assert.Equal(t, DefaultRequestTimeout, cfg.Adapter.RequestTimeout)
	assert.Equal(t, DefaultSyncInterval, cfg.Sync.Interval)
	assert.Equal(t, DefaultMaxRetries, cfg.Sync.MaxRetries)
	assert.Equal(t, DefaultBackoffBase, cfg.Sync.BackoffBase)
	assert.Equal(t, DefaultBackoffMax, cfg.Sync.BackoffMax)
	assert.Equal(t, DefaultProbeInterval, cfg.Connectivity.ProbeInterval)
	assert.Equal(t, DefaultProbePath, cfg.Connectivity.ProbePath)
	assert.Equal(t, DefaultLogMaxSizeMB, cfg.Log.MaxSizeMB)
	assert.NoError(t, cfg.validate())
}

func TestNewClientConfig_KeepsExplicitValues(t *testing.T) {
	src := validStructuredConfig()
	src.Sync.MaxRetries = 2
	src.Sync.Interval = 10 * time.Second
	src.Connectivity.ProbePath = "/ping"

	cfg := NewClientConfig(src)

	assert.Equal(t, 2, cfg.Sync.MaxRetries)
	assert.Equal(t, 10*time.Second, cfg.Sync.Interval)
	assert.Equal(t, "/ping", cfg.Connectivity.ProbePath)
	assert.Equal(t, "tablet-1", cfg.App.DeviceID)
}

func TestClientConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *ClientConfig)
		wantErr error
	}{
		{name: "valid", mutate: func(*ClientConfig) {}},
		{name: "empty dsn", mutate: func(c *ClientConfig) { c.Storage.DB.DSN = "" }, wantErr: ErrInvalidStorageConfigs},
		{name: "empty address", mutate: func(c *ClientConfig) { c.Adapter.HTTPAddress = "" }, wantErr: ErrInvalidAdapterConfigs},
		{name: "negative timeout", mutate: func(c *ClientConfig) { c.Adapter.RequestTimeout = -time.Second }, wantErr: ErrInvalidAdapterConfigs},
		{name: "zero retries", mutate: func(c *ClientConfig) { c.Sync.MaxRetries = 0 }, wantErr: ErrInvalidSyncConfigs},
		{
			name:    "backoff cap below base",
			mutate:  func(c *ClientConfig) { c.Sync.BackoffBase = time.Minute; c.Sync.BackoffMax = time.Second },
			wantErr: ErrInvalidSyncConfigs,
		},
		{name: "missing token", mutate: func(c *ClientConfig) { c.App.AuthToken = "" }, wantErr: ErrInvalidAppConfigs},
		{name: "zero probe interval", mutate: func(c *ClientConfig) { c.Connectivity.ProbeInterval = 0 }, wantErr: ErrInvalidConnectivityConfigs},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewClientConfig(validStructuredConfig())
			tt.mutate(cfg)

			err := cfg.validate()
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestGetClientConfig_FromEnv(t *testing.T) {
	clearEnvVars(t)
	withArgs(t)
	t.Setenv("APP_AUTH_TOKEN", "bearer")
	t.Setenv("ADAPTER_ADDRESS", "http://localhost:8080")
	t.Setenv("STORAGE_DB_DSN", "field.db")

	cfg, err := GetClientConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.Adapter.HTTPAddress)
	assert.Equal(t, DefaultSyncInterval, cfg.Sync.Interval)
}

func TestGetClientConfig_Invalid(t *testing.T) {
	clearEnvVars(t)
	withArgs(t)

	_, err := GetClientConfig()
	assert.ErrorIs(t, err, ErrInvalidStorageConfigs)
}
