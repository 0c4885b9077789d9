// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"fmt"
	"time"
)

// Defaults applied to unset fields before the client config is validated.
const (
	DefaultRequestTimeout = 15 * time.Second
	DefaultSyncInterval   = time.Minute
	DefaultMaxRetries     = 5
	DefaultBackoffBase    = 2 * time.Second
	DefaultBackoffMax     = 5 * time.Minute
	DefaultProbeInterval  = 30 * time.Second
	DefaultProbePath      = "/api/health"
	DefaultLogMaxSizeMB   = 10
	DefaultLogMaxBackups  = 3
	DefaultLogMaxAgeDays  = 28
)

// ClientApp holds the identity of the device and of its signed in user.
type ClientApp struct {
	AuthToken string
	DeviceID  string
	Version   string
}

// ClientAdapter holds the remote API address and per-request timeout.
type ClientAdapter struct {
	HTTPAddress    string
	RequestTimeout time.Duration
}

// ClientDB contains local database connection settings for the client.
type ClientDB struct {
	// DSN is the SQLite connection string used by the client.
	DSN string
}

// ClientStorage groups client storage backend settings.
type ClientStorage struct {
	DB            ClientDB
	EncryptionKey string
}

// ClientSync holds the sync cadence and the retry ceiling policy.
type ClientSync struct {
	Interval    time.Duration
	SyncAlways  bool
	MaxRetries  int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// ClientLog holds the rotating log file settings.
type ClientLog struct {
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// ClientConnectivity holds the reachability prober settings.
type ClientConnectivity struct {
	ProbeInterval time.Duration
	ProbePath     string
}

// ClientConfig is the top-level client configuration assembled from
// [StructuredConfig] with defaults applied.
type ClientConfig struct {
	App          ClientApp
	Adapter      ClientAdapter
	Storage      ClientStorage
	Sync         ClientSync
	Log          ClientLog
	Connectivity ClientConnectivity
}

// GetClientConfig builds and validates the client config from the merged
// structured configuration.
func GetClientConfig() (*ClientConfig, error) {
	cfg, err := GetStructuredConfig()
	if err != nil {
		return nil, fmt.Errorf("error get structured config: %w", err)
	}

	clientCfg := NewClientConfig(cfg)
	return clientCfg, clientCfg.validate()
}

// NewClientConfig maps cfg onto a [ClientConfig] and fills unset fields with
// defaults. The result is not validated.
func NewClientConfig(cfg *StructuredConfig) *ClientConfig {
	clientCfg := &ClientConfig{
		App: ClientApp{
			AuthToken: cfg.App.AuthToken,
			DeviceID:  cfg.App.DeviceID,
			Version:   cfg.App.Version,
		},
		Adapter: ClientAdapter{
			HTTPAddress:    cfg.Adapter.HTTPAddress,
			RequestTimeout: cfg.Adapter.RequestTimeout,
		},
		Storage: ClientStorage{
			DB:            ClientDB{DSN: cfg.Storage.DB.DSN},
			EncryptionKey: cfg.Storage.EncryptionKey,
		},
		Sync: ClientSync{
			Interval:    cfg.Sync.Interval,
			SyncAlways:  cfg.Sync.SyncAlways,
			MaxRetries:  cfg.Sync.MaxRetries,
			BackoffBase: cfg.Sync.BackoffBase,
			BackoffMax:  cfg.Sync.BackoffMax,
		},
		Log: ClientLog{
			FilePath:   cfg.Log.FilePath,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
		},
		Connectivity: ClientConnectivity{
			ProbeInterval: cfg.Connectivity.ProbeInterval,
			ProbePath:     cfg.Connectivity.ProbePath,
		},
	}
	clientCfg.applyDefaults()

	return clientCfg
}

func (cfg *ClientConfig) applyDefaults() {
	setDefault(&cfg.Adapter.RequestTimeout, DefaultRequestTimeout)
	setDefault(&cfg.Sync.Interval, DefaultSyncInterval)
	setDefault(&cfg.Sync.MaxRetries, DefaultMaxRetries)
	setDefault(&cfg.Sync.BackoffBase, DefaultBackoffBase)
	setDefault(&cfg.Sync.BackoffMax, DefaultBackoffMax)
	setDefault(&cfg.Connectivity.ProbeInterval, DefaultProbeInterval)
	setDefault(&cfg.Connectivity.ProbePath, DefaultProbePath)
	setDefault(&cfg.Log.MaxSizeMB, DefaultLogMaxSizeMB)
	setDefault(&cfg.Log.MaxBackups, DefaultLogMaxBackups)
	setDefault(&cfg.Log.MaxAgeDays, DefaultLogMaxAgeDays)
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}
