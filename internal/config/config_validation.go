// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

// validate checks that the client configuration is usable at startup.
// Defaults must already be applied.
func (cfg *ClientConfig) validate() error {
	if cfg.Storage.DB.DSN == "" {
		return ErrInvalidStorageConfigs
	}

	if cfg.Adapter.HTTPAddress == "" || cfg.Adapter.RequestTimeout <= 0 {
		return ErrInvalidAdapterConfigs
	}

	if cfg.Sync.Interval <= 0 || cfg.Sync.MaxRetries < 1 ||
		cfg.Sync.BackoffBase <= 0 || cfg.Sync.BackoffMax < cfg.Sync.BackoffBase {
		return ErrInvalidSyncConfigs
	}

	if cfg.App.AuthToken == "" {
		return ErrInvalidAppConfigs
	}

	if cfg.Connectivity.ProbeInterval <= 0 {
		return ErrInvalidConnectivityConfigs
	}

	return nil
}
