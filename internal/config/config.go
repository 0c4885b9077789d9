// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"time"
)

// StructuredConfig is the top-level configuration container for the
// go-field-sync client. It aggregates all sub-configurations and is
// populated by merging values from environment variables, command-line flags,
// and an optional JSON file.
//
// Struct tags:
//   - envPrefix: prefix applied to all nested env tag lookups (caarlos0/env).
//   - env: direct environment variable name for scalar fields.
type StructuredConfig struct {
	// App holds the identity of the field device and its user.
	App App `envPrefix:"APP_"`

	// Storage holds configuration of the on-device database.
	Storage Storage `envPrefix:"STORAGE_"`

	// Adapter holds the address and timeout of the remote REST API.
	Adapter Adapter `envPrefix:"ADAPTER_"`

	// Sync holds the synchronization cadence and retry policy.
	Sync Sync `envPrefix:"SYNC_"`

	// Log holds the rotating log file settings.
	Log Log `envPrefix:"LOG_"`

	// Connectivity holds the reachability probe settings.
	Connectivity Connectivity `envPrefix:"CONNECTIVITY_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// When non-empty, the file is parsed and merged on top of the values
	// already loaded from environment variables and flags.
	// Populated via the CONFIG environment variable or the -c / -config flag.
	JSONFilePath string `env:"CONFIG"`
}

// App holds application-level values identifying the device and user.
type App struct {
	// AuthToken is the bearer token sent with every remote request. Its
	// subject claim is used as createdBy for records created offline.
	// Env: APP_AUTH_TOKEN
	AuthToken string `env:"AUTH_TOKEN"`

	// DeviceID identifies this installation in logs and request headers.
	// Env: APP_DEVICE_ID
	DeviceID string `env:"DEVICE_ID"`

	// Version is the semantic version string of the running client.
	// Env: APP_VERSION
	Version string `env:"VERSION"`
}

// Storage groups the configuration of local persistence.
type Storage struct {
	// DB holds the SQLite connection settings.
	DB DB `envPrefix:"DB_"`

	// EncryptionKey turns on encryption of stored records and queued
	// operations when set. An encrypted database cannot be opened without it.
	// Env: STORAGE_ENCRYPTION_KEY
	EncryptionKey string `env:"ENCRYPTION_KEY"`
}

// DB holds connection settings for the local SQLite database.
type DB struct {
	// DSN is the SQLite data source name, usually a file path
	// (e.g. "file:field.db?_foreign_keys=on").
	// Env: STORAGE_DB_DSN
	DSN string `env:"DSN"`
}

// Adapter holds configuration of the remote REST API client.
type Adapter struct {
	// HTTPAddress is the base address of the remote API, either "host:port"
	// or a full URL.
	// Env: ADAPTER_ADDRESS
	HTTPAddress string `env:"ADDRESS"`

	// RequestTimeout bounds every single remote request (e.g. "15s").
	// Env: ADAPTER_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
}

// Sync holds settings of the background synchronization worker.
type Sync struct {
	// Interval is the period of background sync triggers.
	// Env: SYNC_INTERVAL
	Interval time.Duration `env:"INTERVAL"`

	// SyncAlways forces a cycle on every tick even when nothing is queued.
	// Env: SYNC_ALWAYS
	SyncAlways bool `env:"ALWAYS"`

	// MaxRetries is the number of failed attempts after which an operation
	// is quarantined.
	// Env: SYNC_MAX_RETRIES
	MaxRetries int `env:"MAX_RETRIES"`

	// BackoffBase is the delay applied after the first failed attempt.
	// Env: SYNC_BACKOFF_BASE
	BackoffBase time.Duration `env:"BACKOFF_BASE"`

	// BackoffMax caps the delay between attempts.
	// Env: SYNC_BACKOFF_MAX
	BackoffMax time.Duration `env:"BACKOFF_MAX"`
}

// Log holds the rotating log file settings.
type Log struct {
	// FilePath is the log file location. Empty means a "logs" directory next
	// to the executable.
	// Env: LOG_FILE_PATH
	FilePath string `env:"FILE_PATH"`

	// Env: LOG_MAX_SIZE_MB
	MaxSizeMB int `env:"MAX_SIZE_MB"`

	// Env: LOG_MAX_BACKUPS
	MaxBackups int `env:"MAX_BACKUPS"`

	// Env: LOG_MAX_AGE_DAYS
	MaxAgeDays int `env:"MAX_AGE_DAYS"`
}

// Connectivity holds the settings of the reachability prober.
type Connectivity struct {
	// ProbeInterval is the period between two reachability probes.
	// Env: CONNECTIVITY_PROBE_INTERVAL
	ProbeInterval time.Duration `env:"PROBE_INTERVAL"`

	// ProbePath is the path requested on the remote API to test reachability.
	// Env: CONNECTIVITY_PROBE_PATH
	ProbePath string `env:"PROBE_PATH"`
}

// GetStructuredConfig loads and merges the client configuration from all
// available sources in the following priority order (last source wins for
// non-zero fields):
//  1. Environment variables
//  2. Command-line flags
//  3. JSON file (path resolved from sources 1 and 2)
func GetStructuredConfig() (*StructuredConfig, error) {
	return newConfigBuilder().
		withEnv().
		withFlags().
		withJSON().
		build()
}
