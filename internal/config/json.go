// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// StructuredJSONConfig mirrors [StructuredConfig] with snake_case JSON keys
// and string durations.
type StructuredJSONConfig struct {
	App struct {
		AuthToken string `json:"auth_token"`
		DeviceID  string `json:"device_id"`
		Version   string `json:"version"`
	} `json:"app,omitempty"`

	Storage struct {
		DB struct {
			DSN string `json:"dsn"`
		} `json:"db,omitempty"`
		EncryptionKey string `json:"encryption_key"`
	} `json:"storage,omitempty"`

	Adapter struct {
		HTTPAddress    string   `json:"http_address"`
		RequestTimeout Duration `json:"request_timeout"`
	} `json:"adapter,omitempty"`

	Sync struct {
		Interval    Duration `json:"interval"`
		SyncAlways  bool     `json:"sync_always"`
		MaxRetries  int      `json:"max_retries"`
		BackoffBase Duration `json:"backoff_base"`
		BackoffMax  Duration `json:"backoff_max"`
	} `json:"sync,omitempty"`

	Log struct {
		FilePath   string `json:"file_path"`
		MaxSizeMB  int    `json:"max_size_mb"`
		MaxBackups int    `json:"max_backups"`
		MaxAgeDays int    `json:"max_age_days"`
	} `json:"log,omitempty"`

	Connectivity struct {
		ProbeInterval Duration `json:"probe_interval"`
		ProbePath     string   `json:"probe_path"`
	} `json:"connectivity,omitempty"`
}

func parseJSON(jsonFilePath string) (*StructuredConfig, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jsonCfg StructuredJSONConfig
	if err := json.NewDecoder(jsonFile).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &StructuredConfig{
		App: App{
			AuthToken: jsonCfg.App.AuthToken,
			DeviceID:  jsonCfg.App.DeviceID,
			Version:   jsonCfg.App.Version,
		},
		Storage: Storage{
			DB:            DB{DSN: jsonCfg.Storage.DB.DSN},
			EncryptionKey: jsonCfg.Storage.EncryptionKey,
		},
		Adapter: Adapter{
			HTTPAddress:    jsonCfg.Adapter.HTTPAddress,
			RequestTimeout: time.Duration(jsonCfg.Adapter.RequestTimeout),
		},
		Sync: Sync{
			Interval:    time.Duration(jsonCfg.Sync.Interval),
			SyncAlways:  jsonCfg.Sync.SyncAlways,
			MaxRetries:  jsonCfg.Sync.MaxRetries,
			BackoffBase: time.Duration(jsonCfg.Sync.BackoffBase),
			BackoffMax:  time.Duration(jsonCfg.Sync.BackoffMax),
		},
		Log: Log{
			FilePath:   jsonCfg.Log.FilePath,
			MaxSizeMB:  jsonCfg.Log.MaxSizeMB,
			MaxBackups: jsonCfg.Log.MaxBackups,
			MaxAgeDays: jsonCfg.Log.MaxAgeDays,
		},
		Connectivity: Connectivity{
			ProbeInterval: time.Duration(jsonCfg.Connectivity.ProbeInterval),
			ProbePath:     jsonCfg.Connectivity.ProbePath,
		},
	}

	return cfg, nil
}

// Duration is a wrapper around time.Duration that supports JSON unmarshaling
// from strings like "1h", "30s" as well as from integer nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case nil:
		return nil
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
