// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/MKhiriev/go-field-sync/internal/config"
	"github.com/MKhiriev/go-field-sync/internal/logger"
)

// ClientStorages groups the on-device repositories sharing one SQLite
// connection.
type ClientStorages struct {
	LocalStore     LocalStore
	OperationQueue OperationQueue
	SyncMeta       SyncMetaRepository

	db *DB
}

// NewClientStorages opens the database at cfg.DB.DSN, applies pending
// migrations and wires the repositories.
func NewClientStorages(ctx context.Context, cfg config.ClientStorage, ids IDGenerator, log *logger.Logger) (*ClientStorages, error) {
	log.Info().Msg("creating new storages...")

	db, err := NewConnectSQLite(ctx, cfg.DB, log)
	if err != nil {
		return nil, fmt.Errorf("sqlite connection error: %w", err)
	}

	if err = db.Migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	if err = db.SetupEncryption(ctx, cfg.EncryptionKey); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("encryption setup failed: %w", err)
	}

	return NewClientStoragesFromDB(db, ids, time.Now, log), nil
}

// NewClientStoragesFromDB wires the repositories over an already migrated
// connection.
func NewClientStoragesFromDB(db *DB, ids IDGenerator, now func() time.Time, log *logger.Logger) *ClientStorages {
	return &ClientStorages{
		LocalStore:     NewLocalStore(db, log),
		OperationQueue: NewOperationQueue(db, ids, now, log),
		SyncMeta:       NewSyncMetaRepository(db, log),
		db:             db,
	}
}

// Close releases the database connection.
func (s *ClientStorages) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
