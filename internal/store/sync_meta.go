// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MKhiriev/go-field-sync/internal/logger"
)

const (
	metaTable           = "sync_meta"
	metaKeyLastSyncedAt = "last_synced_at"
)

type syncMetaRepository struct {
	*DB
	logger *logger.Logger
}

// NewSyncMetaRepository constructs a [SyncMetaRepository] over db.
func NewSyncMetaRepository(db *DB, logger *logger.Logger) SyncMetaRepository {
	return &syncMetaRepository{DB: db, logger: logger}
}

// LastSyncedAt returns the zero time when no cycle has completed yet.
func (r *syncMetaRepository) LastSyncedAt(ctx context.Context) (time.Time, error) {
	var value string
	err := r.DB.QueryRowContext(ctx, getMeta, metaKeyLastSyncedAt).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "syncMetaRepository.LastSyncedAt").
			Msg("failed to read sync meta")
		return time.Time{}, r.storageError("lastSyncedAt", metaTable, fmt.Errorf("%w: %w", ErrScanningRow, err))
	}

	at, err := parseTime(value)
	if err != nil {
		return time.Time{}, r.storageError("lastSyncedAt", metaTable, err)
	}
	return at, nil
}

func (r *syncMetaRepository) SetLastSyncedAt(ctx context.Context, at time.Time) error {
	if _, err := r.DB.ExecContext(ctx, upsertMeta, metaKeyLastSyncedAt, formatTime(at)); err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "syncMetaRepository.SetLastSyncedAt").
			Msg("failed to write sync meta")
		return r.storageError("setLastSyncedAt", metaTable, fmt.Errorf("%w: %w", ErrExecutingStatement, err))
	}
	return nil
}
