// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/MKhiriev/go-field-sync/internal/logger"
	"github.com/MKhiriev/go-field-sync/migrations"
)

// timeLayout is a fixed-width UTC layout so that stored timestamps sort
// lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// DB wraps the single SQLite connection shared by all local repositories.
type DB struct {
	*sql.DB
	errorClassificator ErrorClassificator
	logger             *logger.Logger
	cipher             *DocumentCipher
}

// NewDB wraps an already opened connection.
func NewDB(conn *sql.DB, log *logger.Logger) *DB {
	return &DB{
		DB:                 conn,
		errorClassificator: NewSQLiteErrorClassifier(),
		logger:             log,
	}
}

// Migrate applies the embedded schema migrations.
func (db *DB) Migrate() error {
	return migrations.Migrate(db.DB)
}

// storageError wraps err into a classified [StorageError].
func (db *DB) storageError(op, collection string, err error) error {
	kind := ErrorKindOther
	if db.errorClassificator != nil {
		kind = db.errorClassificator.Classify(err)
	}
	return &StorageError{Op: op, Collection: collection, Kind: kind, Err: err}
}

// inTx runs fn inside a transaction, committing on success.
func (db *DB) inTx(ctx context.Context, op, collection string, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return db.storageError(op, collection, fmt.Errorf("%w: %w", ErrBeginningTransaction, err))
	}
	defer tx.Rollback()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return db.storageError(op, collection, fmt.Errorf("%w: %w", ErrCommitingTransaction, err))
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
