// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

// ErrorClassificator maps a driver error to an [ErrorKind].
type ErrorClassificator interface {
	Classify(err error) ErrorKind
}

// SQLiteErrorClassifier implements [ErrorClassificator] for the
// mattn/go-sqlite3 driver by inspecting the primary result code.
type SQLiteErrorClassifier struct{}

// NewSQLiteErrorClassifier constructs a [SQLiteErrorClassifier].
func NewSQLiteErrorClassifier() *SQLiteErrorClassifier {
	return &SQLiteErrorClassifier{}
}

// Classify implements [ErrorClassificator]. Errors that are not
// sqlite3.Error values are classified as [ErrorKindOther].
func (c *SQLiteErrorClassifier) Classify(err error) ErrorKind {
	if err == nil {
		return ErrorKindOther
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return ClassifySQLiteError(sqliteErr)
	}

	return ErrorKindOther
}

// ClassifySQLiteError maps a sqlite3.Error to an [ErrorKind].
//
// Quota codes: SQLITE_FULL.
// Permission codes: SQLITE_PERM, SQLITE_READONLY, SQLITE_CANTOPEN, SQLITE_AUTH.
func ClassifySQLiteError(sqliteErr sqlite3.Error) ErrorKind {
	switch sqliteErr.Code {
	case sqlite3.ErrFull:
		return ErrorKindQuota
	case sqlite3.ErrPerm,
		sqlite3.ErrReadonly,
		sqlite3.ErrCantOpen,
		sqlite3.ErrAuth:
		return ErrorKindPermission
	}
	return ErrorKindOther
}
