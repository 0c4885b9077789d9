// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
)

func TestSQLiteErrorClassifier_Classify(t *testing.T) {
	c := NewSQLiteErrorClassifier()

	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{name: "nil", err: nil, want: ErrorKindOther},
		{name: "plain error", err: errors.New("boom"), want: ErrorKindOther},
		{name: "full", err: sqlite3.Error{Code: sqlite3.ErrFull}, want: ErrorKindQuota},
		{name: "wrapped full", err: fmt.Errorf("put: %w", sqlite3.Error{Code: sqlite3.ErrFull}), want: ErrorKindQuota},
		{name: "perm", err: sqlite3.Error{Code: sqlite3.ErrPerm}, want: ErrorKindPermission},
		{name: "readonly", err: sqlite3.Error{Code: sqlite3.ErrReadonly}, want: ErrorKindPermission},
		{name: "cantopen", err: sqlite3.Error{Code: sqlite3.ErrCantOpen}, want: ErrorKindPermission},
		{name: "busy", err: sqlite3.Error{Code: sqlite3.ErrBusy}, want: ErrorKindOther},
		{name: "constraint", err: sqlite3.Error{Code: sqlite3.ErrConstraint}, want: ErrorKindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.err))
		})
	}
}

func TestStorageError_Format(t *testing.T) {
	err := &StorageError{Op: "put", Collection: "children", Kind: ErrorKindQuota, Err: errors.New("disk full")}
	assert.Equal(t, "storage put children (quota): disk full", err.Error())
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.NotErrorIs(t, err, ErrPermissionDenied)
}
