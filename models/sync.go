// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import "time"

// SyncState is the state of the sync orchestrator.
type SyncState string

const (
	StateIdle    SyncState = "idle"
	StateSyncing SyncState = "syncing"
	StateError   SyncState = "error"
)

// SyncMeta is derived from the operation queue and the last completed
// cycle. It is recomputed, never edited directly.
type SyncMeta struct {
	LastSyncedAt time.Time `json:"lastSyncedAt"`
	PendingCount int       `json:"pendingCount"`
	FailedCount  int       `json:"failedCount"`
}

// SyncStatus is the snapshot returned to the UI layer.
type SyncStatus struct {
	SyncMeta

	State     SyncState `json:"state"`
	IsSyncing bool      `json:"isSyncing"`
	IsOnline  bool      `json:"isOnline"`
	LastError string    `json:"lastError,omitempty"`
}

// SyncReport summarises one sync cycle.
type SyncReport struct {
	StartedAt time.Time
	Duration  time.Duration

	Pulled            int
	ConflictsResolved int

	Pushed      int
	PushFailed  int
	Quarantined int
	Skipped     int

	// PullErr is set when the pull phase failed; push is skipped then.
	PullErr error
}

// ChangeType classifies a [ChangeEvent].
type ChangeType string

const (
	ChangePulled          ChangeType = "pulled"
	ChangePushed          ChangeType = "pushed"
	ChangeSaved           ChangeType = "saved"
	ChangeDeleted         ChangeType = "deleted"
	ChangeReconciled      ChangeType = "reconciled"
	ChangeOperationFailed ChangeType = "operation_failed"
	ChangeState           ChangeType = "state"
)

// ChangeEvent notifies the UI layer that cached views may be stale.
type ChangeEvent struct {
	Type       ChangeType
	Kind       EntityKind
	EntityID   int64
	PreviousID int64
	State      SyncState
	Err        string
	At         time.Time
}
