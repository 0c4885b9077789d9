// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package adapter implements the client side of the remote resource API.
//
// Every entity kind maps to one collection resource:
//
//	GET    /api/{collection}
//	POST   /api/{collection}
//	PUT    /api/{collection}/{id}
//	DELETE /api/{collection}/{id}
//
// Failures are reported as [*NetworkError], [*ValidationError] or
// [*ConflictError] so the sync engine can decide between retrying,
// quarantining and merging.
package adapter

import (
	"context"

	"github.com/MKhiriev/go-field-sync/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/remote_api_mock.go -package=mock

// RemoteAPI is the generic CRUD surface of the server.
type RemoteAPI interface {
	// List returns every record of the collection visible to the caller.
	List(ctx context.Context, kind models.EntityKind) ([]models.Entity, error)

	// Create sends a locally created record. The returned entity carries the
	// server-assigned identifier.
	Create(ctx context.Context, e models.Entity) (models.Entity, error)

	// Update replaces the server copy of e and returns the stored version.
	Update(ctx context.Context, e models.Entity) (models.Entity, error)

	// Delete removes a record. A record that is already gone is not an
	// error.
	Delete(ctx context.Context, kind models.EntityKind, id int64) error

	// UserID returns the user the adapter is authenticated as.
	UserID() (int64, error)
}
