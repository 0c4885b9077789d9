// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MKhiriev/go-field-sync/internal/logger"
	"github.com/MKhiriev/go-field-sync/models"
)

// localStore is the SQLite-backed implementation of [LocalStore]. Records
// are stored as JSON documents keyed by (collection, id); secondary index
// entries live in record_index.
type localStore struct {
	*DB
	logger *logger.Logger
}

// NewLocalStore constructs a [LocalStore] over db.
func NewLocalStore(db *DB, logger *logger.Logger) LocalStore {
	return &localStore{
		DB:     db,
		logger: logger,
	}
}

func (s *localStore) Get(ctx context.Context, kind models.EntityKind, id int64) (models.Entity, error) {
	log := logger.FromContext(ctx)

	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownEntityKind, kind)
	}

	var data []byte
	err := s.DB.QueryRowContext(ctx, getRecord, kind.Collection(), id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %d", ErrRecordNotFound, kind.Collection(), id)
	}
	if err != nil {
		log.Err(err).
			Str("func", "localStore.Get").
			Str("collection", kind.Collection()).
			Int64("entity_id", id).
			Msg("failed to read record")
		return nil, s.storageError("get", kind.Collection(), fmt.Errorf("%w: %w", ErrScanningRow, err))
	}

	if data, err = s.open(data); err != nil {
		return nil, s.storageError("get", kind.Collection(), fmt.Errorf("%w: %w", ErrDecodingRecord, err))
	}
	entity, err := models.DecodeEntity(kind, data)
	if err != nil {
		return nil, s.storageError("get", kind.Collection(), fmt.Errorf("%w: %w", ErrDecodingRecord, err))
	}
	return entity, nil
}

func (s *localStore) Put(ctx context.Context, entity models.Entity) error {
	kind := entity.Kind()
	if entity.GetID() == 0 {
		return fmt.Errorf("%w: %s", ErrInvalidEntityID, kind)
	}

	return s.inTx(ctx, "put", kind.Collection(), func(tx *sql.Tx) error {
		return s.putTx(ctx, tx, entity)
	})
}

func (s *localStore) putTx(ctx context.Context, tx *sql.Tx, entity models.Entity) error {
	log := logger.FromContext(ctx)
	collection := entity.Kind().Collection()

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("encode %s %d: %w", collection, entity.GetID(), err)
	}
	if data, err = s.seal(data); err != nil {
		return fmt.Errorf("seal %s %d: %w", collection, entity.GetID(), err)
	}

	if _, err = tx.ExecContext(ctx, upsertRecord, collection, entity.GetID(), string(data), formatTime(entity.Modified())); err != nil {
		log.Err(err).
			Str("func", "localStore.putTx").
			Str("collection", collection).
			Int64("entity_id", entity.GetID()).
			Msg("failed to upsert record")
		return s.storageError("put", collection, fmt.Errorf("%w: %w", ErrExecutingStatement, err))
	}

	if _, err = tx.ExecContext(ctx, deleteRecordIndex, collection, entity.GetID()); err != nil {
		return s.storageError("put", collection, fmt.Errorf("%w: %w", ErrExecutingStatement, err))
	}

	for name, value := range entity.IndexValues() {
		if _, err = tx.ExecContext(ctx, insertRecordIndex, collection, name, value, entity.GetID()); err != nil {
			log.Err(err).
				Str("func", "localStore.putTx").
				Str("collection", collection).
				Str("index", name).
				Int64("entity_id", entity.GetID()).
				Msg("failed to write index entry")
			return s.storageError("put", collection, fmt.Errorf("%w: %w", ErrExecutingStatement, err))
		}
	}

	return nil
}

func (s *localStore) Delete(ctx context.Context, kind models.EntityKind, id int64) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", models.ErrUnknownEntityKind, kind)
	}
	collection := kind.Collection()

	return s.inTx(ctx, "delete", collection, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, deleteRecordIndex, collection, id); err != nil {
			return s.storageError("delete", collection, fmt.Errorf("%w: %w", ErrExecutingStatement, err))
		}
		if _, err := tx.ExecContext(ctx, deleteRecord, collection, id); err != nil {
			logger.FromContext(ctx).Err(err).
				Str("func", "localStore.Delete").
				Str("collection", collection).
				Int64("entity_id", id).
				Msg("failed to delete record")
			return s.storageError("delete", collection, fmt.Errorf("%w: %w", ErrExecutingStatement, err))
		}
		return nil
	})
}

func (s *localStore) QueryByIndex(ctx context.Context, kind models.EntityKind, index, value string) ([]models.Entity, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownEntityKind, kind)
	}

	query, args, err := buildQueryByIndexQuery(kind.Collection(), index, value)
	if err != nil {
		return nil, s.storageError("queryByIndex", kind.Collection(), fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err))
	}

	return s.selectEntities(ctx, "queryByIndex", kind, query, args, nil)
}

func (s *localStore) Search(ctx context.Context, kind models.EntityKind, predicate models.Predicate) ([]models.Entity, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownEntityKind, kind)
	}

	query, args, filters, err := buildSearchQuery(kind.Collection(), predicate, s.cipher.Enabled())
	if err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "localStore.Search").
			Str("collection", kind.Collection()).
			Msg("failed to compile search predicate")
		return nil, err
	}

	return s.selectEntities(ctx, "search", kind, query, args, filters)
}

func (s *localStore) selectEntities(ctx context.Context, op string, kind models.EntityKind, query string, args []any, filters []rowFilter) ([]models.Entity, error) {
	log := logger.FromContext(ctx)
	collection := kind.Collection()

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).
			Str("func", "localStore."+op).
			Str("collection", collection).
			Msg("failed to execute query")
		return nil, s.storageError(op, collection, fmt.Errorf("%w: %w", ErrExecutingQuery, err))
	}
	defer rows.Close()

	result := make([]models.Entity, 0)

rowsLoop:
	for rows.Next() {
		var data []byte
		if err = rows.Scan(&data); err != nil {
			return nil, s.storageError(op, collection, fmt.Errorf("%w: %w", ErrScanningRow, err))
		}
		if data, err = s.open(data); err != nil {
			return nil, s.storageError(op, collection, fmt.Errorf("%w: %w", ErrDecodingRecord, err))
		}

		for _, keep := range filters {
			if !keep(data) {
				continue rowsLoop
			}
		}

		entity, decodeErr := models.DecodeEntity(kind, data)
		if decodeErr != nil {
			return nil, s.storageError(op, collection, fmt.Errorf("%w: %w", ErrDecodingRecord, decodeErr))
		}
		result = append(result, entity)
	}

	if err = rows.Err(); err != nil {
		log.Err(err).
			Str("func", "localStore."+op).
			Str("collection", collection).
			Msg("error occurred during rows iteration")
		return nil, s.storageError(op, collection, fmt.Errorf("%w: %w", ErrScanningRows, err))
	}

	return result, nil
}

func (s *localStore) ReplaceAll(ctx context.Context, kind models.EntityKind, entities []models.Entity) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", models.ErrUnknownEntityKind, kind)
	}
	collection := kind.Collection()

	for _, e := range entities {
		if e.Kind() != kind {
			return fmt.Errorf("replace %s: %w: got %s", collection, models.ErrUnknownEntityKind, e.Kind())
		}
		if e.GetID() == 0 {
			return fmt.Errorf("%w: %s", ErrInvalidEntityID, kind)
		}
	}

	return s.inTx(ctx, "replaceAll", collection, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, deleteCollectionIndex, collection); err != nil {
			return s.storageError("replaceAll", collection, fmt.Errorf("%w: %w", ErrExecutingStatement, err))
		}
		if _, err := tx.ExecContext(ctx, deleteCollection, collection); err != nil {
			return s.storageError("replaceAll", collection, fmt.Errorf("%w: %w", ErrExecutingStatement, err))
		}

		for _, e := range entities {
			if err := s.putTx(ctx, tx, e); err != nil {
				return err
			}
		}

		logger.FromContext(ctx).Debug().
			Str("func", "localStore.ReplaceAll").
			Str("collection", collection).
			Int("count", len(entities)).
			Msg("collection replaced")
		return nil
	})
}

func (s *localStore) RewriteReferences(ctx context.Context, from, to int64) ([]models.Entity, error) {
	var changed []models.Entity

	err := s.inTx(ctx, "rewriteReferences", "", func(tx *sql.Tx) error {
		// sealed documents cannot be prefiltered in SQL
		pattern := fmt.Sprintf("%%%d%%", from)
		if s.cipher.Enabled() {
			pattern = "%"
		}

		rows, err := tx.QueryContext(ctx, selectReferencing, from, pattern)
		if err != nil {
			return s.storageError("rewriteReferences", "", fmt.Errorf("%w: %w", ErrExecutingQuery, err))
		}

		var candidates []models.Entity
		for rows.Next() {
			var collection string
			var data []byte
			if err = rows.Scan(&collection, &data); err != nil {
				rows.Close()
				return s.storageError("rewriteReferences", "", fmt.Errorf("%w: %w", ErrScanningRow, err))
			}

			kind, ok := kindByCollection(collection)
			if !ok {
				continue
			}
			data, err = s.open(data)
			if err != nil {
				rows.Close()
				return s.storageError("rewriteReferences", collection, fmt.Errorf("%w: %w", ErrDecodingRecord, err))
			}
			entity, decodeErr := models.DecodeEntity(kind, data)
			if decodeErr != nil {
				rows.Close()
				return s.storageError("rewriteReferences", collection, fmt.Errorf("%w: %w", ErrDecodingRecord, decodeErr))
			}
			candidates = append(candidates, entity)
		}
		if err = rows.Err(); err != nil {
			rows.Close()
			return s.storageError("rewriteReferences", "", fmt.Errorf("%w: %w", ErrScanningRows, err))
		}
		rows.Close()

		for _, entity := range candidates {
			if !entity.RewriteReference(from, to) {
				continue
			}
			if err = s.putTx(ctx, tx, entity); err != nil {
				return err
			}
			changed = append(changed, entity)
		}
		return nil
	})
	if err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "localStore.RewriteReferences").
			Int64("from", from).
			Int64("to", to).
			Msg("failed to rewrite references")
		return nil, err
	}

	return changed, nil
}

func (s *localStore) NextTempID(ctx context.Context) (int64, error) {
	var id int64
	if err := s.DB.QueryRowContext(ctx, nextTempID).Scan(&id); err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "localStore.NextTempID").
			Msg("failed to advance temporary id sequence")
		return 0, s.storageError("nextTempID", "id_sequence", err)
	}
	return id, nil
}

func kindByCollection(collection string) (models.EntityKind, bool) {
	for _, kind := range models.EntityKinds {
		if kind.Collection() == collection {
			return kind, true
		}
	}
	return "", false
}
