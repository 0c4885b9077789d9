// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/tidwall/gjson"

	"github.com/MKhiriev/go-field-sync/models"
)

const (
	getRecord = `SELECT data FROM records WHERE collection = ? AND id = ?;`

	upsertRecord = `
		INSERT INTO records (collection, id, data, last_modified)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET
			data = excluded.data,
			last_modified = excluded.last_modified;`

	deleteRecord      = `DELETE FROM records WHERE collection = ? AND id = ?;`
	deleteRecordIndex = `DELETE FROM record_index WHERE collection = ? AND id = ?;`
	insertRecordIndex = `INSERT OR IGNORE INTO record_index (collection, index_name, value, id) VALUES (?, ?, ?, ?);`

	deleteCollection      = `DELETE FROM records WHERE collection = ?;`
	deleteCollectionIndex = `DELETE FROM record_index WHERE collection = ?;`

	// referencing candidates; the exact match is done on the decoded record
	selectReferencing = `SELECT collection, data FROM records WHERE id <> ? AND data LIKE ?;`

	nextTempID = `UPDATE id_sequence SET value = value - 1 WHERE name = 'temporary' RETURNING value;`

	insertOperation = `
		INSERT INTO pending_operations (
			id,
			entity_kind,
			entity_id,
			operation_kind,
			payload,
			enqueued_at
		) VALUES (?, ?, ?, ?, ?, ?);`

	lastEnqueuedAt = `SELECT COALESCE(MAX(enqueued_at), '') FROM pending_operations;`

	operationColumns = `
		id,
		entity_kind,
		entity_id,
		operation_kind,
		payload,
		enqueued_at,
		retry_count,
		last_error,
		COALESCE(last_attempt_at, ''),
		failed`

	listOperations = `SELECT` + operationColumns + `
		FROM pending_operations
		ORDER BY enqueued_at, seq;`

	getOperation = `SELECT` + operationColumns + `
		FROM pending_operations
		WHERE id = ?;`

	findOperationsByEntity = `SELECT` + operationColumns + `
		FROM pending_operations
		WHERE entity_kind = ? AND entity_id = ?
		ORDER BY enqueued_at, seq;`

	deleteOperation = `DELETE FROM pending_operations WHERE id = ?;`

	updateOperationRetry = `
		UPDATE pending_operations
		SET retry_count = ?, last_error = ?, last_attempt_at = ?, failed = ?
		WHERE id = ?;`

	updateOperationPayload = `
		UPDATE pending_operations
		SET entity_id = ?, payload = ?
		WHERE id = ?;`

	resetFailedOperations = `
		UPDATE pending_operations
		SET retry_count = 0, last_error = '', last_attempt_at = NULL, failed = 0
		WHERE failed = 1;`

	countOperations = `
		SELECT
			COALESCE(SUM(CASE WHEN failed = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN failed = 1 THEN 1 ELSE 0 END), 0)
		FROM pending_operations;`

	clearOperations = `DELETE FROM pending_operations;`

	getMeta    = `SELECT value FROM sync_meta WHERE key = ?;`
	upsertMeta = `
		INSERT INTO sync_meta (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value;`

	countStoredDocuments = `SELECT (SELECT COUNT(*) FROM records) + (SELECT COUNT(*) FROM pending_operations);`
)

var fieldNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// rowFilter is a predicate evaluated in Go on the raw JSON of a record.
type rowFilter func(data []byte) bool

// buildQueryByIndexQuery selects the records of collection with an exact
// index entry.
func buildQueryByIndexQuery(collection, index, value string) (string, []any, error) {
	return sq.Select("r.data").
		From("records r").
		Join("record_index ri ON ri.collection = r.collection AND ri.id = r.id").
		Where(sq.Eq{
			"r.collection":  collection,
			"ri.index_name": index,
			"ri.value":      value,
		}).
		OrderBy("r.id").
		ToSql()
}

// buildSearchQuery compiles predicate into a SELECT over records of
// collection. Parts that cannot be expressed in SQL are returned as row
// filters applied after decoding. With sealed documents only index
// lookups stay in SQL.
func buildSearchQuery(collection string, predicate models.Predicate, sealed bool) (string, []any, []rowFilter, error) {
	builder := sq.Select("data").
		From("records").
		Where(sq.Eq{"collection": collection}).
		OrderBy("id")

	var filters []rowFilter
	if predicate != nil {
		cond, f, err := compilePredicate(predicate, sealed)
		if err != nil {
			return "", nil, nil, err
		}
		if cond != nil {
			builder = builder.Where(cond)
		}
		filters = f
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return "", nil, nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}
	return query, args, filters, nil
}

func compilePredicate(predicate models.Predicate, sealed bool) (sq.Sqlizer, []rowFilter, error) {
	switch p := predicate.(type) {
	case models.FieldEquals:
		path, err := jsonPath(p.Field)
		if err != nil {
			return nil, nil, err
		}
		value := p.Value
		if t, ok := value.(time.Time); ok {
			// matches the encoding/json representation
			value = t.Format(time.RFC3339Nano)
		}
		if sealed {
			return nil, []rowFilter{fieldEqualsFilter(p.Field, value)}, nil
		}
		return sq.Expr("json_extract(data, ?) = ?", path, value), nil, nil

	case models.FieldContains:
		path, err := jsonPath(p.Field)
		if err != nil {
			return nil, nil, err
		}
		if sealed {
			return nil, []rowFilter{fieldContainsFilter(p.Field, p.Substring)}, nil
		}
		pattern := "%" + escapeLike(strings.ToLower(p.Substring)) + "%"
		return sq.Expr(`LOWER(json_extract(data, ?)) LIKE ? ESCAPE '\'`, path, pattern), nil, nil

	case models.IndexEquals:
		return sq.Expr(`EXISTS (
			SELECT 1 FROM record_index ri
			WHERE ri.collection = records.collection AND ri.id = records.id
				AND ri.index_name = ? AND ri.value = ?)`, p.Index, p.Value), nil, nil

	case models.InAgeBucket:
		if !fieldNamePattern.MatchString(p.Field) {
			return nil, nil, fmt.Errorf("%w: field %q", ErrInvalidPredicate, p.Field)
		}
		return nil, []rowFilter{ageBucketFilter(p)}, nil

	case models.All:
		var conds sq.And
		var filters []rowFilter
		for _, member := range p {
			cond, f, err := compilePredicate(member, sealed)
			if err != nil {
				return nil, nil, err
			}
			if cond != nil {
				conds = append(conds, cond)
			}
			filters = append(filters, f...)
		}
		if len(conds) == 0 {
			return nil, filters, nil
		}
		return conds, filters, nil
	}

	return nil, nil, fmt.Errorf("%w: %T", ErrInvalidPredicate, predicate)
}

// ageBucketFilter computes the age bucket of the date field at query time.
func ageBucketFilter(p models.InAgeBucket) rowFilter {
	now := p.Now
	if now.IsZero() {
		now = time.Now()
	}

	return func(data []byte) bool {
		field := gjson.GetBytes(data, p.Field)
		var birth time.Time
		if field.Exists() && field.String() != "" {
			birth = field.Time()
		}
		return models.BucketFor(birth, now) == p.Bucket
	}
}

func fieldEqualsFilter(field string, value any) rowFilter {
	return func(data []byte) bool {
		r := gjson.GetBytes(data, field)
		if !r.Exists() {
			return false
		}
		switch v := value.(type) {
		case string:
			return r.Type == gjson.String && r.Str == v
		case bool:
			return (r.Type == gjson.True || r.Type == gjson.False) && r.Bool() == v
		case int:
			return r.Type == gjson.Number && r.Int() == int64(v)
		case int64:
			return r.Type == gjson.Number && r.Int() == v
		case float64:
			return r.Type == gjson.Number && r.Num == v
		default:
			return r.String() == fmt.Sprint(v)
		}
	}
}

func fieldContainsFilter(field, substring string) rowFilter {
	needle := strings.ToLower(substring)
	return func(data []byte) bool {
		r := gjson.GetBytes(data, field)
		return r.Exists() && r.Type != gjson.Null && strings.Contains(strings.ToLower(r.String()), needle)
	}
}

func jsonPath(field string) (string, error) {
	if !fieldNamePattern.MatchString(field) {
		return "", fmt.Errorf("%w: field %q", ErrInvalidPredicate, field)
	}
	return "$." + field, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
