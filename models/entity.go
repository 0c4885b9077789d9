// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EntityKind names one of the closed set of record types handled by the
// synchronization engine. The kind determines the local collection, the
// remote resource path and the merge policy.
type EntityKind string

const (
	KindChild     EntityKind = "child"
	KindScreening EntityKind = "screening"
	KindTier      EntityKind = "tier"
	KindReferral  EntityKind = "referral"
	KindUser      EntityKind = "user"
)

// EntityKinds lists every supported kind in pull order: parents are pulled
// before the records that reference them.
var EntityKinds = []EntityKind{KindUser, KindChild, KindScreening, KindTier, KindReferral}

// ErrUnknownEntityKind is returned when a kind outside of [EntityKinds] is
// used to build, decode or route an entity.
var ErrUnknownEntityKind = errors.New("unknown entity kind")

// Collection returns the name of the local collection and of the remote
// resource that stores entities of this kind.
func (k EntityKind) Collection() string {
	switch k {
	case KindChild:
		return "children"
	case KindScreening:
		return "screenings"
	case KindTier:
		return "tiers"
	case KindReferral:
		return "referrals"
	case KindUser:
		return "users"
	}
	return ""
}

// Valid reports whether k is one of the supported kinds.
func (k EntityKind) Valid() bool {
	return k.Collection() != ""
}

// Entity is implemented by every record type the engine synchronizes.
//
// Identifiers are positive when assigned by the server and negative when
// generated locally for a record created offline.
type Entity interface {
	// Kind returns the variant tag of the entity.
	Kind() EntityKind
	// GetID returns the current primary key.
	GetID() int64
	// SetID replaces the primary key.
	SetID(id int64)
	// Modified returns the lastModified timestamp.
	Modified() time.Time
	// Touch sets lastModified.
	Touch(at time.Time)
	// IndexValues returns the secondary index entries of the record. Empty
	// values are not indexed.
	IndexValues() map[string]string
	// RewriteReference replaces every occurrence of the identifier from with
	// to and reports whether anything changed.
	RewriteReference(from, to int64) bool
	// References returns the identifiers of the records this one points to.
	References() []int64
	// Clone returns a deep copy.
	Clone() Entity
}

// Meta holds the fields shared by all entities.
type Meta struct {
	// ID is the server-assigned identifier (positive) or a temporary
	// identifier (negative) for records not yet acknowledged by the server.
	ID int64 `json:"id"`

	// LastModified is the time of the last change of the record on the side
	// that produced this version.
	LastModified time.Time `json:"lastModified"`
}

// GetID implements [Entity].
func (m *Meta) GetID() int64 { return m.ID }

// SetID implements [Entity].
func (m *Meta) SetID(id int64) { m.ID = id }

// Modified implements [Entity].
func (m *Meta) Modified() time.Time { return m.LastModified }

// Touch implements [Entity].
func (m *Meta) Touch(at time.Time) { m.LastModified = at.UTC() }

// IsTemporaryID reports whether id was generated locally.
func IsTemporaryID(id int64) bool {
	return id < 0
}

// HasTemporaryReference reports whether e points to a record that has not
// been acknowledged by the server yet.
func HasTemporaryReference(e Entity) bool {
	for _, id := range e.References() {
		if IsTemporaryID(id) {
			return true
		}
	}
	return false
}

// NewEntity returns an empty entity of the given kind.
func NewEntity(kind EntityKind) (Entity, error) {
	switch kind {
	case KindChild:
		return &Child{}, nil
	case KindScreening:
		return &Screening{}, nil
	case KindTier:
		return &Tier{}, nil
	case KindReferral:
		return &Referral{}, nil
	case KindUser:
		return &User{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEntityKind, kind)
}

// DecodeEntity decodes a JSON document into an entity of the given kind.
func DecodeEntity(kind EntityKind, data []byte) (Entity, error) {
	e, err := NewEntity(kind)
	if err != nil {
		return nil, err
	}
	if err = json.Unmarshal(data, e); err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	return e, nil
}

// DecodeEntities decodes a JSON array into entities of the given kind.
func DecodeEntities(kind EntityKind, data []byte) ([]Entity, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode %s list: %w", kind, err)
	}

	out := make([]Entity, 0, len(raw))
	for _, item := range raw {
		e, err := DecodeEntity(kind, item)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func rewriteID(field *int64, from, to int64) bool {
	if *field == from {
		*field = to
		return true
	}
	return false
}

func putIndex(idx map[string]string, name string, value int64) {
	if value != 0 {
		idx[name] = fmt.Sprintf("%d", value)
	}
}
