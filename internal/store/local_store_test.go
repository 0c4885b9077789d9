// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/go-field-sync/internal/logger"
	"github.com/MKhiriev/go-field-sync/models"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func child(id int64, name, district string) *models.Child {
	return &models.Child{
		Meta:        models.Meta{ID: id, LastModified: t0},
		FullName:    name,
		District:    district,
		DateOfBirth: t0.AddDate(-1, 0, 0),
	}
}

func ids(entities []models.Entity) []int64 {
	out := make([]int64, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.GetID())
	}
	return out
}

// ── Get / Put / Delete ───────────────────────────────────────────────────────

func TestLocalStore_PutGet(t *testing.T) {
	s := NewLocalStore(newTestDB(t), logger.Nop())

	c := child(7, "Amina Phiri", "Lilongwe")
	c.ScreeningIDs = []int64{3, 4}
	require.NoError(t, s.Put(ctx(), c))

	got, err := s.Get(ctx(), models.KindChild, 7)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestLocalStore_PutIsUpsert(t *testing.T) {
	s := NewLocalStore(newTestDB(t), logger.Nop())

	require.NoError(t, s.Put(ctx(), child(1, "Old", "Zomba")))
	require.NoError(t, s.Put(ctx(), child(1, "New", "Mzuzu")))

	got, err := s.Get(ctx(), models.KindChild, 1)
	require.NoError(t, err)
	assert.Equal(t, "New", got.(*models.Child).FullName)

	// the old index entry is gone
	byOld, err := s.QueryByIndex(ctx(), models.KindChild, "district", "Zomba")
	require.NoError(t, err)
	assert.Empty(t, byOld)
}

func TestLocalStore_GetNotFound(t *testing.T) {
	s := NewLocalStore(newTestDB(t), logger.Nop())

	_, err := s.Get(ctx(), models.KindChild, 99)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestLocalStore_CollectionsAreIndependent(t *testing.T) {
	s := NewLocalStore(newTestDB(t), logger.Nop())

	require.NoError(t, s.Put(ctx(), child(5, "Child", "")))
	require.NoError(t, s.Put(ctx(), &models.Screening{Meta: models.Meta{ID: 5, LastModified: t0}, ChildID: 5}))

	c, err := s.Get(ctx(), models.KindChild, 5)
	require.NoError(t, err)
	assert.Equal(t, models.KindChild, c.Kind())

	require.NoError(t, s.Delete(ctx(), models.KindScreening, 5))
	_, err = s.Get(ctx(), models.KindChild, 5)
	assert.NoError(t, err)
}

func TestLocalStore_Delete(t *testing.T) {
	s := NewLocalStore(newTestDB(t), logger.Nop())
	require.NoError(t, s.Put(ctx(), child(-1, "Temp", "Blantyre")))

	require.NoError(t, s.Delete(ctx(), models.KindChild, -1))
	_, err := s.Get(ctx(), models.KindChild, -1)
	assert.ErrorIs(t, err, ErrRecordNotFound)

	found, err := s.QueryByIndex(ctx(), models.KindChild, "district", "Blantyre")
	require.NoError(t, err)
	assert.Empty(t, found)

	// absent record
	assert.NoError(t, s.Delete(ctx(), models.KindChild, -1))
}

func TestLocalStore_RejectsInvalidInput(t *testing.T) {
	s := NewLocalStore(newTestDB(t), logger.Nop())

	assert.ErrorIs(t, s.Put(ctx(), child(0, "No id", "")), ErrInvalidEntityID)
	_, err := s.Get(ctx(), models.EntityKind("vaccine"), 1)
	assert.ErrorIs(t, err, models.ErrUnknownEntityKind)
}

// ── QueryByIndex / Search ────────────────────────────────────────────────────

func TestLocalStore_QueryByIndex(t *testing.T) {
	s := NewLocalStore(newTestDB(t), logger.Nop())

	require.NoError(t, s.Put(ctx(), &models.Screening{Meta: models.Meta{ID: 1, LastModified: t0}, ChildID: 10, ScreenedAt: t0}))
	require.NoError(t, s.Put(ctx(), &models.Screening{Meta: models.Meta{ID: 2, LastModified: t0}, ChildID: 11, ScreenedAt: t0}))
	require.NoError(t, s.Put(ctx(), &models.Screening{Meta: models.Meta{ID: 3, LastModified: t0}, ChildID: 10, ScreenedAt: t0.AddDate(0, 0, 1)}))

	byChild, err := s.QueryByIndex(ctx(), models.KindScreening, "childId", "10")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, ids(byChild))

	byDay, err := s.QueryByIndex(ctx(), models.KindScreening, "screenedOn", "2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids(byDay))
}

func TestLocalStore_Search(t *testing.T) {
	s := NewLocalStore(newTestDB(t), logger.Nop())
	now := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)

	infant := child(1, "Grace Banda", "Lilongwe")
	infant.DateOfBirth = now.AddDate(0, -3, 0)
	toddler := child(2, "Chikondi BANDA", "Zomba")
	toddler.DateOfBirth = now.AddDate(-1, -6, 0)
	older := child(3, "Mphatso Mwale", "Lilongwe")
	older.DateOfBirth = now.AddDate(-4, 0, 0)
	unknown := child(4, "Kondwani 100%_sure", "Lilongwe")
	unknown.DateOfBirth = time.Time{}

	for _, c := range []*models.Child{infant, toddler, older, unknown} {
		require.NoError(t, s.Put(ctx(), c))
	}

	tests := []struct {
		name      string
		predicate models.Predicate
		want      []int64
	}{
		{name: "nil matches all", predicate: nil, want: []int64{1, 2, 3, 4}},
		{name: "empty conjunction", predicate: models.All{}, want: []int64{1, 2, 3, 4}},
		{name: "field equals", predicate: models.FieldEquals{Field: "district", Value: "Zomba"}, want: []int64{2}},
		{name: "contains ignores case", predicate: models.FieldContains{Field: "fullName", Substring: "banda"}, want: []int64{1, 2}},
		{name: "contains escapes wildcards", predicate: models.FieldContains{Field: "fullName", Substring: "0%_s"}, want: []int64{4}},
		{name: "wildcard is literal", predicate: models.FieldContains{Field: "fullName", Substring: "%"}, want: []int64{4}},
		{name: "index", predicate: models.IndexEquals{Index: "district", Value: "Lilongwe"}, want: []int64{1, 3, 4}},
		{name: "age bucket infant", predicate: models.InAgeBucket{Field: "dateOfBirth", Bucket: models.AgeUnder6Months, Now: now}, want: []int64{1}},
		{name: "age bucket toddler", predicate: models.InAgeBucket{Field: "dateOfBirth", Bucket: models.Age12To23Months, Now: now}, want: []int64{2}},
		{name: "age bucket unknown", predicate: models.InAgeBucket{Field: "dateOfBirth", Bucket: models.AgeUnknown, Now: now}, want: []int64{4}},
		{
			name: "conjunction mixes sql and derived",
			predicate: models.Filter{
				Index: "district",
				Value: "Lilongwe",
				Where: []models.Predicate{models.InAgeBucket{Field: "dateOfBirth", Bucket: models.Age36To59Months, Now: now}},
			}.Predicate(),
			want: []int64{3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Search(ctx(), models.KindChild, tt.predicate)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestLocalStore_SearchBoolField(t *testing.T) {
	s := NewLocalStore(newTestDB(t), logger.Nop())

	require.NoError(t, s.Put(ctx(), &models.Screening{Meta: models.Meta{ID: 1, LastModified: t0}, ReferralNeeded: true}))
	require.NoError(t, s.Put(ctx(), &models.Screening{Meta: models.Meta{ID: 2, LastModified: t0}}))

	got, err := s.Search(ctx(), models.KindScreening, models.FieldEquals{Field: "referralNeeded", Value: true})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(got))
}

func TestLocalStore_SearchInvalidPredicate(t *testing.T) {
	s := NewLocalStore(newTestDB(t), logger.Nop())

	_, err := s.Search(ctx(), models.KindChild, models.FieldEquals{Field: "x') OR 1=1 --", Value: 1})
	assert.ErrorIs(t, err, ErrInvalidPredicate)
}

// ── ReplaceAll ───────────────────────────────────────────────────────────────

func TestLocalStore_ReplaceAll(t *testing.T) {
	s := NewLocalStore(newTestDB(t), logger.Nop())

	require.NoError(t, s.Put(ctx(), child(1, "Stale", "Zomba")))
	require.NoError(t, s.Put(ctx(), &models.User{Meta: models.Meta{ID: 1, LastModified: t0}, Username: "hsa01"}))

	require.NoError(t, s.ReplaceAll(ctx(), models.KindChild, []models.Entity{
		child(2, "Fresh", "Mzuzu"),
		child(-3, "Local only", "Mzuzu"),
	}))

	all, err := s.Search(ctx(), models.KindChild, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{-3, 2}, ids(all))

	stale, err := s.QueryByIndex(ctx(), models.KindChild, "district", "Zomba")
	require.NoError(t, err)
	assert.Empty(t, stale)

	// other collections untouched
	_, err = s.Get(ctx(), models.KindUser, 1)
	assert.NoError(t, err)
}

func TestLocalStore_ReplaceAllIsAtomic(t *testing.T) {
	s := NewLocalStore(newTestDB(t), logger.Nop())
	require.NoError(t, s.Put(ctx(), child(1, "Kept", "Zomba")))

	err := s.ReplaceAll(ctx(), models.KindChild, []models.Entity{
		child(2, "Fresh", "Mzuzu"),
		&models.User{Meta: models.Meta{ID: 3}},
	})
	require.Error(t, err)

	got, err := s.Get(ctx(), models.KindChild, 1)
	require.NoError(t, err)
	assert.Equal(t, "Kept", got.(*models.Child).FullName)
}

// ── RewriteReferences / NextTempID ───────────────────────────────────────────

func TestLocalStore_RewriteReferences(t *testing.T) {
	s := NewLocalStore(newTestDB(t), logger.Nop())

	c := child(-1, "Temp", "")
	c.ScreeningIDs = []int64{-2}
	require.NoError(t, s.Put(ctx(), c))
	require.NoError(t, s.Put(ctx(), &models.Screening{Meta: models.Meta{ID: -2, LastModified: t0}, ChildID: -1}))
	require.NoError(t, s.Put(ctx(), &models.Referral{Meta: models.Meta{ID: -3, LastModified: t0}, ChildID: -1, ScreeningID: -2}))
	require.NoError(t, s.Put(ctx(), &models.Tier{Meta: models.Meta{ID: -11, LastModified: t0}, ChildID: -11}))

	changed, err := s.RewriteReferences(ctx(), -1, 40)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{-2, -3}, ids(changed))

	sc, err := s.Get(ctx(), models.KindScreening, -2)
	require.NoError(t, err)
	assert.Equal(t, int64(40), sc.(*models.Screening).ChildID)

	byChild, err := s.QueryByIndex(ctx(), models.KindReferral, "childId", "40")
	require.NoError(t, err)
	assert.Equal(t, []int64{-3}, ids(byChild))

	// "-11" contains "-1" but is a different identifier
	tier, err := s.Get(ctx(), models.KindTier, -11)
	require.NoError(t, err)
	assert.Equal(t, int64(-11), tier.(*models.Tier).ChildID)

	changed, err = s.RewriteReferences(ctx(), -2, 41)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{-1, -3}, ids(changed))
}

func TestLocalStore_NextTempID(t *testing.T) {
	s := NewLocalStore(newTestDB(t), logger.Nop())

	first, err := s.NextTempID(ctx())
	require.NoError(t, err)
	second, err := s.NextTempID(ctx())
	require.NoError(t, err)

	assert.Equal(t, int64(-1), first)
	assert.Equal(t, int64(-2), second)
	assert.True(t, models.IsTemporaryID(second))
}

// ── failures ─────────────────────────────────────────────────────────────────

func TestLocalStore_StorageErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		driver   error
		wantKind ErrorKind
		wantIs   error
	}{
		{name: "disk full", driver: sqlite3.Error{Code: sqlite3.ErrFull}, wantKind: ErrorKindQuota, wantIs: ErrQuotaExceeded},
		{name: "read only", driver: sqlite3.Error{Code: sqlite3.ErrReadonly}, wantKind: ErrorKindPermission, wantIs: ErrPermissionDenied},
		{name: "other", driver: errors.New("connection reset"), wantKind: ErrorKindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			s := NewLocalStore(db, logger.Nop())

			mock.ExpectQuery("SELECT data FROM records").
				WithArgs("children", int64(1)).
				WillReturnError(tt.driver)

			_, err := s.Get(ctx(), models.KindChild, 1)
			require.Error(t, err)

			var storageErr *StorageError
			require.ErrorAs(t, err, &storageErr)
			assert.Equal(t, tt.wantKind, storageErr.Kind)
			assert.Equal(t, "get", storageErr.Op)
			assert.Equal(t, "children", storageErr.Collection)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestLocalStore_PutRollsBackOnFailure(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewLocalStore(db, logger.Nop())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO records").WillReturnError(sqlite3.Error{Code: sqlite3.ErrFull})
	mock.ExpectRollback()

	err := s.Put(ctx(), child(1, "A", ""))
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLocalStore_BeginFailure(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewLocalStore(db, logger.Nop())

	mock.ExpectBegin().WillReturnError(sqlite3.Error{Code: sqlite3.ErrCantOpen})

	err := s.ReplaceAll(ctx(), models.KindChild, nil)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.ErrorIs(t, err, ErrBeginningTransaction)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLocalStore_SearchScanFailure(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewLocalStore(db, logger.Nop())

	rows := sqlmock.NewRows([]string{"data"}).AddRow(`{"id":1}`).RowError(0, errors.New("io"))
	mock.ExpectQuery("SELECT data FROM records").WillReturnRows(rows)

	_, err := s.Search(ctx(), models.KindChild, nil)
	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "search", storageErr.Op)
}
