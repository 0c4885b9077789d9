// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/go-field-sync/internal/logger"
	"github.com/MKhiriev/go-field-sync/models"
)

func TestDocumentCipher_SealOpen(t *testing.T) {
	c, err := NewDocumentCipher("secret", []byte("0123456789abcdef"))
	require.NoError(t, err)

	a, err := c.Seal([]byte(`{"id":1}`))
	require.NoError(t, err)
	b, err := c.Seal([]byte(`{"id":1}`))
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "every seal uses a fresh nonce")

	plain, err := c.Open(a)
	require.NoError(t, err)
	assert.Equal(t, `{"id":1}`, string(plain))

	tampered := []byte(string(a))
	tampered[len(tampered)/2] ^= 1
	_, err = c.Open(tampered)
	assert.ErrorIs(t, err, ErrOpeningDocument)

	other, err := NewDocumentCipher("other", []byte("0123456789abcdef"))
	require.NoError(t, err)
	_, err = other.Open(a)
	assert.ErrorIs(t, err, ErrOpeningDocument)

	var off *DocumentCipher
	assert.False(t, off.Enabled())
	same, err := off.Seal([]byte("plain"))
	require.NoError(t, err)
	assert.Equal(t, "plain", string(same))
}

func TestEncryption_RecordsAndOperationsAreSealed(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.SetupEncryption(ctx(), "secret"))

	s := NewLocalStore(db, logger.Nop())
	q := NewOperationQueue(db, &seqIDs{}, nil, logger.Nop())

	c := child(-1, "Amina Phiri", "Lilongwe")
	require.NoError(t, s.Put(ctx(), c))
	require.NoError(t, s.Put(ctx(), child(2, "Grace Banda", "Zomba")))
	require.NoError(t, s.Put(ctx(), &models.Screening{Meta: models.Meta{ID: -2, LastModified: t0}, ChildID: -1}))

	op, err := models.NewPendingOperation(models.OpCreate, c)
	require.NoError(t, err)
	_, err = q.Enqueue(ctx(), op)
	require.NoError(t, err)

	var data, payload string
	require.NoError(t, db.QueryRowContext(ctx(), `SELECT data FROM records WHERE id = -1`).Scan(&data))
	require.NoError(t, db.QueryRowContext(ctx(), `SELECT payload FROM pending_operations`).Scan(&payload))
	assert.NotContains(t, data, "Amina")
	assert.NotContains(t, payload, "Amina")

	got, err := s.Get(ctx(), models.KindChild, -1)
	require.NoError(t, err)
	assert.Equal(t, c, got)

	ops, err := q.List(ctx())
	require.NoError(t, err)
	require.Len(t, ops, 1)
	decoded, err := ops[0].Entity()
	require.NoError(t, err)
	assert.Equal(t, c, decoded)

	tests := []struct {
		name      string
		predicate models.Predicate
		want      []int64
	}{
		{name: "field equals", predicate: models.FieldEquals{Field: "district", Value: "Zomba"}, want: []int64{2}},
		{name: "contains ignores case", predicate: models.FieldContains{Field: "fullName", Substring: "PHIRI"}, want: []int64{-1}},
		{name: "index", predicate: models.IndexEquals{Index: "district", Value: "Lilongwe"}, want: []int64{-1}},
		{
			name: "conjunction",
			predicate: models.All{
				models.IndexEquals{Index: "district", Value: "Zomba"},
				models.FieldContains{Field: "fullName", Substring: "banda"},
			},
			want: []int64{2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, err := s.Search(ctx(), models.KindChild, tt.predicate)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(found))
		})
	}

	changed, err := s.RewriteReferences(ctx(), -1, 40)
	require.NoError(t, err)
	assert.Equal(t, []int64{-2}, ids(changed))

	sc, err := s.Get(ctx(), models.KindScreening, -2)
	require.NoError(t, err)
	assert.Equal(t, int64(40), sc.(*models.Screening).ChildID)
}

func TestEncryption_KeyIsVerifiedOnReopen(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.SetupEncryption(ctx(), "secret"))
	require.NoError(t, NewLocalStore(db, logger.Nop()).Put(ctx(), child(7, "Amina Phiri", "Lilongwe")))

	reopened := NewDB(db.DB, logger.Nop())
	assert.ErrorIs(t, reopened.SetupEncryption(ctx(), "guess"), ErrWrongEncryptionKey)
	assert.ErrorIs(t, reopened.SetupEncryption(ctx(), ""), ErrEncryptionKeyRequired)

	require.NoError(t, reopened.SetupEncryption(ctx(), "secret"))
	got, err := NewLocalStore(reopened, logger.Nop()).Get(ctx(), models.KindChild, 7)
	require.NoError(t, err)
	assert.Equal(t, "Amina Phiri", got.(*models.Child).FullName)
}

func TestEncryption_RefusesPlaintextDatabase(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.SetupEncryption(ctx(), ""), "plaintext stays available without a key")
	require.NoError(t, NewLocalStore(db, logger.Nop()).Put(ctx(), child(1, "Grace", "Zomba")))

	assert.ErrorIs(t, db.SetupEncryption(ctx(), "secret"), ErrPlaintextDatabase)
	assert.False(t, db.cipher.Enabled())
}
