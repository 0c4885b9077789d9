// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/MKhiriev/go-field-sync/internal/logger"
)

// Argon2id parameters for deriving the document key from the passphrase.
const (
	argonTime    uint32 = 1
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 4
	saltSize            = 16
)

const (
	metaKeyEncryptionSalt  = "encryption_salt"
	metaKeyEncryptionCheck = "encryption_check"
	encryptionCheckValue   = "go-field-sync"
)

var (
	// ErrWrongEncryptionKey is returned when the configured key does not
	// open the database.
	ErrWrongEncryptionKey = errors.New("encryption key does not match the database")

	// ErrEncryptionKeyRequired is returned when an encrypted database is
	// opened without a key.
	ErrEncryptionKeyRequired = errors.New("database is encrypted but no key is configured")

	// ErrPlaintextDatabase is returned when encryption is enabled on a
	// database that already holds unencrypted records or operations.
	ErrPlaintextDatabase = errors.New("database already holds unencrypted data")

	ErrOpeningDocument = errors.New("failed to open sealed document")
)

// DocumentCipher seals record documents and queued payloads with
// XChaCha20-Poly1305. A nil *DocumentCipher leaves them as plaintext.
type DocumentCipher struct {
	aead cipher.AEAD
}

// NewDocumentCipher derives a key from passphrase and salt with Argon2id.
func NewDocumentCipher(passphrase string, salt []byte) (*DocumentCipher, error) {
	key := argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create document cipher: %w", err)
	}
	return &DocumentCipher{aead: aead}, nil
}

// Enabled reports whether documents are sealed.
func (c *DocumentCipher) Enabled() bool {
	return c != nil
}

// Seal encrypts plain under a random nonce. The result is base64 so that
// it fits the TEXT columns.
func (c *DocumentCipher) Seal(plain []byte) ([]byte, error) {
	if c == nil {
		return plain, nil
	}

	nonceSize := c.aead.NonceSize()
	nonce := make([]byte, nonceSize, nonceSize+len(plain)+c.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, plain, nil)
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sealed)))
	base64.StdEncoding.Encode(out, sealed)
	return out, nil
}

// Open reverses [DocumentCipher.Seal].
func (c *DocumentCipher) Open(stored []byte) ([]byte, error) {
	if c == nil {
		return stored, nil
	}

	sealed := make([]byte, base64.StdEncoding.DecodedLen(len(stored)))
	n, err := base64.StdEncoding.Decode(sealed, stored)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpeningDocument, err)
	}
	sealed = sealed[:n]

	nonceSize := c.aead.NonceSize()
	if len(sealed) < nonceSize+c.aead.Overhead() {
		return nil, fmt.Errorf("%w: truncated", ErrOpeningDocument)
	}

	plain, err := c.aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpeningDocument, err)
	}
	return plain, nil
}

// SetupEncryption turns on document encryption for db. The salt and a
// sealed check value are kept in sync_meta; the first call on an empty
// database creates them. An empty passphrase keeps the database in
// plaintext and fails if it was encrypted before.
func (db *DB) SetupEncryption(ctx context.Context, passphrase string) error {
	log := logger.FromContext(ctx)

	salt, err := db.readMeta(ctx, metaKeyEncryptionSalt)
	if err != nil {
		return err
	}

	if passphrase == "" {
		if salt != "" {
			return ErrEncryptionKeyRequired
		}
		return nil
	}

	if salt == "" {
		return db.initEncryption(ctx, passphrase)
	}

	rawSalt, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		return fmt.Errorf("%w: salt: %w", ErrOpeningDocument, err)
	}
	c, err := NewDocumentCipher(passphrase, rawSalt)
	if err != nil {
		return err
	}

	check, err := db.readMeta(ctx, metaKeyEncryptionCheck)
	if err != nil {
		return err
	}
	plain, err := c.Open([]byte(check))
	if err != nil || string(plain) != encryptionCheckValue {
		log.Warn().
			Str("func", "DB.SetupEncryption").
			Msg("encryption key rejected")
		return ErrWrongEncryptionKey
	}

	db.cipher = c
	return nil
}

func (db *DB) initEncryption(ctx context.Context, passphrase string) error {
	var stored int
	if err := db.QueryRowContext(ctx, countStoredDocuments).Scan(&stored); err != nil {
		return db.storageError("setupEncryption", metaTable, fmt.Errorf("%w: %w", ErrScanningRow, err))
	}
	if stored > 0 {
		return ErrPlaintextDatabase
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}
	c, err := NewDocumentCipher(passphrase, salt)
	if err != nil {
		return err
	}
	check, err := c.Seal([]byte(encryptionCheckValue))
	if err != nil {
		return err
	}

	err = db.inTx(ctx, "setupEncryption", metaTable, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, upsertMeta, metaKeyEncryptionSalt, base64.StdEncoding.EncodeToString(salt)); err != nil {
			return db.storageError("setupEncryption", metaTable, fmt.Errorf("%w: %w", ErrExecutingStatement, err))
		}
		if _, err := tx.ExecContext(ctx, upsertMeta, metaKeyEncryptionCheck, string(check)); err != nil {
			return db.storageError("setupEncryption", metaTable, fmt.Errorf("%w: %w", ErrExecutingStatement, err))
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.FromContext(ctx).Info().
		Str("func", "DB.SetupEncryption").
		Msg("document encryption initialised")

	db.cipher = c
	return nil
}

func (db *DB) readMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := db.QueryRowContext(ctx, getMeta, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", db.storageError("readMeta", metaTable, fmt.Errorf("%w: %w", ErrScanningRow, err))
	}
	return value, nil
}

// seal and open are no-ops while encryption is off.
func (db *DB) seal(data []byte) ([]byte, error) {
	return db.cipher.Seal(data)
}

func (db *DB) open(data []byte) ([]byte, error) {
	return db.cipher.Open(data)
}
