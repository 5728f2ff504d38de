package store

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// keyPlaintextPrefix is the leading marker of every issued key. Presented
// keys without it are rejected before any hashing.
const keyPlaintextPrefix = "sk-"

// APIKeyRecord is the stored view of a caller credential. The plaintext key
// exists only in the Create return value; at rest only its SHA-256 hash and
// a short display prefix are kept.
type APIKeyRecord struct {
	ID         string     `json:"id"`
	KeyPrefix  string     `json:"key_prefix"`
	Name       string     `json:"name,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	IsActive   bool       `json:"is_active"`
	UsageCount int        `json:"usage_count"`
}

// CreateKey mints a new API key and persists its record. The returned
// plaintext is shown once and never stored.
func (s *Store) CreateKey(name string) (string, *APIKeyRecord, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return "", nil, fmt.Errorf("generating key: %w", err)
	}
	plaintext := keyPlaintextPrefix + hex.EncodeToString(secret)

	id, err := generateID()
	if err != nil {
		return "", nil, err
	}

	now := time.Now().UTC()
	rec := &APIKeyRecord{
		ID:        id,
		KeyPrefix: plaintext[:7] + "...",
		Name:      name,
		CreatedAt: now,
		IsActive:  true,
	}

	q := s.bind(`
INSERT INTO api_keys(id, key_hash, key_prefix, name, created_at, last_used_at, is_active, usage_count)
VALUES(?, ?, ?, ?, ?, NULL, ?, 0)`)
	if _, err := s.db.Exec(q, rec.ID, hashKey(plaintext), rec.KeyPrefix, nullableString(name), now, true); err != nil {
		return "", nil, fmt.Errorf("create key: %w", err)
	}
	return plaintext, rec, nil
}

// ValidateKey checks a presented key. On success it bumps usage_count and
// last_used_at and returns the record; any miss (wrong prefix, unknown hash,
// revoked) returns (nil, false) without touching state.
func (s *Store) ValidateKey(presented string) (*APIKeyRecord, bool) {
	if !strings.HasPrefix(presented, keyPlaintextPrefix) {
		return nil, false
	}

	q := s.bind(`
SELECT id, key_prefix, name, created_at, last_used_at, is_active, usage_count
FROM api_keys
WHERE key_hash = ?`)
	rec, err := scanKey(s.db.QueryRow(q, hashKey(presented)))
	if err != nil {
		return nil, false
	}
	if !rec.IsActive {
		return nil, false
	}

	now := time.Now().UTC()
	update := s.bind(`UPDATE api_keys SET usage_count = usage_count + 1, last_used_at = ? WHERE id = ?`)
	if _, err := s.db.Exec(update, now, rec.ID); err != nil {
		return nil, false
	}
	rec.UsageCount++
	rec.LastUsedAt = &now
	return rec, true
}

// ListKeys returns all key records, newest first. Hashes are never exposed.
func (s *Store) ListKeys() ([]APIKeyRecord, error) {
	q := `
SELECT id, key_prefix, name, created_at, last_used_at, is_active, usage_count
FROM api_keys
ORDER BY created_at DESC`
	rows, err := s.db.Query(q)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	keys := make([]APIKeyRecord, 0)
	for rows.Next() {
		rec, err := scanKey(rows)
		if err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, *rec)
	}
	return keys, rows.Err()
}

// RevokeKey deactivates a key. The row stays so the prefix remains auditable.
func (s *Store) RevokeKey(id string) error {
	res, err := s.db.Exec(s.bind(`UPDATE api_keys SET is_active = ? WHERE id = ?`), false, id)
	if err != nil {
		return fmt.Errorf("revoke key: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("key not found: %s", id)
	}
	return nil
}

// DeleteKey removes a key row entirely.
func (s *Store) DeleteKey(id string) error {
	res, err := s.db.Exec(s.bind(`DELETE FROM api_keys WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete key: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("key not found: %s", id)
	}
	return nil
}

func hashKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

func generateID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating id: %w", err)
	}
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16]), nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func scanKey(scanner interface{ Scan(dest ...interface{}) error }) (*APIKeyRecord, error) {
	var (
		rec      APIKeyRecord
		name     sql.NullString
		lastUsed sql.NullTime
	)
	err := scanner.Scan(
		&rec.ID,
		&rec.KeyPrefix,
		&name,
		&rec.CreatedAt,
		&lastUsed,
		&rec.IsActive,
		&rec.UsageCount,
	)
	if err != nil {
		return nil, err
	}
	rec.Name = name.String
	if lastUsed.Valid {
		t := lastUsed.Time
		rec.LastUsedAt = &t
	}
	return &rec, nil
}
