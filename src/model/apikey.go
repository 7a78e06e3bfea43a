package model

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"
)

// APIKey grants programmatic access to the reporting endpoints without a
// browser session. Only the SHA-256 hash of the key is stored; the plaintext
// is shown once at creation time.
type APIKey struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	Name       string     `json:"name"`
	KeyHash    string     `json:"-"`
	KeyPrefix  string     `json:"key_prefix"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// HashAPIKey returns the hex-encoded SHA-256 digest used for storage and lookup.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// CreateAPIKey inserts a new key record.
func CreateAPIKey(db *sql.DB, k *APIKey) error {
	query := `
	INSERT INTO api_keys (user_id, name, key_hash, key_prefix, created_at)
	VALUES (?, ?, ?, ?, ?)`
	stmt, err := db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	k.CreatedAt = time.Now()
	res, err := stmt.Exec(k.UserID, k.Name, k.KeyHash, k.KeyPrefix, k.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	k.ID = id
	return nil
}

// GetAPIKeyByHash resolves a presented key to its record and stamps last use.
func GetAPIKeyByHash(db *sql.DB, keyHash string) (*APIKey, error) {
	query := `
	SELECT id, user_id, name, key_hash, key_prefix, last_used_at, created_at
	FROM api_keys
	WHERE key_hash = ?`

	row := db.QueryRow(query, keyHash)
	var k APIKey
	err := row.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.LastUsedAt, &k.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New("api key not found")
		}
		return nil, err
	}

	if _, err := db.Exec("UPDATE api_keys SET last_used_at = ? WHERE id = ?", time.Now(), k.ID); err != nil {
		return nil, err
	}
	return &k, nil
}

// ListAPIKeysByUser returns all of a user's keys, newest first.
func ListAPIKeysByUser(db *sql.DB, userID int64) ([]APIKey, error) {
	query := `
	SELECT id, user_id, name, key_hash, key_prefix, last_used_at, created_at
	FROM api_keys
	WHERE user_id = ?
	ORDER BY created_at DESC`

	rows, err := db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := []APIKey{}
	for rows.Next() {
		var k APIKey
		if err := rows.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.LastUsedAt, &k.CreatedAt); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// DeleteAPIKey removes one of the user's keys. Scoping by user id prevents
// deleting another user's key by id.
func DeleteAPIKey(db *sql.DB, userID, keyID int64) error {
	res, err := db.Exec("DELETE FROM api_keys WHERE id = ? AND user_id = ?", keyID, userID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.New("api key not found")
	}
	return nil
}
