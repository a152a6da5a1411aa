// Package session persists the single local session token between process
// runs. The token is opaque: the store never inspects it, only holds it.
package session

import (
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketName = []byte("session")
	tokenKey   = []byte("token")
)

// Store is a bolt-backed single-slot token store. Save overwrites, Load
// before any Save returns empty, Clear is idempotent.
type Store struct {
	db *bbolt.DB
}

// Open creates or opens the store file at path. The file is created with
// owner-only permissions since it holds a bearer credential.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores the token, replacing any previous value.
func (s *Store) Save(token string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}
		return b.Put(tokenKey, []byte(token))
	})
	if err != nil {
		return fmt.Errorf("save session token: %w", err)
	}
	return nil
}

// Load returns the stored token, or empty string if none is stored.
func (s *Store) Load() (string, error) {
	var token string
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		if data := b.Get(tokenKey); data != nil {
			token = string(data)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("load session token: %w", err)
	}
	return token, nil
}

// Clear removes the stored token. Clearing an empty store is not an error.
func (s *Store) Clear() error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		return b.Delete(tokenKey)
	})
	if err != nil {
		return fmt.Errorf("clear session token: %w", err)
	}
	return nil
}
