package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/counsel/cache"
)

// CacheStore implements cache.Store on the shared BadgerDB instance.
// Expiry is delegated to BadgerDB's per-entry TTL.
type CacheStore struct {
	backend *Backend
}

var _ cache.Store = (*CacheStore)(nil)

// NewCacheStore creates a cache store backed by BadgerDB.
func NewCacheStore(backend *Backend) *CacheStore {
	return &CacheStore{backend: backend}
}

// Get returns the live value stored under key.
func (s *CacheStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeCacheKey(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	}, false)

	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set stores value under key; a zero ttl never expires.
func (s *CacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		entry := badger.NewEntry(makeCacheKey(key), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		if err := tx.SetEntry(entry); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Close is a no-op; the backend owns the database handle.
func (s *CacheStore) Close() error {
	return nil
}
