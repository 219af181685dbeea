package badger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/counsel/core"
	"github.com/poiesic/counsel/storage"
)

// SessionRepository implements storage.SessionRepository for BadgerDB.
type SessionRepository struct {
	backend *Backend
}

var _ storage.SessionRepository = (*SessionRepository)(nil)

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(backend *Backend) *SessionRepository {
	return &SessionRepository{backend: backend}
}

// Close is a no-op; the backend owns the database handle.
func (r *SessionRepository) Close() error {
	return nil
}

// EnsureSession returns the existing session or creates it.
// Concurrent creators of the same identifier conflict inside BadgerDB and the
// loser retries, observing the winner's session.
func (r *SessionRepository) EnsureSession(ctx context.Context, id string, template *core.Session) (*core.Session, error) {
	if id == "" {
		return nil, core.ErrEmptySessionID
	}

	var result *core.Session
	for {
		err := r.backend.WithTx(func(tx *badger.Txn) error {
			existing, err := readSession(tx, makeSessionKey(id))
			if err != nil {
				return err
			}
			if existing != nil {
				result = existing
				return nil
			}

			now := storage.Now()
			session := &core.Session{
				Id:            id,
				Title:         core.DefaultSessionTitle,
				CreatedAt:     now,
				UpdatedAt:     now,
				LastMessageAt: now,
			}
			if template != nil {
				session.UserId = template.UserId
				if template.Title != "" {
					session.Title = template.Title
				}
			}
			if err := writeSession(tx, session); err != nil {
				return err
			}
			if err := tx.Commit(); err != nil {
				return err
			}
			result = session
			return nil
		}, true)

		if errors.Is(err, badger.ErrConflict) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
}

// GetSession retrieves a session by identifier.
func (r *SessionRepository) GetSession(ctx context.Context, id string) (*core.Session, error) {
	var result *core.Session
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readSession(tx, makeSessionKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// TouchSession moves the session's activity timestamps to now.
func (r *SessionRepository) TouchSession(ctx context.Context, id string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeSessionKey(id)
		session, err := readSession(tx, key)
		if err != nil {
			return err
		}
		if session == nil {
			return storage.ErrNotFound
		}

		if err := tx.Delete(makeSessionActivityKey(session.LastMessageAt, session.Id)); err != nil {
			return err
		}

		now := storage.Now()
		session.LastMessageAt = now
		session.UpdatedAt = now
		if err := writeSession(tx, session); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetRecentSessions returns sessions ordered by last activity, newest first.
func (r *SessionRepository) GetRecentSessions(ctx context.Context, limit int) ([]*core.Session, error) {
	var results []*core.Session

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := []byte(sessionActivityPrefix + ":")
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(seekPastPrefix(prefix)); iter.Valid() && len(results) < limit; iter.Next() {
			var sessionID string
			err := iter.Item().Value(func(val []byte) error {
				sessionID = string(val)
				return nil
			})
			if err != nil {
				return err
			}

			session, err := readSession(tx, makeSessionKey(sessionID))
			if err != nil {
				return err
			}
			if session == nil {
				r.backend.logger.Warn("dangling session activity index entry", "session", sessionID)
				continue
			}
			results = append(results, session)
		}
		return nil
	}, false)

	return results, err
}

// writeSession stores the session record and its activity index entry.
func writeSession(tx *badger.Txn, session *core.Session) error {
	if err := tx.Set(makeSessionKey(session.Id), storage.MarshalSession(session)); err != nil {
		return err
	}
	return tx.Set(makeSessionActivityKey(session.LastMessageAt, session.Id), []byte(session.Id))
}

// readSession reads a session, returning nil if it doesn't exist.
func readSession(tx *badger.Txn, key []byte) (*core.Session, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var session *core.Session
	err = item.Value(func(val []byte) error {
		var err error
		session, err = storage.UnmarshalSession(val)
		return err
	})
	return session, err
}
