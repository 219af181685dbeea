package badger

import (
	"context"
	"fmt"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/counsel/core"
	"github.com/poiesic/counsel/storage"
)

// MessageRepository implements storage.MessageRepository for BadgerDB.
type MessageRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.MessageRepository = (*MessageRepository)(nil)

// NewMessageRepository creates a new MessageRepository.
func NewMessageRepository(backend *Backend) (*MessageRepository, error) {
	idSeq, err := backend.GetSequence(messageIDSeq)
	if err != nil {
		return nil, err
	}

	return &MessageRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *MessageRepository) Close() error {
	return r.idSeq.Release()
}

// AddMessages appends messages to their sessions' logs.
func (r *MessageRepository) AddMessages(ctx context.Context, messages ...*core.Message) ([]*core.Message, error) {
	for _, msg := range messages {
		if err := core.ValidateMessage(msg); err != nil {
			return nil, err
		}
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, msg := range messages {
			id, err := nextID(r.idSeq)
			if err != nil {
				return err
			}
			msg.Id = id
			msg.CreatedAt = storage.Now()

			if err := tx.Set(makeMessageKey(msg.Id), storage.MarshalMessage(msg)); err != nil {
				return err
			}

			// Update session index
			indexKey := makeSessionMessageKey(msg.SessionId, msg.CreatedAt, msg.Id)
			if err := tx.Set(indexKey, storage.MarshalID(msg.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	if err != nil {
		return nil, err
	}
	return messages, nil
}

// GetMessage retrieves a single message by ID.
func (r *MessageRepository) GetMessage(ctx context.Context, id core.ID) (*core.Message, error) {
	var result *core.Message
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readMessage(tx, makeMessageKey(id))
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

// GetRecentMessages walks the session index backwards from the newest message
// and returns the collected page in creation order.
func (r *MessageRepository) GetRecentMessages(ctx context.Context, sessionID string, limit int) ([]*core.Message, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %w", storage.ErrInvalidQuery, core.ErrInvalidLimit)
	}

	var results []*core.Message
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makePartialSessionMessageKey(sessionID)
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(seekPastPrefix(prefix)); iter.Valid() && len(results) < limit; iter.Next() {
			var id core.ID
			err := iter.Item().Value(func(val []byte) error {
				var err error
				id, err = storage.UnmarshalID(val)
				return err
			})
			if err != nil {
				return err
			}

			msg, err := readMessage(tx, makeMessageKey(id))
			if err != nil {
				return err
			}
			if msg == nil {
				continue
			}
			// Guard against hash collisions between session identifiers
			if msg.SessionId != sessionID {
				continue
			}
			results = append(results, msg)
		}
		return nil
	}, false)

	if err != nil {
		return nil, err
	}

	slices.Reverse(results)
	return results, nil
}

// readMessage reads a message, returning nil if it doesn't exist.
func readMessage(tx *badger.Txn, key []byte) (*core.Message, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var msg *core.Message
	err = item.Value(func(val []byte) error {
		var err error
		msg, err = storage.UnmarshalMessage(val)
		return err
	})
	return msg, err
}
