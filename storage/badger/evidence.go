package badger

import (
	"context"
	"fmt"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/counsel/core"
	"github.com/poiesic/counsel/storage"
)

// EvidenceRepository implements storage.EvidenceRepository for BadgerDB.
type EvidenceRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.EvidenceRepository = (*EvidenceRepository)(nil)

// NewEvidenceRepository creates a new EvidenceRepository.
func NewEvidenceRepository(backend *Backend) (*EvidenceRepository, error) {
	idSeq, err := backend.GetSequence(evidenceIDSeq)
	if err != nil {
		return nil, err
	}

	return &EvidenceRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *EvidenceRepository) Close() error {
	return r.idSeq.Release()
}

// AddEvidence stores evidence records and indexes them under their message.
// The owning message must already exist.
func (r *EvidenceRepository) AddEvidence(ctx context.Context, evidence ...*core.Evidence) ([]*core.Evidence, error) {
	for _, ev := range evidence {
		if err := core.ValidateEvidence(ev); err != nil {
			return nil, err
		}
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		checked := make(map[core.ID]bool)
		for _, ev := range evidence {
			if !checked[ev.MessageId] {
				if _, err := tx.Get(makeMessageKey(ev.MessageId)); err != nil {
					if err == badger.ErrKeyNotFound {
						return fmt.Errorf("%w: message %d", storage.ErrNotFound, ev.MessageId)
					}
					return err
				}
				checked[ev.MessageId] = true
			}

			id, err := nextID(r.idSeq)
			if err != nil {
				return err
			}
			ev.Id = id
			ev.CreatedAt = storage.Now()

			if err := tx.Set(makeEvidenceKey(ev.Id), storage.MarshalEvidence(ev)); err != nil {
				return err
			}
			if err := tx.Set(makeMessageEvidenceKey(ev.MessageId, ev.Id), storage.MarshalID(ev.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	if err != nil {
		return nil, err
	}
	return evidence, nil
}

// GetEvidenceForMessage returns a message's evidence, most similar first.
func (r *EvidenceRepository) GetEvidenceForMessage(ctx context.Context, messageID core.ID) ([]*core.Evidence, error) {
	var results []*core.Evidence

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialMessageEvidenceKey(messageID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Index keys end in the evidence ID, so this visits insertion order
		for iter.Rewind(); iter.Valid(); iter.Next() {
			var id core.ID
			err := iter.Item().Value(func(val []byte) error {
				var err error
				id, err = storage.UnmarshalID(val)
				return err
			})
			if err != nil {
				return err
			}

			ev, err := readEvidence(tx, makeEvidenceKey(id))
			if err != nil {
				return err
			}
			if ev != nil {
				results = append(results, ev)
			}
		}
		return nil
	}, false)

	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(results, func(a, b *core.Evidence) int {
		if a.SimilarityScore > b.SimilarityScore {
			return -1
		}
		if a.SimilarityScore < b.SimilarityScore {
			return 1
		}
		return 0
	})
	return results, nil
}

// readEvidence reads an evidence record, returning nil if it doesn't exist.
func readEvidence(tx *badger.Txn, key []byte) (*core.Evidence, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var ev *core.Evidence
	err = item.Value(func(val []byte) error {
		var err error
		ev, err = storage.UnmarshalEvidence(val)
		return err
	})
	return ev, err
}
