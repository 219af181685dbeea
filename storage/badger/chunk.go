package badger

import (
	"context"
	"encoding/binary"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/counsel/core"
	"github.com/poiesic/counsel/storage"
)

// ChunkRepository implements storage.ChunkRepository for BadgerDB.
type ChunkRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// NewChunkRepository creates a new ChunkRepository.
func NewChunkRepository(backend *Backend) (*ChunkRepository, error) {
	idSeq, err := backend.GetSequence(chunkIDSeq)
	if err != nil {
		return nil, err
	}

	return &ChunkRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *ChunkRepository) Close() error {
	return r.idSeq.Release()
}

// FindSimilar delegates to the backend.
func (r *ChunkRepository) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.ChunkMatch, error) {
	return r.backend.FindSimilar(ctx, vector, minSimilarity, limit)
}

// ReplaceChunks drops the existing chunks of a document and stores the new set.
func (r *ChunkRepository) ReplaceChunks(ctx context.Context, documentID core.ID, chunks ...*core.Chunk) ([]*core.Chunk, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		// Collect old chunk IDs before mutating the transaction
		var oldIDs []core.ID
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = makePartialDocumentChunkKey(documentID)
		iter := tx.NewIterator(opts)
		for iter.Rewind(); iter.Valid(); iter.Next() {
			key := iter.Item().KeyCopy(nil)
			oldIDs = append(oldIDs, chunkIDFromIndexKey(key))
		}
		iter.Close()

		for _, id := range oldIDs {
			if err := tx.Delete(makeChunkKey(id)); err != nil {
				return err
			}
			if err := tx.Delete(makeDocumentChunkKey(documentID, id)); err != nil {
				return err
			}
		}

		for _, chunk := range chunks {
			id, err := nextID(r.idSeq)
			if err != nil {
				return err
			}
			chunk.Id = id
			chunk.DocumentId = documentID

			if err := tx.Set(makeChunkKey(chunk.Id), storage.MarshalChunk(chunk)); err != nil {
				return err
			}
			if err := tx.Set(makeDocumentChunkKey(documentID, chunk.Id), nil); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// UpdateChunks overwrites existing chunks.
func (r *ChunkRepository) UpdateChunks(ctx context.Context, chunks ...*core.Chunk) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, chunk := range chunks {
			key := makeChunkKey(chunk.Id)
			if _, err := tx.Get(key); err != nil {
				if err == badger.ErrKeyNotFound {
					return storage.ErrNotFound
				}
				return err
			}
			if err := tx.Set(key, storage.MarshalChunk(chunk)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// CountChunks counts stored chunks using a key-only scan.
func (r *ChunkRepository) CountChunks(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(chunkPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// ForEachChunkBatch hands chunks to fn in ID-ordered batches.
// Each batch is read in its own transaction so fn may write back.
func (r *ChunkRepository) ForEachChunkBatch(ctx context.Context, batchSize int, fn func(chunks []*core.Chunk) error) error {
	if batchSize <= 0 {
		return storage.ErrInvalidQuery
	}

	prefix := []byte(chunkPrefix + ":")
	cursor := prefix
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var batch []*core.Chunk
		err := r.backend.WithTx(func(tx *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			iter := tx.NewIterator(opts)
			defer iter.Close()

			for iter.Seek(cursor); iter.Valid() && len(batch) < batchSize; iter.Next() {
				var chunk *core.Chunk
				err := iter.Item().Value(func(val []byte) error {
					var err error
					chunk, err = storage.UnmarshalChunk(val)
					return err
				})
				if err != nil {
					return err
				}
				batch = append(batch, chunk)
			}
			return nil
		}, false)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		if err := fn(batch); err != nil {
			return err
		}
		if len(batch) < batchSize {
			return nil
		}
		// Resume just after the last chunk of this batch
		cursor = makeChunkKey(batch[len(batch)-1].Id + 1)
	}
}

// chunkIDFromIndexKey extracts the chunk ID from a document chunk index key.
func chunkIDFromIndexKey(key []byte) core.ID {
	return core.ID(binary.BigEndian.Uint64(key[len(key)-8:]))
}
