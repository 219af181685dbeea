package badger

import "errors"

// Repositories bundles every BadgerDB repository sharing one backend.
type Repositories struct {
	Backend   *Backend
	Sessions  *SessionRepository
	Messages  *MessageRepository
	Evidence  *EvidenceRepository
	Documents *DocumentRepository
	Chunks    *ChunkRepository
	Cache     *CacheStore
}

// OpenRepositories opens the database at filePath and creates all repositories.
// Caller must Close the result when done.
func OpenRepositories(filePath string, inMemory bool) (*Repositories, error) {
	backend, err := OpenBackend(filePath, inMemory)
	if err != nil {
		return nil, err
	}

	repos := &Repositories{
		Backend:  backend,
		Sessions: NewSessionRepository(backend),
		Cache:    NewCacheStore(backend),
	}

	if repos.Messages, err = NewMessageRepository(backend); err != nil {
		repos.Close()
		return nil, err
	}
	if repos.Evidence, err = NewEvidenceRepository(backend); err != nil {
		repos.Close()
		return nil, err
	}
	if repos.Documents, err = NewDocumentRepository(backend); err != nil {
		repos.Close()
		return nil, err
	}
	if repos.Chunks, err = NewChunkRepository(backend); err != nil {
		repos.Close()
		return nil, err
	}

	return repos, nil
}

// Close releases every repository and then the backend.
func (r *Repositories) Close() error {
	var errs []error
	if r.Chunks != nil {
		errs = append(errs, r.Chunks.Close())
	}
	if r.Documents != nil {
		errs = append(errs, r.Documents.Close())
	}
	if r.Evidence != nil {
		errs = append(errs, r.Evidence.Close())
	}
	if r.Messages != nil {
		errs = append(errs, r.Messages.Close())
	}
	if err := r.Backend.Close(); err != nil {
		r.Backend.logger.Error("error closing backend storage", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
