package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/poiesic/counsel/core"
	"github.com/poiesic/counsel/storage"
)

// DefaultTTL is how long answers live when no TTL is configured.
const DefaultTTL = time.Hour

// Store is a byte-level key/value store with expiry.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value under key and whether a live entry existed.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key. A zero ttl never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	Close() error
}

// ResponseCache stores generated answers by question.
// A nil *ResponseCache is a disabled cache: it misses on every lookup and
// drops every write.
type ResponseCache struct {
	store  Store
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures a ResponseCache.
type Option func(*ResponseCache) error

// WithTTL sets the entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *ResponseCache) error {
		if ttl < 0 {
			return ErrInvalidTTL
		}
		c.ttl = ttl
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *ResponseCache) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

// New creates a ResponseCache over store.
func New(store Store, opts ...Option) (*ResponseCache, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	c := &ResponseCache{
		store:  store,
		ttl:    DefaultTTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.logger = c.logger.With("component", "response-cache")
	return c, nil
}

// Enabled reports whether lookups and writes reach the store.
func (c *ResponseCache) Enabled() bool {
	return c != nil
}

// Lookup returns the live answer cached for question, if any.
func (c *ResponseCache) Lookup(ctx context.Context, question string) (*core.CachedAnswer, bool, error) {
	if !c.Enabled() {
		return nil, false, nil
	}
	key := Key(question)
	data, ok, err := c.store.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	answer, err := storage.UnmarshalCachedAnswer(data)
	if err != nil {
		return nil, false, err
	}
	c.logger.Debug("cache hit", "key", key)
	return answer, true, nil
}

// Save caches answer for question with the configured TTL.
func (c *ResponseCache) Save(ctx context.Context, question string, answer *core.CachedAnswer) error {
	if !c.Enabled() {
		return nil
	}
	return c.store.Set(ctx, Key(question), storage.MarshalCachedAnswer(answer), c.ttl)
}

// Close closes the underlying store.
func (c *ResponseCache) Close() error {
	if c == nil {
		return nil
	}
	return c.store.Close()
}
