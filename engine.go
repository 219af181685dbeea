// Package counsel wires the retrieval-augmented question answering engine:
// storage, keyword index, answer cache, generation backend and the services
// built on them.
package counsel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/counsel/ai"
	"github.com/poiesic/counsel/ai/openai"
	"github.com/poiesic/counsel/backend"
	"github.com/poiesic/counsel/backend/httpclient"
	"github.com/poiesic/counsel/backend/local"
	"github.com/poiesic/counsel/cache"
	"github.com/poiesic/counsel/cache/rediscache"
	"github.com/poiesic/counsel/cache/sqlitecache"
	"github.com/poiesic/counsel/chat"
	"github.com/poiesic/counsel/config"
	"github.com/poiesic/counsel/documents"
	"github.com/poiesic/counsel/index"
	"github.com/poiesic/counsel/reembed"
	"github.com/poiesic/counsel/search"
	"github.com/poiesic/counsel/server"
	"github.com/poiesic/counsel/storage/badger"
	"github.com/poiesic/counsel/stream"
	"github.com/poiesic/counsel/telemetry"
)

var (
	// ErrConfigRequired is returned when Open is called without a configuration.
	ErrConfigRequired = errors.New("configuration required")

	// ErrNoEmbedder is returned when reembedding is requested without an AI provider.
	ErrNoEmbedder = errors.New("reembedding requires the local backend")
)

// Engine owns every long-lived component of a running instance.
type Engine struct {
	cfg       *config.Config
	repos     *badger.Repositories
	keyword   *index.Bleve
	responses *cache.ResponseCache
	provider  ai.AIProvider
	backend   backend.Backend
	documents *documents.Service
	chat      *chat.Service
	searcher  *search.Searcher
	streamer  *stream.Streamer
	metrics   *telemetry.Metrics
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// WithMetrics shares a metrics set with every component.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Engine) error {
		e.metrics = m
		return nil
	}
}

// WithAIProvider replaces the OpenAI-compatible provider used by the local backend.
func WithAIProvider(p ai.AIProvider) Option {
	return func(e *Engine) error {
		e.provider = p
		return nil
	}
}

// WithBackend replaces the backend selected by the configuration.
func WithBackend(be backend.Backend) Option {
	return func(e *Engine) error {
		e.backend = be
		return nil
	}
}

// Open builds an engine from cfg. Caller must Close the result when done.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	if err := e.open(ctx); err != nil {
		e.Close()
		return nil, err
	}
	e.logger.Info("engine ready",
		"backend", cfg.Backend.Mode,
		"cache", cacheDescription(cfg.Cache),
		"inMemory", cfg.Storage.InMemory)
	return e, nil
}

func (e *Engine) open(ctx context.Context) error {
	cfg := e.cfg
	var err error

	if e.repos, err = badger.OpenRepositories(cfg.Storage.Path, cfg.Storage.InMemory); err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	if cfg.Storage.InMemory {
		e.keyword, err = index.NewMemOnly()
	} else {
		e.keyword, err = index.Open(cfg.Storage.IndexPath)
	}
	if err != nil {
		return fmt.Errorf("open keyword index: %w", err)
	}

	if e.responses, err = e.openCache(ctx); err != nil {
		return fmt.Errorf("open cache: %w", err)
	}

	e.documents, err = documents.NewService(e.repos.Documents, e.keyword,
		documents.WithLogger(e.logger))
	if err != nil {
		return err
	}

	if e.backend == nil {
		if e.backend, err = e.openBackend(); err != nil {
			return fmt.Errorf("open backend: %w", err)
		}
	}
	e.documents.SetBackend(e.backend)

	chatOpts := []chat.Option{
		chat.WithDefaultModel(cfg.Backend.DefaultModel),
		chat.WithMetrics(e.metrics),
		chat.WithLogger(e.logger),
	}
	if e.responses != nil {
		chatOpts = append(chatOpts, chat.WithCache(e.responses))
	}
	e.chat, err = chat.NewService(e.repos.Sessions, e.repos.Messages, e.repos.Evidence,
		e.repos.Documents, e.backend, chatOpts...)
	if err != nil {
		return err
	}

	e.searcher, err = search.NewSearcher(e.keyword, e.repos.Documents, e.backend,
		search.WithMetrics(e.metrics),
		search.WithLogger(e.logger))
	if err != nil {
		return err
	}

	e.streamer, err = stream.NewStreamer(e.chat,
		stream.WithPoolSize(cfg.Server.StreamPoolSize),
		stream.WithDelay(cfg.Server.StreamDelay),
		stream.WithLifetime(cfg.Server.StreamLifetime),
		stream.WithMetrics(e.metrics),
		stream.WithLogger(e.logger))
	return err
}

// openCache returns nil when the cache is disabled.
func (e *Engine) openCache(ctx context.Context) (*cache.ResponseCache, error) {
	cc := e.cfg.Cache
	if !cc.Enabled {
		return nil, nil
	}

	var store cache.Store
	switch cc.Store {
	case config.CacheBadger:
		store = e.repos.Cache
	case config.CacheMemory:
		store = cache.NewMemoryStore()
	case config.CacheRedis:
		rs, err := rediscache.Open(ctx, rediscache.Options{
			Addr:     cc.Redis.Addr,
			Password: cc.Redis.Password,
			DB:       cc.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		store = rs
	case config.CacheSQLite:
		ss, err := sqlitecache.Open(cc.SQLitePath)
		if err != nil {
			return nil, err
		}
		store = ss
	default:
		return nil, fmt.Errorf("unknown cache store %q", cc.Store)
	}

	responses, err := cache.New(store, cache.WithTTL(cc.TTL), cache.WithLogger(e.logger))
	if err != nil {
		store.Close()
		return nil, err
	}
	return responses, nil
}

func (e *Engine) openBackend() (backend.Backend, error) {
	bc := e.cfg.Backend
	timeouts := backend.Timeouts{
		Parse:  bc.ParseTimeout,
		Search: bc.SearchTimeout,
		Ask:    bc.AskTimeout,
	}.WithDefaults()

	switch bc.Mode {
	case config.BackendHTTP:
		client, err := httpclient.New(bc.URL,
			httpclient.WithTimeouts(timeouts),
			httpclient.WithMetrics(e.metrics),
			httpclient.WithLogger(e.logger))
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.BackendLocal:
		if e.provider == nil {
			provider, err := openai.NewProvider(e.cfg.AI.Config())
			if err != nil {
				return nil, err
			}
			e.provider = provider
		}
		rc := e.cfg.Retrieval
		be, err := local.New(e.repos.Chunks, e.provider.Embedder(), e.provider.Generator(),
			local.WithStatusFunc(e.documents.UpdateParseStatus),
			local.WithTimeouts(timeouts),
			local.WithTopK(rc.TopK),
			local.WithMinSimilarity(rc.MinSimilarity),
			local.WithChunking(rc.ChunkSize, rc.ChunkOverlap),
			local.WithWorkers(rc.ParseWorkers),
			local.WithModelName(e.cfg.AI.GenerationModel),
			local.WithMetrics(e.metrics),
			local.WithLogger(e.logger))
		if err != nil {
			return nil, err
		}
		return be, nil
	default:
		return nil, fmt.Errorf("unknown backend mode %q", bc.Mode)
	}
}

// Chat returns the question answering service.
func (e *Engine) Chat() *chat.Service {
	return e.chat
}

// Searcher returns the hybrid searcher.
func (e *Engine) Searcher() *search.Searcher {
	return e.searcher
}

// Documents returns the document workflow service.
func (e *Engine) Documents() *documents.Service {
	return e.documents
}

// Streamer returns the progressive delivery channel.
func (e *Engine) Streamer() *stream.Streamer {
	return e.streamer
}

// NewServer creates the HTTP server over the engine's services.
func (e *Engine) NewServer(opts ...server.Option) (*server.Server, error) {
	sc := e.cfg.Server
	base := []server.Option{
		server.WithMetrics(e.metrics),
		server.WithLimits(server.Limits{
			Search:   sc.SearchLimit,
			History:  sc.HistoryLimit,
			Sessions: sc.SessionLimit,
		}),
		server.WithLogger(e.logger),
	}
	return server.New(e.chat, e.streamer, e.searcher, e.documents, append(base, opts...)...)
}

// NewReembedder creates a reembedder over the stored chunks using the
// engine's embedder. progress may be nil.
func (e *Engine) NewReembedder(cfg *reembed.Config, progress io.Writer) (*reembed.Reembedder, error) {
	if e.provider == nil {
		return nil, ErrNoEmbedder
	}
	return reembed.NewReembedder(e.repos.Chunks, e.provider.Embedder(), cfg, progress)
}

// Close releases components in reverse order of construction.
func (e *Engine) Close() error {
	var errs []error
	if e.streamer != nil {
		errs = append(errs, e.streamer.Close())
	}
	if e.backend != nil {
		errs = append(errs, e.backend.Close())
	}
	if e.provider != nil {
		errs = append(errs, e.provider.Close())
	}
	if e.responses != nil {
		errs = append(errs, e.responses.Close())
	}
	if e.keyword != nil {
		errs = append(errs, e.keyword.Close())
	}
	if e.repos != nil {
		errs = append(errs, e.repos.Close())
	}
	err := errors.Join(errs...)
	if err != nil {
		e.logger.Error("error closing engine", "err", err)
	}
	return err
}

func cacheDescription(cc config.CacheConfig) string {
	if !cc.Enabled {
		return "disabled"
	}
	return cc.Store
}
