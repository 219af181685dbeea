// Package config loads process configuration from a YAML file and COUNSEL_
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/counsel/ai"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. COUNSEL_SERVER_ADDRESS.
const EnvPrefix = "COUNSEL"

// Backend modes.
const (
	BackendLocal = "local"
	BackendHTTP  = "http"
)

// Cache stores.
const (
	CacheBadger = "badger"
	CacheRedis  = "redis"
	CacheSQLite = "sqlite"
	CacheMemory = "memory"
)

// Config holds all configuration for the counsel service.
type Config struct {
	LogLevel  string          `mapstructure:"log_level"`
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Backend   BackendConfig   `mapstructure:"backend"`
	AI        AIConfig        `mapstructure:"ai"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
}

// ServerConfig contains HTTP and streaming settings.
type ServerConfig struct {
	Address        string        `mapstructure:"address"`
	StreamPoolSize int           `mapstructure:"stream_pool_size"`
	StreamDelay    time.Duration `mapstructure:"stream_delay"`
	StreamLifetime time.Duration `mapstructure:"stream_lifetime"`
	SearchLimit    int           `mapstructure:"search_limit"`
	HistoryLimit   int           `mapstructure:"history_limit"`
	SessionLimit   int           `mapstructure:"session_limit"`
}

// StorageConfig locates the database and keyword index.
type StorageConfig struct {
	Path      string `mapstructure:"path"`
	InMemory  bool   `mapstructure:"in_memory"`
	IndexPath string `mapstructure:"index_path"`
}

// CacheConfig controls the answer cache.
type CacheConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Store      string        `mapstructure:"store"`
	TTL        time.Duration `mapstructure:"ttl"`
	Redis      RedisConfig   `mapstructure:"redis"`
	SQLitePath string        `mapstructure:"sqlite_path"`
}

// RedisConfig contains redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// BackendConfig selects and tunes the generation backend.
type BackendConfig struct {
	Mode          string        `mapstructure:"mode"`
	URL           string        `mapstructure:"url"`
	DefaultModel  string        `mapstructure:"default_model"`
	ParseTimeout  time.Duration `mapstructure:"parse_timeout"`
	SearchTimeout time.Duration `mapstructure:"search_timeout"`
	AskTimeout    time.Duration `mapstructure:"ask_timeout"`
}

// AIConfig configures the model endpoints used by the local backend.
type AIConfig struct {
	EmbeddingHost   string  `mapstructure:"embedding_host"`
	GenerationHost  string  `mapstructure:"generation_host"`
	APIKey          string  `mapstructure:"api_key"`
	EmbeddingModel  string  `mapstructure:"embedding_model"`
	GenerationModel string  `mapstructure:"generation_model"`
	Temperature     float64 `mapstructure:"temperature"`
}

// RetrievalConfig tunes chunking and retrieval in the local backend.
type RetrievalConfig struct {
	TopK          int     `mapstructure:"top_k"`
	MinSimilarity float32 `mapstructure:"min_similarity"`
	ChunkSize     int     `mapstructure:"chunk_size"`
	ChunkOverlap  int     `mapstructure:"chunk_overlap"`
	ParseWorkers  int     `mapstructure:"parse_workers"`
}

func setDefaults(v *viper.Viper) {
	aiDefaults := ai.DefaultConfig()

	v.SetDefault("log_level", "info")

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.stream_pool_size", 64)
	v.SetDefault("server.stream_delay", 20*time.Millisecond)
	v.SetDefault("server.stream_lifetime", 60*time.Second)
	v.SetDefault("server.search_limit", 10)
	v.SetDefault("server.history_limit", 50)
	v.SetDefault("server.session_limit", 20)

	v.SetDefault("storage.path", "./data/counsel")
	v.SetDefault("storage.in_memory", false)
	v.SetDefault("storage.index_path", "./data/counsel.bleve")

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.store", CacheBadger)
	v.SetDefault("cache.ttl", time.Hour)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.sqlite_path", "./data/cache.db")

	v.SetDefault("backend.mode", BackendLocal)
	v.SetDefault("backend.url", "http://localhost:8000")
	v.SetDefault("backend.default_model", "gpt-3.5-turbo")
	v.SetDefault("backend.parse_timeout", 5*time.Second)
	v.SetDefault("backend.search_timeout", 10*time.Second)
	v.SetDefault("backend.ask_timeout", 30*time.Second)

	v.SetDefault("ai.embedding_host", aiDefaults.EmbeddingHost)
	v.SetDefault("ai.generation_host", aiDefaults.GenerationHost)
	v.SetDefault("ai.api_key", aiDefaults.APIKey)
	v.SetDefault("ai.embedding_model", aiDefaults.EmbeddingModel)
	v.SetDefault("ai.generation_model", aiDefaults.GenerationModel)
	v.SetDefault("ai.temperature", aiDefaults.Temperature)

	v.SetDefault("retrieval.top_k", 5)
	v.SetDefault("retrieval.min_similarity", 0.3)
	v.SetDefault("retrieval.chunk_size", 3000)
	v.SetDefault("retrieval.chunk_overlap", 50)
	v.SetDefault("retrieval.parse_workers", 2)
}

// Load reads configuration from path, or from counsel.yaml in the working
// directory or ./config when path is empty. A missing default file is not an
// error. Environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("counsel")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.Backend.Validate(); err != nil {
		return err
	}
	if c.Backend.Mode == BackendLocal {
		if err := c.AI.Config().Validate(); err != nil {
			return fmt.Errorf("ai: %w", err)
		}
		if err := c.Retrieval.Validate(); err != nil {
			return err
		}
	}
	if !c.Storage.InMemory && strings.TrimSpace(c.Storage.Path) == "" {
		return errors.New("storage.path is required unless storage.in_memory is set")
	}
	return nil
}

func (s ServerConfig) Validate() error {
	if strings.TrimSpace(s.Address) == "" {
		return errors.New("server.address is required")
	}
	if s.StreamPoolSize <= 0 {
		return errors.New("server.stream_pool_size must be greater than zero")
	}
	if s.StreamDelay < 0 {
		return errors.New("server.stream_delay cannot be negative")
	}
	if s.StreamLifetime <= 0 {
		return errors.New("server.stream_lifetime must be greater than zero")
	}
	if s.SearchLimit <= 0 || s.HistoryLimit <= 0 || s.SessionLimit <= 0 {
		return errors.New("server default limits must be greater than zero")
	}
	return nil
}

func (c CacheConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.TTL <= 0 {
		return errors.New("cache.ttl must be greater than zero")
	}
	switch c.Store {
	case CacheBadger, CacheMemory:
	case CacheRedis:
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return errors.New("cache.redis.addr is required for the redis store")
		}
	case CacheSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return errors.New("cache.sqlite_path is required for the sqlite store")
		}
	default:
		return fmt.Errorf("unknown cache.store %q", c.Store)
	}
	return nil
}

func (b BackendConfig) Validate() error {
	switch b.Mode {
	case BackendLocal:
	case BackendHTTP:
		if strings.TrimSpace(b.URL) == "" {
			return errors.New("backend.url is required for the http backend")
		}
	default:
		return fmt.Errorf("unknown backend.mode %q", b.Mode)
	}
	if strings.TrimSpace(b.DefaultModel) == "" {
		return errors.New("backend.default_model is required")
	}
	return nil
}

func (r RetrievalConfig) Validate() error {
	if r.TopK <= 0 {
		return errors.New("retrieval.top_k must be greater than zero")
	}
	if r.ChunkSize <= 0 || r.ChunkOverlap < 0 || r.ChunkOverlap >= r.ChunkSize {
		return errors.New("retrieval.chunk_overlap must be smaller than a positive retrieval.chunk_size")
	}
	if r.ParseWorkers <= 0 {
		return errors.New("retrieval.parse_workers must be greater than zero")
	}
	return nil
}

// Config converts the settings into a normalized ai.Config.
func (a AIConfig) Config() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(a.EmbeddingHost),
		ai.WithGenerationHost(a.GenerationHost),
		ai.WithAPIKey(a.APIKey),
		ai.WithEmbeddingModel(a.EmbeddingModel),
		ai.WithGenerationModel(a.GenerationModel),
		ai.WithTemperature(a.Temperature),
	)
}
