package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/counsel/chat"
	"github.com/poiesic/counsel/telemetry"
)

const (
	// DefaultPoolSize bounds the number of concurrent streams.
	DefaultPoolSize = 64

	// DefaultDelay separates consecutive message events.
	DefaultDelay = 20 * time.Millisecond

	// DefaultLifetime bounds a single stream from start to last event.
	DefaultLifetime = 60 * time.Second

	// terminalGrace bounds how long a final error event waits for the consumer.
	terminalGrace = time.Second
)

// LifetimeExceeded is the error text sent when a stream runs out of time.
const LifetimeExceeded = "stream lifetime exceeded"

// Asker answers questions. *chat.Service implements it.
type Asker interface {
	Ask(ctx context.Context, sessionID, question string) (*chat.Answer, error)
}

// Streamer delivers answers progressively, one character per event.
type Streamer struct {
	asker    Asker
	pool     *ants.Pool
	poolSize int
	delay    time.Duration
	lifetime time.Duration
	metrics  *telemetry.Metrics
	logger   *slog.Logger
}

// Option configures a Streamer.
type Option func(*Streamer) error

// WithPoolSize sets the maximum number of concurrent streams.
// Default is DefaultPoolSize.
func WithPoolSize(size int) Option {
	return func(s *Streamer) error {
		if size < 1 {
			size = 1
		}
		s.poolSize = size
		return nil
	}
}

// WithDelay sets the pause between message events. Zero disables it.
// Default is DefaultDelay.
func WithDelay(delay time.Duration) Option {
	return func(s *Streamer) error {
		if delay < 0 {
			return fmt.Errorf("stream delay cannot be negative: %s", delay)
		}
		s.delay = delay
		return nil
	}
}

// WithLifetime sets the overall time budget of a stream.
// Default is DefaultLifetime.
func WithLifetime(lifetime time.Duration) Option {
	return func(s *Streamer) error {
		if lifetime <= 0 {
			return fmt.Errorf("stream lifetime must be positive: %s", lifetime)
		}
		s.lifetime = lifetime
		return nil
	}
}

// WithMetrics tracks active and rejected streams.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Streamer) error {
		s.metrics = m
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Streamer) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewStreamer creates a streamer with its own worker pool.
// Call Close to release the pool.
func NewStreamer(asker Asker, opts ...Option) (*Streamer, error) {
	if asker == nil {
		return nil, ErrAskerRequired
	}

	s := &Streamer{
		asker:    asker,
		poolSize: DefaultPoolSize,
		delay:    DefaultDelay,
		lifetime: DefaultLifetime,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "streamer")

	pool, err := ants.NewPool(s.poolSize, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}
	s.pool = pool
	return s, nil
}

// Stream answers question in the background and returns its events.
// The channel is always closed after the last event. Cancelling ctx stops
// delivery but not the recording of the answer.
func (s *Streamer) Stream(ctx context.Context, sessionID, question string) (<-chan Event, error) {
	out := make(chan Event)
	err := s.pool.Submit(func() {
		s.run(ctx, out, sessionID, question)
	})
	switch {
	case errors.Is(err, ants.ErrPoolOverload):
		s.metrics.StreamRejected()
		return nil, ErrBusy
	case errors.Is(err, ants.ErrPoolClosed):
		return nil, ErrClosed
	case err != nil:
		return nil, err
	}
	s.metrics.StreamStarted()
	return out, nil
}

// Running returns the number of streams in progress.
func (s *Streamer) Running() int {
	return s.pool.Running()
}

// Close waits briefly for running streams and releases the pool.
func (s *Streamer) Close() error {
	return s.pool.ReleaseTimeout(5 * time.Second)
}

func (s *Streamer) run(ctx context.Context, out chan<- Event, sessionID, question string) {
	defer close(out)
	defer s.metrics.StreamFinished()

	life, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.lifetime)
	defer cancel()

	answer, err := s.asker.Ask(life, sessionID, question)
	if err != nil {
		if life.Err() != nil {
			s.expire(ctx, out)
			return
		}
		s.logger.Warn("stream failed", "session", sessionID, "err", err)
		s.finish(ctx, out, Event{Kind: EventError, Err: fmt.Sprintf("Failed to process question: %v", err)})
		return
	}

	var ticker *time.Ticker
	if s.delay > 0 {
		ticker = time.NewTicker(s.delay)
		defer ticker.Stop()
	}

	text := answer.Answer
	for i := 0; i < len(text); {
		// Invalid bytes pass through unchanged
		_, size := utf8.DecodeRuneInString(text[i:])
		piece := text[i : i+size]
		if ticker != nil && i > 0 {
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			case <-life.Done():
				s.expire(ctx, out)
				return
			}
		}
		i += size

		select {
		case out <- Event{Kind: EventMessage, Data: piece}:
		case <-ctx.Done():
			return
		case <-life.Done():
			s.expire(ctx, out)
			return
		}
	}

	select {
	case out <- Event{Kind: EventComplete, Answer: answer}:
	case <-ctx.Done():
	case <-life.Done():
		s.expire(ctx, out)
	}
}

func (s *Streamer) expire(ctx context.Context, out chan<- Event) {
	s.logger.Warn("stream lifetime exceeded", "lifetime", s.lifetime)
	s.finish(ctx, out, Event{Kind: EventError, Err: LifetimeExceeded})
}

// finish sends a terminal event unless the consumer is gone.
func (s *Streamer) finish(ctx context.Context, out chan<- Event, ev Event) {
	if ctx.Err() != nil {
		return
	}
	timer := time.NewTimer(terminalGrace)
	defer timer.Stop()
	select {
	case out <- ev:
	case <-ctx.Done():
	case <-timer.C:
	}
}
