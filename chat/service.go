package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/counsel/backend"
	"github.com/poiesic/counsel/cache"
	"github.com/poiesic/counsel/core"
	"github.com/poiesic/counsel/storage"
	"github.com/poiesic/counsel/telemetry"
)

// DefaultModel names the model recorded when the backend does not report one.
const DefaultModel = "gpt-3.5-turbo"

// Service orchestrates question answering over sessions.
type Service struct {
	sessions     storage.SessionRepository
	messages     storage.MessageRepository
	evidence     storage.EvidenceRepository
	documents    storage.DocumentRepository
	backend      backend.Backend
	cache        *cache.ResponseCache
	defaultModel string
	metrics      *telemetry.Metrics
	logger       *slog.Logger
}

// Option configures a Service.
type Option func(*Service) error

// WithCache enables answer caching.
// Default is no cache.
func WithCache(c *cache.ResponseCache) Option {
	return func(s *Service) error {
		s.cache = c
		return nil
	}
}

// WithDefaultModel sets the model recorded when the backend reports none.
// Default is DefaultModel.
func WithDefaultModel(model string) Option {
	return func(s *Service) error {
		if strings.TrimSpace(model) == "" {
			return fmt.Errorf("%w: default model cannot be empty", core.ErrValidation)
		}
		s.defaultModel = model
		return nil
	}
}

// WithMetrics records ask outcomes and cache lookups.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Service) error {
		s.metrics = m
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewService creates a new chat service.
func NewService(
	sessions storage.SessionRepository,
	messages storage.MessageRepository,
	evidence storage.EvidenceRepository,
	documents storage.DocumentRepository,
	be backend.Backend,
	opts ...Option,
) (*Service, error) {
	if sessions == nil {
		return nil, ErrSessionRepositoryRequired
	}
	if messages == nil {
		return nil, ErrMessageRepositoryRequired
	}
	if evidence == nil {
		return nil, ErrEvidenceRepositoryRequired
	}
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if be == nil {
		return nil, ErrBackendRequired
	}

	s := &Service{
		sessions:     sessions,
		messages:     messages,
		evidence:     evidence,
		documents:    documents,
		backend:      be,
		defaultModel: DefaultModel,
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "chat")

	return s, nil
}

// Ask answers question within the session identified by sessionID.
// An empty sessionID starts a new session; the returned Answer carries its ID.
func (s *Service) Ask(ctx context.Context, sessionID, question string) (*Answer, error) {
	start := time.Now()
	if err := core.ValidateQuestion(question); err != nil {
		return nil, err
	}

	answer, outcome, err := s.ask(ctx, start, sessionID, question)
	if err != nil {
		outcome = telemetry.OutcomeFailed
	}
	s.metrics.ObserveAsk(outcome, time.Since(start))
	return answer, err
}

func (s *Service) ask(ctx context.Context, start time.Time, sessionID, question string) (*Answer, string, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if _, err := s.sessions.EnsureSession(ctx, sessionID, nil); err != nil {
		return nil, "", fmt.Errorf("failed to ensure session %s: %w", sessionID, err)
	}

	// The question is recorded before anything can fail
	_, err := s.messages.AddMessages(ctx, &core.Message{
		SessionId: sessionID,
		Role:      core.RoleUser,
		Content:   question,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to store question: %w", err)
	}

	if cached := s.lookup(ctx, question); cached != nil {
		answer, err := s.answerFromCache(ctx, start, sessionID, cached)
		if err != nil {
			return nil, "", err
		}
		s.touch(ctx, sessionID)
		return answer, telemetry.OutcomeCached, nil
	}

	result, err := s.backend.AskQuestion(ctx, question, sessionID)
	if err != nil {
		s.logger.Error("backend failed to answer", "session", sessionID, "err", err)
		return nil, "", fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	model := result.Model
	if model == "" {
		model = s.defaultModel
	}
	message, evidence, err := s.record(ctx, sessionID, &core.Message{
		SessionId:      sessionID,
		Role:           core.RoleAssistant,
		Content:        result.Answer,
		Model:          model,
		TokensUsed:     result.TokensUsed,
		ResponseTimeMs: time.Since(start).Milliseconds(),
		HasReferences:  len(result.References) > 0,
	}, func(id core.ID) []*core.Evidence {
		return evidenceFromReferences(id, result.References)
	})
	if err != nil {
		return nil, "", err
	}

	answer := s.assemble(ctx, sessionID, message, evidence)

	err = s.cache.Save(ctx, question, &core.CachedAnswer{
		Answer:     result.Answer,
		Model:      model,
		References: cachedReferences(result.References),
	})
	if err != nil {
		s.logger.Warn("failed to cache answer", "session", sessionID, "err", err)
	}

	s.touch(ctx, sessionID)
	return answer, telemetry.OutcomeGenerated, nil
}

// lookup returns the cached answer for question. Read failures count as misses.
func (s *Service) lookup(ctx context.Context, question string) *core.CachedAnswer {
	if !s.cache.Enabled() {
		return nil
	}
	cached, hit, err := s.cache.Lookup(ctx, question)
	if err != nil {
		s.logger.Warn("cache lookup failed", "err", err)
		hit = false
	}
	s.metrics.ObserveCacheLookup(hit)
	if !hit {
		return nil
	}
	return cached
}

// answerFromCache records a cached answer as a new assistant turn. The cached
// references are linked to the new message as fresh evidence.
func (s *Service) answerFromCache(ctx context.Context, start time.Time, sessionID string, cached *core.CachedAnswer) (*Answer, error) {
	message, evidence, err := s.record(ctx, sessionID, &core.Message{
		SessionId:      sessionID,
		Role:           core.RoleAssistant,
		Content:        cached.Answer,
		Model:          cached.Model,
		TokensUsed:     0,
		Cached:         true,
		ResponseTimeMs: time.Since(start).Milliseconds(),
		HasReferences:  len(cached.References) > 0,
	}, func(id core.ID) []*core.Evidence {
		return evidenceFromCache(id, cached.References)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("answered from cache", "session", sessionID, "message", message.Id)
	return s.assemble(ctx, sessionID, message, evidence), nil
}

// record stores an assistant message, then the evidence built for its ID.
func (s *Service) record(
	ctx context.Context,
	sessionID string,
	message *core.Message,
	buildEvidence func(id core.ID) []*core.Evidence,
) (*core.Message, []*core.Evidence, error) {
	stored, err := s.messages.AddMessages(ctx, message)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to store answer for session %s: %w", sessionID, err)
	}
	message = stored[0]

	evidence := buildEvidence(message.Id)
	if len(evidence) == 0 {
		return message, nil, nil
	}
	evidence, err = s.evidence.AddEvidence(ctx, evidence...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to store evidence for message %d: %w", message.Id, err)
	}
	return message, evidence, nil
}

// assemble builds the caller's view of an answer, adding document titles
// when they can be found.
func (s *Service) assemble(ctx context.Context, sessionID string, message *core.Message, evidence []*core.Evidence) *Answer {
	answer := &Answer{
		SessionId:      sessionID,
		MessageId:      message.Id,
		Answer:         message.Content,
		Model:          message.Model,
		TokensUsed:     message.TokensUsed,
		Cached:         message.Cached,
		ResponseTimeMs: message.ResponseTimeMs,
		References:     []ReferenceView{},
	}
	if len(evidence) == 0 {
		return answer
	}

	ids := make([]core.ID, 0, len(evidence))
	for _, ev := range evidence {
		ids = append(ids, ev.DocumentId)
	}
	docs, err := s.documents.GetDocuments(ctx, ids...)
	if err != nil {
		s.logger.Warn("failed to look up reference titles", "message", message.Id, "err", err)
	}
	answer.References = referenceViews(evidence, docs)
	return answer
}

func (s *Service) touch(ctx context.Context, sessionID string) {
	if err := s.sessions.TouchSession(ctx, sessionID); err != nil {
		s.logger.Warn("failed to touch session", "session", sessionID, "err", err)
	}
}

// EnsureSession returns the session with the given ID, creating it if needed.
func (s *Service) EnsureSession(ctx context.Context, sessionID string) (*core.Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrValidation, core.ErrEmptySessionID)
	}
	return s.sessions.EnsureSession(ctx, sessionID, nil)
}

// History returns the newest limit messages of a session, oldest first.
func (s *Service) History(ctx context.Context, sessionID string, limit int) ([]*core.Message, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrValidation, core.ErrEmptySessionID)
	}
	if err := core.ValidateLimit(limit); err != nil {
		return nil, err
	}
	if _, err := s.sessions.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.messages.GetRecentMessages(ctx, sessionID, limit)
}

// References returns the evidence of a message, most similar first, joined
// with document metadata. Evidence of removed documents is still returned.
func (s *Service) References(ctx context.Context, messageID core.ID) ([]ReferenceDetail, error) {
	if _, err := s.messages.GetMessage(ctx, messageID); err != nil {
		return nil, err
	}
	evidence, err := s.evidence.GetEvidenceForMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}

	ids := make([]core.ID, 0, len(evidence))
	for _, ev := range evidence {
		ids = append(ids, ev.DocumentId)
	}
	docs, err := s.documents.GetDocuments(ctx, ids...)
	if err != nil {
		return nil, fmt.Errorf("failed to load reference documents: %w", err)
	}

	details := make([]ReferenceDetail, 0, len(evidence))
	for _, ev := range evidence {
		details = append(details, referenceDetail(ev, docs[ev.DocumentId]))
	}
	return details, nil
}

// Sessions lists up to limit sessions, most recently active first.
func (s *Service) Sessions(ctx context.Context, limit int) ([]*core.Session, error) {
	if err := core.ValidateLimit(limit); err != nil {
		return nil, err
	}
	return s.sessions.GetRecentSessions(ctx, limit)
}
