package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"grokchat/data"
	"grokchat/logger"
	"grokchat/models"

	"go.uber.org/zap"
)

type QueryResult struct {
	Query   string
	Content string
	Model   string
	Usage   models.TokenUsage
}

type Status struct {
	Active            bool              `json:"active"`
	ConversationCount int               `json:"conversation_count"`
	SessionStart      string            `json:"session_start"`
	UsageToday        *data.UsageRecord `json:"usage_today"`
}

// ChatService runs the query pipeline against one session at a time.
type ChatService struct {
	Sessions     *SessionLifecycle
	Client       models.CompletionClient
	Limiter      RateLimiter
	Usage        UsageTracker
	SystemPrompt string
	Params       models.GenerationParams
	Now          func() time.Time

	locks SessionLocks
}

// NewChatService wires the default quota, prompt and generation parameters
// around repository and client.
func NewChatService(repository data.SessionRepository, client models.CompletionClient) *ChatService {
	return &ChatService{
		Sessions:     &SessionLifecycle{Repository: repository},
		Client:       client,
		Limiter:      RateLimiter{Quota: DefaultQuota},
		SystemPrompt: SystemPrompt,
		Params:       DefaultGenerationParams,
	}
}

// SetClock points every component at the same time source.
func (s *ChatService) SetClock(now func() time.Time) {
	s.Now = now
	s.Usage.Now = now
	s.Sessions.Now = now
}

func (s *ChatService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// StartSession creates state for id if it has none.
func (s *ChatService) StartSession(ctx context.Context, id string) (*data.SessionState, error) {
	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return s.Sessions.Start(ctx, id)
}

// SubmitQuery sends query to the provider with the session's recent history
// and records the exchange. Usage and conversation are only written after the
// provider answered.
func (s *ChatService) SubmitQuery(ctx context.Context, sessionID string, query string) (QueryResult, error) {
	unlock, err := s.locks.Lock(ctx, sessionID)
	if err != nil {
		return QueryResult{}, providerError(err)
	}
	defer unlock()

	state, err := s.Sessions.EnsureActive(ctx, sessionID)
	if err != nil {
		return QueryResult{}, err
	}

	if strings.TrimSpace(query) == "" {
		return QueryResult{}, invalidInput(`Missing "query" parameter`)
	}

	decision := s.Limiter.Check(s.Usage.Current(state.Usage))
	if !decision.Allowed {
		logger.Log.Info("rate limit reached",
			zap.String("session", sessionID),
			zap.String("reason", decision.Reason))
		return QueryResult{}, rateLimited(decision.Reason)
	}

	messages := BuildMessages(s.SystemPrompt, RecentExchanges(state.Conversation, PromptWindow), query)

	completion, err := s.Client.Complete(ctx, messages, s.Params)
	if err != nil {
		logger.Log.Warn("completion failed", zap.String("session", sessionID), zap.Error(err))
		return QueryResult{}, providerError(err)
	}

	state.Usage = s.Usage.Record(state.Usage, completion.Usage.PromptTokens, completion.Usage.CompletionTokens)
	content := CleanResponse(completion.Text)
	state.Conversation = AppendExchange(state.Conversation, data.Exchange{
		UserQuery:         query,
		AssistantResponse: content,
		Timestamp:         s.now(),
	})

	if err := s.Sessions.Repository.Save(ctx, state); err != nil {
		return QueryResult{}, fmt.Errorf("save session: %w", err)
	}

	logger.Log.Debug("query answered",
		zap.String("session", sessionID),
		zap.Int("prompt_tokens", completion.Usage.PromptTokens),
		zap.Int("completion_tokens", completion.Usage.CompletionTokens),
		zap.Int("requests_today", state.Usage.Requests))

	return QueryResult{
		Query:   query,
		Content: content,
		Model:   completion.Model,
		Usage:   completion.Usage,
	}, nil
}

// GetStatus reports whether id has live state. Looking at an active session
// counts as activity.
func (s *ChatService) GetStatus(ctx context.Context, sessionID string) (Status, error) {
	unlock, err := s.locks.Lock(ctx, sessionID)
	if err != nil {
		return Status{}, err
	}
	defer unlock()

	state, err := s.Sessions.EnsureActive(ctx, sessionID)
	if errors.Is(err, ErrSessionExpired) {
		return Status{SessionStart: "unknown"}, nil
	}
	if err != nil {
		return Status{}, err
	}

	usage := s.Usage.Current(state.Usage)
	return Status{
		Active:            true,
		ConversationCount: len(state.Conversation),
		SessionStart:      state.Created.Format(time.RFC3339),
		UsageToday:        &usage,
	}, nil
}

func (s *ChatService) ClearSession(ctx context.Context, sessionID string) error {
	unlock, err := s.locks.Lock(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()

	return s.Sessions.Clear(ctx, sessionID)
}
