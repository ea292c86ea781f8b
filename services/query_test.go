package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"grokchat/data"
	"grokchat/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompletionClient struct {
	mu       sync.Mutex
	calls    [][]models.Message
	params   []models.GenerationParams
	response models.Completion
	err      error
}

func (f *fakeCompletionClient) Complete(ctx context.Context, messages []models.Message, params models.GenerationParams) (models.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, messages)
	f.params = append(f.params, params)
	if err := ctx.Err(); err != nil {
		return models.Completion{}, err
	}
	if f.err != nil {
		return models.Completion{}, f.err
	}
	return f.response, nil
}

func (f *fakeCompletionClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

var testNow = time.Date(2026, 10, 14, 15, 4, 5, 0, time.Local)

func newTestService(t *testing.T, client *fakeCompletionClient) (*ChatService, *data.MemorySessionRepository) {
	t.Helper()

	repo := data.NewMemorySessionRepository(data.DefaultSessionTTL)
	repo.Now = fixedClock(testNow)

	service := NewChatService(repo, client)
	service.SetClock(fixedClock(testNow))
	return service, repo
}

func fourResponse() models.Completion {
	return models.Completion{
		Text:  "4",
		Model: "grok-4",
		Usage: models.TokenUsage{PromptTokens: 10, CompletionTokens: 1, TotalTokens: 11},
	}
}

func TestSubmitQuery_FreshSession(t *testing.T) {
	ctx := context.Background()
	client := &fakeCompletionClient{response: fourResponse()}
	service, repo := newTestService(t, client)

	_, err := service.StartSession(ctx, "s1")
	require.NoError(t, err)

	result, err := service.SubmitQuery(ctx, "s1", "What is 2+2?")
	require.NoError(t, err)

	assert.Equal(t, "4", result.Content)
	assert.Equal(t, "What is 2+2?", result.Query)
	assert.Equal(t, "grok-4", result.Model)
	assert.Equal(t, models.TokenUsage{PromptTokens: 10, CompletionTokens: 1, TotalTokens: 11}, result.Usage)

	require.Equal(t, 1, client.callCount())
	assert.Equal(t, []models.Message{
		{Role: models.RoleSystem, Content: SystemPrompt},
		{Role: models.RoleUser, Content: QueryPrefix + "What is 2+2?"},
	}, client.calls[0])
	assert.Equal(t, DefaultGenerationParams, client.params[0])

	state, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, state.Conversation, 1)
	assert.Equal(t, data.Exchange{UserQuery: "What is 2+2?", AssistantResponse: "4", Timestamp: testNow}, state.Conversation[0])
	assert.Equal(t, data.UsageRecord{Date: "2026-10-14", Requests: 1, PromptTokens: 10, CompletionTokens: 1}, state.Usage)
}

func TestSubmitQuery_RateLimitedSkipsProvider(t *testing.T) {
	ctx := context.Background()
	client := &fakeCompletionClient{response: fourResponse()}
	service, repo := newTestService(t, client)

	usage := data.UsageRecord{Date: "2026-10-14", Requests: 50, PromptTokens: 500, CompletionTokens: 50}
	require.NoError(t, repo.Save(ctx, &data.SessionState{Id: "s1", Created: testNow, LastActivity: testNow, Usage: usage}))

	_, err := service.SubmitQuery(ctx, "s1", "one more")
	require.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, "Daily request limit reached (50). Please try again tomorrow.", err.Error())
	assert.Equal(t, 0, client.callCount())

	state, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, usage, state.Usage)
	assert.Empty(t, state.Conversation)
}

func TestSubmitQuery_TokenLimit(t *testing.T) {
	ctx := context.Background()
	client := &fakeCompletionClient{response: fourResponse()}
	service, repo := newTestService(t, client)

	usage := data.UsageRecord{Date: "2026-10-14", Requests: 3, CompletionTokens: 25000}
	require.NoError(t, repo.Save(ctx, &data.SessionState{Id: "s1", LastActivity: testNow, Usage: usage}))

	_, err := service.SubmitQuery(ctx, "s1", "more")
	require.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, "Daily token limit reached. Please try again tomorrow.", err.Error())
	assert.Equal(t, 0, client.callCount())
}

func TestSubmitQuery_YesterdaysQuotaIsIgnored(t *testing.T) {
	ctx := context.Background()
	client := &fakeCompletionClient{response: fourResponse()}
	service, repo := newTestService(t, client)

	stale := data.UsageRecord{Date: "2026-10-13", Requests: 50, PromptTokens: 900, CompletionTokens: 25000}
	require.NoError(t, repo.Save(ctx, &data.SessionState{Id: "s1", LastActivity: testNow, Usage: stale}))

	_, err := service.SubmitQuery(ctx, "s1", "new day")
	require.NoError(t, err)

	state, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, data.UsageRecord{Date: "2026-10-14", Requests: 1, PromptTokens: 10, CompletionTokens: 1}, state.Usage)
}

func TestSubmitQuery_ProviderFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	client := &fakeCompletionClient{response: fourResponse()}
	service, repo := newTestService(t, client)

	_, err := service.StartSession(ctx, "s1")
	require.NoError(t, err)
	_, err = service.SubmitQuery(ctx, "s1", "first")
	require.NoError(t, err)

	before, err := repo.Get(ctx, "s1")
	require.NoError(t, err)

	cause := errors.New("connection reset by peer")
	client.err = cause

	_, err = service.SubmitQuery(ctx, "s1", "second")
	require.ErrorIs(t, err, ErrProvider)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset by peer")

	after, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, before.Conversation, after.Conversation)
	assert.Equal(t, before.Usage, after.Usage)
}

func TestSubmitQuery_CancelledContext(t *testing.T) {
	client := &fakeCompletionClient{response: fourResponse()}
	service, repo := newTestService(t, client)

	_, err := service.StartSession(context.Background(), "s1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = service.SubmitQuery(ctx, "s1", "hello")
	require.ErrorIs(t, err, ErrProvider)
	assert.ErrorIs(t, err, context.Canceled)

	state, err := repo.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, state.Conversation)
	assert.Equal(t, 0, state.Usage.Requests)
}

func TestSubmitQuery_SessionExpired(t *testing.T) {
	ctx := context.Background()
	client := &fakeCompletionClient{response: fourResponse()}
	service, _ := newTestService(t, client)

	_, err := service.SubmitQuery(ctx, "never-started", "hello")
	require.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, "Session expired. Please refresh the page.", err.Error())
	assert.Equal(t, 0, client.callCount())
}

func TestSubmitQuery_IdleTimeoutExpires(t *testing.T) {
	ctx := context.Background()
	client := &fakeCompletionClient{response: fourResponse()}
	service, repo := newTestService(t, client)

	_, err := service.StartSession(ctx, "s1")
	require.NoError(t, err)

	later := testNow.Add(31 * time.Minute)
	repo.Now = fixedClock(later)
	service.SetClock(fixedClock(later))

	_, err = service.SubmitQuery(ctx, "s1", "still there?")
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestSubmitQuery_EmptyQuery(t *testing.T) {
	ctx := context.Background()
	client := &fakeCompletionClient{response: fourResponse()}
	service, _ := newTestService(t, client)

	_, err := service.StartSession(ctx, "s1")
	require.NoError(t, err)

	for _, q := range []string{"", "   ", "\n"} {
		_, err = service.SubmitQuery(ctx, "s1", q)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
	assert.Equal(t, 0, client.callCount())
}

func TestSubmitQuery_EmptyResponseUsesFallback(t *testing.T) {
	ctx := context.Background()
	client := &fakeCompletionClient{response: models.Completion{Text: "** **", Usage: models.TokenUsage{PromptTokens: 5, CompletionTokens: 2}}}
	service, repo := newTestService(t, client)

	_, err := service.StartSession(ctx, "s1")
	require.NoError(t, err)

	result, err := service.SubmitQuery(ctx, "s1", "hmm")
	require.NoError(t, err)
	assert.Equal(t, FallbackResponse, result.Content)

	state, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, FallbackResponse, state.Conversation[0].AssistantResponse)
	assert.Equal(t, 1, state.Usage.Requests)
}

func TestSubmitQuery_WindowsHistory(t *testing.T) {
	ctx := context.Background()
	client := &fakeCompletionClient{response: fourResponse()}
	service, repo := newTestService(t, client)

	_, err := service.StartSession(ctx, "s1")
	require.NoError(t, err)

	queries := []string{"q1", "q2", "q3", "q4", "q5"}
	for _, q := range queries {
		_, err := service.SubmitQuery(ctx, "s1", q)
		require.NoError(t, err)
	}

	last := client.calls[len(client.calls)-1]
	require.Len(t, last, 1+2*PromptWindow+1)
	assert.Equal(t, "q2", last[1].Content)
	assert.Equal(t, "q3", last[3].Content)
	assert.Equal(t, "q4", last[5].Content)
	assert.Equal(t, QueryPrefix+"q5", last[7].Content)

	state, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, state.Conversation, 5)
}

func TestSubmitQuery_ConcurrentQueriesRespectQuota(t *testing.T) {
	ctx := context.Background()
	client := &fakeCompletionClient{response: fourResponse()}
	service, repo := newTestService(t, client)

	_, err := service.StartSession(ctx, "s1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, limited := 0, 0
	for i := 0; i < 60; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.SubmitQuery(ctx, "s1", "go")

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrRateLimited):
				limited++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, succeeded)
	assert.Equal(t, 10, limited)
	assert.Equal(t, 50, client.callCount())

	state, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 50, state.Usage.Requests)
	assert.Equal(t, 50, state.Usage.CompletionTokens)
	assert.Len(t, state.Conversation, MaxExchanges)
	assert.Equal(t, 0, service.locks.size())
}

func TestGetStatus(t *testing.T) {
	ctx := context.Background()
	client := &fakeCompletionClient{response: fourResponse()}
	service, _ := newTestService(t, client)

	status, err := service.GetStatus(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, status.Active)
	assert.Nil(t, status.UsageToday)

	_, err = service.StartSession(ctx, "s1")
	require.NoError(t, err)
	_, err = service.SubmitQuery(ctx, "s1", "What is 2+2?")
	require.NoError(t, err)

	status, err = service.GetStatus(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, status.Active)
	assert.Equal(t, 1, status.ConversationCount)
	assert.Equal(t, testNow.Format(time.RFC3339), status.SessionStart)
	require.NotNil(t, status.UsageToday)
	assert.Equal(t, data.UsageRecord{Date: "2026-10-14", Requests: 1, PromptTokens: 10, CompletionTokens: 1}, *status.UsageToday)
}

func TestClearSession(t *testing.T) {
	ctx := context.Background()
	client := &fakeCompletionClient{response: fourResponse()}
	service, repo := newTestService(t, client)

	_, err := service.StartSession(ctx, "s1")
	require.NoError(t, err)
	_, err = service.SubmitQuery(ctx, "s1", "hi")
	require.NoError(t, err)

	require.NoError(t, service.ClearSession(ctx, "s1"))
	require.NoError(t, service.ClearSession(ctx, "s1"))

	_, err = repo.Get(ctx, "s1")
	assert.ErrorIs(t, err, data.ErrSessionNotFound)

	_, err = service.SubmitQuery(ctx, "s1", "hi again")
	assert.ErrorIs(t, err, ErrSessionExpired)

	// a restarted session begins with empty log and usage
	state, err := service.StartSession(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, state.Conversation)
	assert.Equal(t, data.UsageRecord{}, state.Usage)
}

func TestStartSession_KeepsExistingState(t *testing.T) {
	ctx := context.Background()
	client := &fakeCompletionClient{response: fourResponse()}
	service, _ := newTestService(t, client)

	_, err := service.StartSession(ctx, "s1")
	require.NoError(t, err)
	_, err = service.SubmitQuery(ctx, "s1", "hi")
	require.NoError(t, err)

	state, err := service.StartSession(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, state.Conversation, 1)
}
