package data

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSqlite(t *testing.T, ttl time.Duration) *SqliteSessionRepository {
	t.Helper()

	repo := &SqliteSessionRepository{}
	path := filepath.Join(t.TempDir(), "sessions.db")
	require.NoError(t, repo.Init(context.Background(), path, ttl))
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSqliteSessionRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := openTestSqlite(t, DefaultSessionTTL)

	now := time.Now().Truncate(time.Second)
	state := &SessionState{
		Id:           "abc",
		Created:      now,
		LastActivity: now,
		Conversation: []Exchange{
			{UserQuery: "What is 2+2?", AssistantResponse: "4", Timestamp: now},
		},
		Usage: UsageRecord{Date: now.Format("2006-01-02"), Requests: 1, PromptTokens: 10, CompletionTokens: 1},
	}
	require.NoError(t, repo.Save(ctx, state))

	got, err := repo.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, state.Usage, got.Usage)
	require.Len(t, got.Conversation, 1)
	assert.Equal(t, "4", got.Conversation[0].AssistantResponse)
	assert.True(t, state.LastActivity.Equal(got.LastActivity))

	// upsert replaces the stored document
	state.Usage.Requests = 2
	require.NoError(t, repo.Save(ctx, state))
	got, err = repo.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Usage.Requests)
}

func TestSqliteSessionRepository_EvictsIdle(t *testing.T) {
	ctx := context.Background()
	repo := openTestSqlite(t, time.Minute)

	clock := &fakeClock{now: time.Now()}
	repo.Now = clock.Now

	require.NoError(t, repo.Save(ctx, &SessionState{Id: "old", Created: clock.now, LastActivity: clock.now}))

	clock.Advance(2 * time.Minute)
	_, err := repo.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// evicted rows are gone even once the clock is rewound
	clock.now = clock.now.Add(-2 * time.Minute)
	_, err = repo.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSqliteSessionRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := openTestSqlite(t, DefaultSessionTTL)

	require.NoError(t, repo.Save(ctx, &SessionState{Id: "x", LastActivity: time.Now()}))
	require.NoError(t, repo.Delete(ctx, "x"))
	require.NoError(t, repo.Delete(ctx, "x"))

	_, err := repo.Get(ctx, "x")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSqliteSessionRepository_SaveSweepsAbandoned(t *testing.T) {
	ctx := context.Background()
	repo := openTestSqlite(t, 30*time.Minute)

	clock := &fakeClock{now: time.Now()}
	repo.Now = clock.Now

	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("abandoned-%d", i)
		require.NoError(t, repo.Save(ctx, &SessionState{Id: id, Created: clock.now, LastActivity: clock.now}))
	}

	clock.Advance(24 * time.Hour)
	require.NoError(t, repo.Save(ctx, &SessionState{Id: "fresh", Created: clock.now, LastActivity: clock.now}))

	var rows int
	require.NoError(t, repo.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM session").Scan(&rows))
	assert.Equal(t, 1, rows)

	_, err := repo.Get(ctx, "fresh")
	assert.NoError(t, err)
}
