package memory

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, maxTurns int) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "memory.db"), maxTurns)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAndLoad_Order(t *testing.T) {
	s := newTestStore(t, 0)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, 1, "alice",
		Turn{Role: RoleHuman, Content: "What courses are offered?"},
		Turn{Role: RoleAssistant, Content: "Algebra and Biology."},
	))
	require.NoError(t, s.Append(ctx, 1, "alice",
		Turn{Role: RoleHuman, Content: "Which has more credits?"},
	))

	turns, err := s.Load(ctx, 1, "alice")
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, RoleHuman, turns[0].Role)
	assert.Equal(t, "What courses are offered?", turns[0].Content)
	assert.Equal(t, RoleAssistant, turns[1].Role)
	assert.Equal(t, "Which has more credits?", turns[2].Content)
	for _, turn := range turns {
		assert.NotEmpty(t, turn.ID)
		assert.False(t, turn.CreatedAt.IsZero())
	}
}

func TestLoad_EmptyConversation(t *testing.T) {
	s := newTestStore(t, 0)

	turns, err := s.Load(context.Background(), 1, "nobody")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestConversations_Isolated(t *testing.T) {
	s := newTestStore(t, 0)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, 1, "alice", Turn{Role: RoleHuman, Content: "tenant one"}))
	require.NoError(t, s.Append(ctx, 2, "alice", Turn{Role: RoleHuman, Content: "tenant two"}))
	require.NoError(t, s.Append(ctx, 1, "bob", Turn{Role: RoleHuman, Content: "other user"}))

	turns, err := s.Load(ctx, 1, "alice")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "tenant one", turns[0].Content)
}

func TestAppend_TrimsOldestTurns(t *testing.T) {
	s := newTestStore(t, 4)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Append(ctx, 1, "alice",
			Turn{Role: RoleHuman, Content: "question"},
			Turn{Role: RoleAssistant, Content: "answer"},
		))
	}

	turns, err := s.Load(ctx, 1, "alice")
	require.NoError(t, err)
	require.Len(t, turns, 4)
	assert.Equal(t, RoleHuman, turns[0].Role)
	assert.Equal(t, RoleAssistant, turns[3].Role)
}

func TestClear(t *testing.T) {
	s := newTestStore(t, 0)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, 1, "alice", Turn{Role: RoleHuman, Content: "hi"}))
	require.NoError(t, s.Clear(ctx, 1, "alice"))

	turns, err := s.Load(ctx, 1, "alice")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestLock_SerializesSameConversation(t *testing.T) {
	s := newTestStore(t, 0)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := s.Lock(1, "alice")
			defer unlock()

			turns, err := s.Load(ctx, 1, "alice")
			require.NoError(t, err)
			_ = turns
			require.NoError(t, s.Append(ctx, 1, "alice",
				Turn{Role: RoleHuman, Content: "q"},
				Turn{Role: RoleAssistant, Content: "a"},
			))
		}()
	}
	wg.Wait()

	turns, err := s.Load(ctx, 1, "alice")
	require.NoError(t, err)
	assert.Len(t, turns, 16)
}
