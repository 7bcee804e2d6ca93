package engine

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbgate/internal/ai"
	"kbgate/internal/embedder"
	"kbgate/internal/memory"
	"kbgate/internal/vectorstore"
)

func newTestEngine(t *testing.T, provider ai.Provider) (*Engine, *vectorstore.Store, *memory.Store) {
	t.Helper()

	store := vectorstore.OpenInMemory()
	mem, err := memory.Open(filepath.Join(t.TempDir(), "memory.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { mem.Close() })

	emb := embedder.NewHash(512)
	return New(store, mem, emb, provider, Config{}), store, mem
}

func seedStore(t *testing.T, store *vectorstore.Store, tenantID int64, source, content string) {
	t.Helper()
	emb := embedder.NewHash(512)
	vecs, err := emb.Embed(context.Background(), []string{content})
	require.NoError(t, err)
	require.NoError(t, store.Upsert(context.Background(), []vectorstore.Record{{
		TenantID:  tenantID,
		Source:    source,
		Content:   content,
		Embedding: vecs[0],
	}}))
}

func TestAnswer_RetrievesAndCitesSources(t *testing.T) {
	mock := ai.NewMockProvider("mock")
	mock.QueueResponse(ai.MockResponse{Content: "Algebra is worth 3 credits."})
	e, store, _ := newTestEngine(t, mock)

	seedStore(t, store, 1, "catalog.pdf", "Algebra is a course worth 3 credits.")
	seedStore(t, store, 1, "handbook.txt", "Biology is a course worth 4 credits.")

	answer, err := e.Answer(context.Background(), 1, "alice", "How many credits is the Algebra course?")
	require.NoError(t, err)

	assert.Equal(t, "Algebra is worth 3 credits.", answer.Text)
	assert.Contains(t, answer.Sources, "catalog.pdf")

	calls := mock.Calls()
	require.Len(t, calls, 1)
	system := calls[0].Request.Messages[0]
	assert.Equal(t, "system", system.Role)
	assert.Contains(t, system.Content, "Algebra is a course worth 3 credits.")
}

func TestAnswer_TenantContextIsolated(t *testing.T) {
	mock := ai.NewMockProvider("mock")
	e, store, _ := newTestEngine(t, mock)

	seedStore(t, store, 1, "one.txt", "Tenant one teaches Algebra courses.")
	seedStore(t, store, 2, "two.txt", "Tenant two teaches Biology courses.")

	_, err := e.Answer(context.Background(), 1, "alice", "What courses are taught here?")
	require.NoError(t, err)

	system := mock.Calls()[0].Request.Messages[0].Content
	assert.Contains(t, system, "Algebra")
	assert.NotContains(t, system, "Biology")
}

func TestAnswer_GreetingSkipsRetrieval(t *testing.T) {
	mock := ai.NewMockProvider("mock")
	mock.QueueResponse(ai.MockResponse{Content: "Hello! Ask me anything about the knowledge base."})
	e, store, _ := newTestEngine(t, mock)

	seedStore(t, store, 1, "doc.txt", "Hello hello hello greeting text.")

	answer, err := e.Answer(context.Background(), 1, "alice", "Hi!")
	require.NoError(t, err)

	assert.Empty(t, answer.Sources)
	system := mock.Calls()[0].Request.Messages[0].Content
	assert.NotContains(t, system, "greeting text")
}

func TestAnswer_PersistsConversation(t *testing.T) {
	mock := ai.NewMockProvider("mock")
	mock.QueueResponse(ai.MockResponse{Content: "first answer"})
	mock.QueueResponse(ai.MockResponse{Content: "second answer"})
	e, _, mem := newTestEngine(t, mock)

	_, err := e.Answer(context.Background(), 1, "alice", "first question")
	require.NoError(t, err)
	_, err = e.Answer(context.Background(), 1, "alice", "second question")
	require.NoError(t, err)

	turns, err := mem.Load(context.Background(), 1, "alice")
	require.NoError(t, err)
	require.Len(t, turns, 4)
	assert.Equal(t, memory.RoleHuman, turns[0].Role)
	assert.Equal(t, "first question", turns[0].Content)
	assert.Equal(t, "first answer", turns[1].Content)

	// Second call must replay the first exchange as history.
	second := mock.Calls()[1].Request.Messages
	var contents []string
	for _, m := range second {
		contents = append(contents, m.Content)
	}
	assert.Contains(t, contents, "first question")
	assert.Contains(t, contents, "first answer")
}

func TestAnswer_FailureLeavesMemoryUntouched(t *testing.T) {
	mock := ai.NewMockProvider("mock")
	mock.QueueResponse(ai.MockResponse{Error: errors.New("model unavailable")})
	e, _, mem := newTestEngine(t, mock)

	_, err := e.Answer(context.Background(), 1, "alice", "a question")
	require.Error(t, err)

	turns, err := mem.Load(context.Background(), 1, "alice")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestAnswer_TruncatesLongAnswers(t *testing.T) {
	long := strings.Repeat("This sentence pads the answer out. ", 60)
	mock := ai.NewMockProvider("mock")
	mock.QueueResponse(ai.MockResponse{Content: long})
	e, _, _ := newTestEngine(t, mock)

	answer, err := e.Answer(context.Background(), 1, "alice", "a question")
	require.NoError(t, err)

	assert.LessOrEqual(t, len(answer.Text), 1000)
	assert.True(t, strings.HasSuffix(answer.Text, "."))
}

func TestClearConversation(t *testing.T) {
	mock := ai.NewMockProvider("mock")
	e, _, mem := newTestEngine(t, mock)

	_, err := e.Answer(context.Background(), 1, "alice", "a question")
	require.NoError(t, err)
	require.NoError(t, e.ClearConversation(context.Background(), 1, "alice"))

	turns, err := mem.Load(context.Background(), 1, "alice")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestDistinctSources_RetrievalOrder(t *testing.T) {
	matches := []vectorstore.Match{
		{Record: vectorstore.Record{Source: "zebra.txt"}, Score: 0.9},
		{Record: vectorstore.Record{Source: "apple.txt"}, Score: 0.8},
		{Record: vectorstore.Record{Source: "zebra.txt"}, Score: 0.7},
	}

	// Best-matching source stays first even when it sorts last
	// alphabetically.
	assert.Equal(t, []string{"zebra.txt", "apple.txt"}, distinctSources(matches))
}

func TestIsGreeting(t *testing.T) {
	assert.True(t, isGreeting("hi"))
	assert.True(t, isGreeting("Hello!"))
	assert.True(t, isGreeting(" good morning "))
	assert.False(t, isGreeting("hi, how many credits is Algebra?"))
	assert.False(t, isGreeting("what courses are offered?"))
}

func TestTruncateAnswer(t *testing.T) {
	assert.Equal(t, "short", truncateAnswer("short", 100))

	text := "First sentence. Second sentence. Third part that will be cut"
	got := truncateAnswer(text, 40)
	assert.Equal(t, "First sentence. Second sentence.", got)
}
