// Package engine ties retrieval, conversation memory, and the chat
// provider together into the question answering flow, and drives the
// ingestion pipeline that feeds the vector store.
package engine

import (
	"context"
	"fmt"
	"log"

	"kbgate/internal/ai"
	"kbgate/internal/embedder"
	"kbgate/internal/memory"
	"kbgate/internal/vectorstore"
)

// Config tunes the answer flow.
type Config struct {
	// TopK is how many passages are retrieved per question.
	TopK int
	// MaxAnswerChars caps the returned answer length.
	MaxAnswerChars int
	// HistoryTurns is how many prior turns are replayed to the model.
	HistoryTurns int
	// MaxTokens bounds the model's generation.
	MaxTokens int
}

func (c Config) withDefaults() Config {
	if c.TopK <= 0 {
		c.TopK = 3
	}
	if c.MaxAnswerChars <= 0 {
		c.MaxAnswerChars = 1000
	}
	if c.HistoryTurns <= 0 {
		c.HistoryTurns = 20
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 400
	}
	return c
}

// Answer is a generated reply plus the distinct sources it drew from.
type Answer struct {
	Text    string
	Sources []string
}

// Engine answers questions against a tenant's knowledge base.
type Engine struct {
	store    *vectorstore.Store
	memory   *memory.Store
	embedder embedder.Embedder
	provider ai.Provider
	cfg      Config
}

// New assembles an engine.
func New(store *vectorstore.Store, mem *memory.Store, emb embedder.Embedder, provider ai.Provider, cfg Config) *Engine {
	return &Engine{
		store:    store,
		memory:   mem,
		embedder: emb,
		provider: provider,
		cfg:      cfg.withDefaults(),
	}
}

// Answer produces a reply to the user's message, grounded in the
// tenant's indexed documents and the conversation so far. The
// conversation is updated only after a successful generation, so a
// failed call leaves memory untouched.
func (e *Engine) Answer(ctx context.Context, tenantID int64, userID, message string) (Answer, error) {
	unlock := e.memory.Lock(tenantID, userID)
	defer unlock()

	history, err := e.memory.Load(ctx, tenantID, userID)
	if err != nil {
		return Answer{}, err
	}

	var (
		messages []ai.ChatMessage
		sources  []string
	)

	if isGreeting(message) {
		messages = greetingMessages(message)
	} else {
		vecs, err := e.embedder.Embed(ctx, []string{message})
		if err != nil {
			return Answer{}, fmt.Errorf("engine: embedding question failed: %w", err)
		}

		matches, err := e.store.Query(ctx, tenantID, vecs[0], e.cfg.TopK)
		if err != nil {
			return Answer{}, fmt.Errorf("engine: retrieval failed: %w", err)
		}

		messages = buildMessages(matches, history, message, e.cfg.HistoryTurns)
		sources = distinctSources(matches)
	}

	resp, err := e.provider.GenerateResponse(ctx, &ai.GenerateRequest{
		Messages:  messages,
		MaxTokens: e.cfg.MaxTokens,
	})
	if err != nil {
		return Answer{}, err
	}

	text := truncateAnswer(resp.Content, e.cfg.MaxAnswerChars)

	if err := e.memory.Append(ctx, tenantID, userID,
		memory.Turn{Role: memory.RoleHuman, Content: message},
		memory.Turn{Role: memory.RoleAssistant, Content: text},
	); err != nil {
		// The user still gets their answer; the gap only costs
		// context on the next question.
		log.Printf("[Engine] failed to persist conversation for tenant %d user %s: %v",
			tenantID, userID, err)
	}

	return Answer{Text: text, Sources: sources}, nil
}

// ClearConversation wipes the history for one (tenant, user) pair.
func (e *Engine) ClearConversation(ctx context.Context, tenantID int64, userID string) error {
	unlock := e.memory.Lock(tenantID, userID)
	defer unlock()
	return e.memory.Clear(ctx, tenantID, userID)
}

// distinctSources preserves retrieval order: the best-matching chunk's
// source comes first.
func distinctSources(matches []vectorstore.Match) []string {
	seen := make(map[string]bool)
	var sources []string
	for _, m := range matches {
		if !seen[m.Record.Source] {
			seen[m.Record.Source] = true
			sources = append(sources, m.Record.Source)
		}
	}
	return sources
}
