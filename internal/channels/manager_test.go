package channels

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbgate/internal/ai"
	"kbgate/internal/engine"
)

type fakeAdapter struct {
	incoming chan *IncomingMessage

	mu   sync.Mutex
	sent []*OutgoingMessage
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{incoming: make(chan *IncomingMessage, 8)}
}

func (f *fakeAdapter) ID() string                  { return "fake-1" }
func (f *fakeAdapter) Type() string                { return "fake" }
func (f *fakeAdapter) Start(context.Context) error { return nil }
func (f *fakeAdapter) Stop() error                 { close(f.incoming); return nil }
func (f *fakeAdapter) ReceiveMessages() <-chan *IncomingMessage {
	return f.incoming
}

func (f *fakeAdapter) SendMessage(_ context.Context, msg *OutgoingMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeAdapter) lastSent(t *testing.T) *OutgoingMessage {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		f.mu.Lock()
		if len(f.sent) > 0 {
			msg := f.sent[len(f.sent)-1]
			f.mu.Unlock()
			return msg
		}
		f.mu.Unlock()
		select {
		case <-deadline:
			t.Fatal("no message sent")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

type fakeAnswerer struct {
	answer engine.Answer
	err    error

	mu   sync.Mutex
	asks []string
}

func (f *fakeAnswerer) Answer(_ context.Context, _ int64, _ string, message string) (engine.Answer, error) {
	f.mu.Lock()
	f.asks = append(f.asks, message)
	f.mu.Unlock()
	return f.answer, f.err
}

func TestManager_RoutesMessageToEngine(t *testing.T) {
	adapter := newFakeAdapter()
	answerer := &fakeAnswerer{answer: engine.Answer{Text: "the answer"}}
	m := NewManager(answerer, adapter)

	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	adapter.incoming <- &IncomingMessage{TenantID: 1, UserID: "u", ChatID: "c", Text: "a question"}

	sent := adapter.lastSent(t)
	assert.Equal(t, "the answer", sent.Text)
	assert.Equal(t, "c", sent.ChatID)
}

func TestManager_SendsFallbackOnFailure(t *testing.T) {
	adapter := newFakeAdapter()
	answerer := &fakeAnswerer{err: errors.New("model exploded")}
	m := NewManager(answerer, adapter)

	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	adapter.incoming <- &IncomingMessage{TenantID: 1, UserID: "u", ChatID: "c", Text: "q"}

	sent := adapter.lastSent(t)
	assert.Equal(t, genericReply, sent.Text)
}

func TestFallbackReply_Classification(t *testing.T) {
	quota := &ai.CapabilityError{Kind: ai.FailureQuota, Provider: "p", Err: errors.New("429")}
	transient := &ai.CapabilityError{Kind: ai.FailureTransient, Provider: "p", Err: errors.New("503")}

	assert.Equal(t, quotaReply, FallbackReply(quota))
	assert.Equal(t, transientReply, FallbackReply(transient))
	assert.Equal(t, genericReply, FallbackReply(errors.New("other")))
}
