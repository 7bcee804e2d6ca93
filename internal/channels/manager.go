package channels

import (
	"context"
	"log"
	"sync"

	"kbgate/internal/ai"
	"kbgate/internal/engine"
)

// Fallback replies for classified provider failures.
const (
	quotaReply     = "The assistant is temporarily out of capacity. Please try again later."
	transientReply = "The assistant could not be reached. Please try again in a moment."
	genericReply   = "Something went wrong while answering. Please try again."
)

// Answerer is the slice of the engine the manager needs.
type Answerer interface {
	Answer(ctx context.Context, tenantID int64, userID, message string) (engine.Answer, error)
}

// Manager starts the configured adapters and pumps their messages
// through the engine.
type Manager struct {
	engine   Answerer
	adapters []Adapter

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewManager creates a manager for the given adapters.
func NewManager(answerer Answerer, adapters ...Adapter) *Manager {
	return &Manager{engine: answerer, adapters: adapters}
}

// Start launches every adapter and a pump goroutine per adapter.
func (m *Manager) Start(ctx context.Context) error {
	ctx, m.cancel = context.WithCancel(ctx)

	for _, a := range m.adapters {
		if err := a.Start(ctx); err != nil {
			m.cancel()
			return err
		}
		log.Printf("[Channels] started %s adapter %s", a.Type(), a.ID())

		m.wg.Add(1)
		go func(a Adapter) {
			defer m.wg.Done()
			m.pump(ctx, a)
		}(a)
	}

	return nil
}

// Stop shuts down all adapters and waits for the pumps to drain.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	for _, a := range m.adapters {
		if err := a.Stop(); err != nil {
			log.Printf("[Channels] stopping %s: %v", a.ID(), err)
		}
	}
	m.wg.Wait()
}

func (m *Manager) pump(ctx context.Context, a Adapter) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-a.ReceiveMessages():
			if !ok {
				return
			}
			m.handle(ctx, a, msg)
		}
	}
}

func (m *Manager) handle(ctx context.Context, a Adapter, msg *IncomingMessage) {
	answer, err := m.engine.Answer(ctx, msg.TenantID, msg.UserID, msg.Text)

	reply := answer.Text
	if err != nil {
		log.Printf("[Channels] answering for tenant %d via %s failed: %v",
			msg.TenantID, a.ID(), err)
		reply = FallbackReply(err)
	}

	if err := a.SendMessage(ctx, &OutgoingMessage{ChatID: msg.ChatID, Text: reply}); err != nil {
		log.Printf("[Channels] sending reply via %s failed: %v", a.ID(), err)
	}
}

// FallbackReply maps a provider failure to a user-facing message.
func FallbackReply(err error) string {
	switch {
	case ai.IsQuota(err):
		return quotaReply
	case ai.IsTransient(err):
		return transientReply
	default:
		return genericReply
	}
}
