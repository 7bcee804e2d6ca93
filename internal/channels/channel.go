// Package channels routes messages between external chat surfaces and
// the answer engine.
package channels

import "context"

// IncomingMessage is a user message arriving from a channel.
type IncomingMessage struct {
	ChannelID string
	TenantID  int64
	UserID    string
	ChatID    string
	Text      string
}

// OutgoingMessage is a reply to deliver through a channel.
type OutgoingMessage struct {
	ChatID string
	Text   string
}

// Adapter is one connected chat surface.
type Adapter interface {
	// ID returns the unique identifier for this adapter.
	ID() string

	// Type returns the adapter type, e.g. "telegram".
	Type() string

	// Start connects the adapter. It returns once the adapter is
	// running; delivery continues until the context is cancelled.
	Start(ctx context.Context) error

	// Stop disconnects the adapter.
	Stop() error

	// SendMessage delivers a reply.
	SendMessage(ctx context.Context, msg *OutgoingMessage) error

	// ReceiveMessages returns the stream of incoming messages. The
	// channel is closed when the adapter stops.
	ReceiveMessages() <-chan *IncomingMessage
}
