// Package telegram connects a Telegram bot to the answer engine. The
// adapter runs in long-polling mode.
package telegram

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"kbgate/internal/channels"
)

// maxMessageLength is Telegram's per-message text limit.
const maxMessageLength = 4096

// botAPI abstracts the Telegram bot methods used by the adapter,
// enabling testing with mocks.
type botAPI interface {
	Start(ctx context.Context)
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// Config contains Telegram-specific configuration.
type Config struct {
	BotToken string
	// TenantID is the knowledge base this bot answers from.
	TenantID int64
}

// Adapter implements channels.Adapter for Telegram.
type Adapter struct {
	id       string
	config   Config
	incoming chan *channels.IncomingMessage

	mu     sync.Mutex
	bot    botAPI
	cancel context.CancelFunc
}

// New creates a Telegram adapter.
func New(id string, cfg Config) *Adapter {
	return &Adapter{
		id:       id,
		config:   cfg,
		incoming: make(chan *channels.IncomingMessage, 64),
	}
}

// ID returns the adapter identifier.
func (a *Adapter) ID() string { return a.id }

// Type returns "telegram".
func (a *Adapter) Type() string { return "telegram" }

// Start connects to Telegram and begins polling for updates.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.bot == nil {
		b, err := bot.New(a.config.BotToken, bot.WithDefaultHandler(a.handleUpdate))
		if err != nil {
			return fmt.Errorf("telegram: failed to create bot: %w", err)
		}
		a.bot = b
	}

	ctx, a.cancel = context.WithCancel(ctx)
	go func() {
		log.Printf("[Telegram] %s: polling started", a.id)
		a.bot.Start(ctx)
		log.Printf("[Telegram] %s: polling stopped", a.id)
		close(a.incoming)
	}()

	return nil
}

// Stop cancels polling.
func (a *Adapter) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
	}
	return nil
}

// ReceiveMessages returns the incoming message stream.
func (a *Adapter) ReceiveMessages() <-chan *channels.IncomingMessage {
	return a.incoming
}

// SendMessage delivers a reply, splitting it when it exceeds
// Telegram's message length limit.
func (a *Adapter) SendMessage(ctx context.Context, msg *channels.OutgoingMessage) error {
	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat id %q: %w", msg.ChatID, err)
	}

	a.mu.Lock()
	b := a.bot
	a.mu.Unlock()
	if b == nil {
		return fmt.Errorf("telegram: adapter %s not started", a.id)
	}

	for _, part := range splitMessage(msg.Text, maxMessageLength) {
		if _, err := b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   part,
		}); err != nil {
			return fmt.Errorf("telegram: send to chat %d failed: %w", chatID, err)
		}
	}

	return nil
}

// handleUpdate converts a Telegram update into an incoming message.
func (a *Adapter) handleUpdate(_ context.Context, _ *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.Text == "" || update.Message.From == nil {
		return
	}

	userID := strconv.FormatInt(update.Message.From.ID, 10)
	msg := &channels.IncomingMessage{
		ChannelID: a.id,
		TenantID:  a.config.TenantID,
		UserID:    userID,
		ChatID:    strconv.FormatInt(update.Message.Chat.ID, 10),
		Text:      update.Message.Text,
	}

	select {
	case a.incoming <- msg:
	default:
		log.Printf("[Telegram] %s: dropping message from user %s, queue full", a.id, userID)
	}
}

// splitMessage breaks text into chunks of at most limit characters,
// preferring newline boundaries. Telegram's limit counts characters,
// and cutting mid-rune would produce invalid UTF-8.
func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var parts []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}
