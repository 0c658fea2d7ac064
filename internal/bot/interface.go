// Package bot is a bounded-memory client for the Telegram Bot API.
//
// The Client runs one HTTPS exchange at a time inside buffers allocated
// when it is created: the request is staged in the exchange buffer, written
// to the transport, and the response is read back into the same buffer and
// narrowed to its "result" value. Fields are extracted with the flat
// tokenizer in internal/jsontok; no general JSON decoder is used.
//
// # Polling
//
// PollUpdate requests at most one message update per call, using the
// UpdateCursor as the getUpdates offset. The cursor is advanced before a
// message is handed out, so a message is delivered at most once, including
// across restarts when the cursor is backed by a CursorStore.
//
// # Usage
//
//	tr, _ := transport.NewTLSTransport(transport.Config{})
//	client, _ := bot.NewClient(bot.ClientConfig{Token: token}, tr, nil)
//	tg := bot.NewTelegramBot(client, time.Second)
//	err := tg.Start(func(msg bot.BotMessage) {
//	    tg.SendMessage(msg.Channel, msg.Content)
//	})
//	...
//	tg.Stop()
//
// A reply sent from the handler goes out before the next poll starts.
// Replies sent from another goroutine need a second client given with
// SetSender, or they wait for the long poll in flight.
package bot

import "time"

// BotAdapter defines the interface for bot adapters
type BotAdapter interface {
	// Start starts the bot, establishes connection and begins listening for messages
	Start(messageHandler func(BotMessage)) error

	// SendMessage sends a message to the chat.
	// Adapter is responsible for:
	//   - Truncating to platform limits
	//   - Splitting long messages when necessary
	SendMessage(channel, message string) error

	// Stop stops the bot and cleans up resources
	Stop() error
}

// BotMessage represents a bot message structure
type BotMessage struct {
	Platform  string // always "telegram"
	UserID    string // Unique user identifier (for permission control)
	Username  string
	Channel   string // Chat ID
	MessageID int64
	Content   string // Message text
	Timestamp time.Time
}
