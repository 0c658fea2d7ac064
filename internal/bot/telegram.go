package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/keepmind9/tgembed/internal/logger"
	"github.com/keepmind9/tgembed/internal/wire"
	"github.com/keepmind9/tgembed/pkg/constants"
	"github.com/sirupsen/logrus"
)

// TelegramBot implements BotAdapter over a Client using long polling
type TelegramBot struct {
	mu             sync.RWMutex
	client         *Client
	sender         *Client
	pollInterval   time.Duration
	sendOptions    SendOptions
	messageHandler func(BotMessage)
	ctx            context.Context
	cancel         context.CancelFunc
	done           chan struct{}
}

// NewTelegramBot creates a new Telegram bot instance. pollInterval is the
// pause after a poll that returned no message.
func NewTelegramBot(client *Client, pollInterval time.Duration) *TelegramBot {
	if pollInterval <= 0 {
		pollInterval = constants.DefaultEnginePollInterval
	}
	return &TelegramBot{
		client:       client,
		pollInterval: pollInterval,
	}
}

// SetSender gives outgoing messages their own client. Without one, a
// message sent while a long poll is in flight waits for the poll to end.
func (t *TelegramBot) SetSender(sender *Client) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sender = sender
}

// sendClient returns the client used for outgoing messages
func (t *TelegramBot) sendClient() *Client {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.sender != nil {
		return t.sender
	}
	return t.client
}

// SetSendOptions sets the options used for every outgoing message
func (t *TelegramBot) SetSendOptions(opts SendOptions) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sendOptions = opts
}

// Start checks the bot identity and begins polling in the background
func (t *TelegramBot) Start(messageHandler func(BotMessage)) error {
	if t.client == nil {
		return ErrNotInitialized
	}
	t.SetMessageHandler(messageHandler)

	ctx, cancel := context.WithCancel(context.Background())

	me, err := t.client.GetMe(ctx)
	if err != nil {
		cancel()
		logger.WithFields(logrus.Fields{
			"token": maskSecret(t.client.cfg.Token),
			"error": err,
		}).Error("failed-to-initialize-telegram-bot")
		return fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"bot_username": me.Username,
		"bot_id":       me.ID,
	}).Info("telegram-bot-initialized-successfully")

	done := make(chan struct{})
	t.mu.Lock()
	t.ctx, t.cancel, t.done = ctx, cancel, done
	t.mu.Unlock()

	go t.pollLoop(ctx, done)

	logger.Info("telegram-long-polling-started")
	return nil
}

// pollLoop drains updates while they keep coming and waits pollInterval
// after an empty or failed poll
func (t *TelegramBot) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		if ctx.Err() != nil {
			logger.Info("telegram-long-polling-stopped")
			return
		}

		got, err := t.client.PollUpdate(ctx)
		if err != nil && ctx.Err() == nil {
			logger.WithFields(logrus.Fields{
				"offset": t.client.Cursor(),
				"error":  err,
			}).Warn("telegram-poll-failed")
		}
		if got {
			t.handleMessage(t.client.LastMessage())
			continue
		}

		select {
		case <-ctx.Done():
			logger.Info("telegram-long-polling-stopped")
			return
		case <-time.After(t.pollInterval):
		}
	}
}

// handleMessage hands a received text message to the handler
func (t *TelegramBot) handleMessage(m Message) {
	userID := formatInt(m.From.ID)
	chatID := m.ChatID()

	logger.WithFields(logrus.Fields{
		"platform":    "telegram",
		"user_id":     userID,
		"username":    m.From.Username,
		"first_name":  m.From.FirstName,
		"last_name":   m.From.LastName,
		"chat_id":     chatID,
		"chat_type":   m.Chat.Type,
		"message_id":  m.MessageID,
		"content_len": len(m.Text),
	}).Info("received-telegram-message-parsed")

	// Only process text messages
	if m.Text == "" {
		return
	}

	handler := t.GetMessageHandler()
	if handler == nil {
		return
	}
	ts := time.Now()
	if m.Date > 0 {
		ts = time.Unix(m.Date, 0)
	}
	handler(BotMessage{
		Platform:  "telegram",
		UserID:    userID,
		Username:  m.From.Username,
		Channel:   chatID,
		MessageID: m.MessageID,
		Content:   m.Text,
		Timestamp: ts,
	})
}

// SendMessage sends a message to a Telegram chat, split into as many
// messages as the body buffer requires once the text is escaped
func (t *TelegramBot) SendMessage(chatID, message string) error {
	if t.client == nil {
		return ErrNotInitialized
	}
	if chatID == "" {
		return ErrInvalidChatID
	}

	if len(message) > constants.MaxTelegramMessageLength {
		logger.WithFields(logrus.Fields{
			"original_length": len(message),
			"max_length":      constants.MaxTelegramMessageLength,
		}).Info("truncating-message-for-telegram-limit")
		message = splitText(message, constants.MaxTelegramMessageLength, byteCost)[0]
	}

	t.mu.RLock()
	opts := t.sendOptions
	ctx := t.ctx
	t.mu.RUnlock()
	if ctx == nil {
		ctx = context.Background()
	}

	client := t.sendClient()
	parts := splitText(message, client.MaxTextLength(chatID), wire.EscapedLen)
	for i, part := range parts {
		if _, err := client.SendMessage(ctx, chatID, part, opts); err != nil {
			logger.WithFields(logrus.Fields{
				"chat_id": chatID,
				"part":    i + 1,
				"parts":   len(parts),
				"error":   err,
			}).Error("failed-to-send-message-to-telegram")
			return err
		}
	}

	logger.WithFields(logrus.Fields{
		"chat_id": chatID,
		"parts":   len(parts),
	}).Info("message-sent-to-telegram")
	return nil
}

// Stop ends polling and closes the connection
func (t *TelegramBot) Stop() error {
	t.mu.Lock()
	cancel, done, sender := t.cancel, t.done, t.sender
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	for _, c := range []*Client{t.client, sender} {
		if c == nil {
			continue
		}
		if err := c.Disconnect(); err != nil {
			logger.WithField("error", err).Warn("telegram-disconnect-failed")
		}
	}

	logger.Info("telegram-bot-stopped")
	return nil
}

// SetMessageHandler sets the message handler in a thread-safe manner
func (t *TelegramBot) SetMessageHandler(handler func(BotMessage)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messageHandler = handler
}

// GetMessageHandler gets the message handler in a thread-safe manner
func (t *TelegramBot) GetMessageHandler() func(BotMessage) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.messageHandler
}
