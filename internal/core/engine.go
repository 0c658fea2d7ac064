package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/keepmind9/tgembed/internal/bot"
	"github.com/keepmind9/tgembed/internal/logger"
	"github.com/keepmind9/tgembed/pkg/constants"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// specialCommands defines the commands the engine answers itself.
// They are matched exactly after the configured prefix.
var specialCommands = map[string]struct{}{
	"start":  {},
	"help":   {},
	"status": {},
	"whoami": {},
}

// isSpecialCommand checks if input is a special command.
//
// A command is the prefix followed by its name, optionally addressed to a bot
// ("/help@echo_bot") and followed by arguments.
//
// Returns: (commandName, isCommand, remainingArgs)
func isSpecialCommand(prefix, input string) (string, bool, []string) {
	if len(input) > constants.MaxCommandInputLength || prefix == "" {
		return "", false, nil
	}
	if !strings.HasPrefix(input, prefix) {
		return "", false, nil
	}

	fields := strings.Fields(input[len(prefix):])
	if len(fields) == 0 {
		return "", false, nil
	}
	cmd := fields[0]
	if at := strings.IndexByte(cmd, '@'); at > 0 {
		cmd = cmd[:at]
	}
	if _, exists := specialCommands[cmd]; !exists {
		return "", false, nil
	}
	return cmd, true, fields[1:]
}

// Engine routes bot messages to command handlers and echo replies
type Engine struct {
	config      *Config
	activeBots  map[string]bot.BotAdapter // Bot type -> adapter
	botsMu      sync.RWMutex
	messageChan chan bot.BotMessage
	limiter     *rate.Limiter
	startedAt   time.Time

	received atomic.Uint64
	sent     atomic.Uint64
	failed   atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
}

// NewEngine creates a new Engine instance
func NewEngine(config *Config) *Engine {
	ctx, cancel := context.WithCancel(context.Background())

	sendRate := config.Engine.SendRate
	if sendRate <= 0 {
		sendRate = constants.DefaultSendRate
	}
	burst := config.Engine.SendBurst
	if burst <= 0 {
		burst = constants.DefaultSendBurst
	}

	return &Engine{
		config:      config,
		activeBots:  make(map[string]bot.BotAdapter),
		messageChan: make(chan bot.BotMessage, constants.MessageChannelBufferSize),
		limiter:     rate.NewLimiter(rate.Limit(sendRate), burst),
		startedAt:   time.Now(),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// RegisterBotAdapter registers a bot adapter
func (e *Engine) RegisterBotAdapter(botType string, adapter bot.BotAdapter) {
	e.botsMu.Lock()
	defer e.botsMu.Unlock()
	e.activeBots[botType] = adapter
}

// Run starts every registered bot and processes messages until ctx is done
func (e *Engine) Run(ctx context.Context) error {
	logger.Info("starting-tgembed-engine")

	e.botsMu.RLock()
	bots := make(map[string]bot.BotAdapter, len(e.activeBots))
	for botType, adapter := range e.activeBots {
		bots[botType] = adapter
	}
	e.botsMu.RUnlock()

	if len(bots) == 0 {
		return fmt.Errorf("no bot adapters registered")
	}

	for botType, adapter := range bots {
		logger.WithField("bot_type", botType).Info("starting-bot")
		if err := startBot(botType, adapter, e.HandleBotMessage); err != nil {
			logger.WithFields(logrus.Fields{
				"bot_type": botType,
				"error":    err,
			}).Error("failed-to-start-bot")
			return fmt.Errorf("failed to start %s bot: %w", botType, err)
		}
	}

	e.runEventLoop(ctx)
	return nil
}

// startBot starts one adapter and turns a panic into an error
func startBot(botType string, adapter bot.BotAdapter, handler func(bot.BotMessage)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(logrus.Fields{
				"bot_type": botType,
				"panic":    r,
			}).Error("bot-start-panic-recovered")
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return adapter.Start(handler)
}

// runEventLoop runs the main event loop for processing messages
func (e *Engine) runEventLoop(ctx context.Context) {
	logger.Info("engine-event-loop-started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("event-loop-shutting-down")
			return
		case <-e.ctx.Done():
			logger.Info("event-loop-shutting-down")
			return
		case msg := <-e.messageChan:
			e.HandleUserMessage(msg)
		}
	}
}

// HandleBotMessage is the callback function for bots to deliver messages.
// It blocks while the queue is full, which holds back the poll loop.
func (e *Engine) HandleBotMessage(msg bot.BotMessage) {
	select {
	case e.messageChan <- msg:
	case <-e.ctx.Done():
		logger.WithFields(logrus.Fields{
			"platform":   msg.Platform,
			"message_id": msg.MessageID,
		}).Warn("message-dropped-engine-stopped")
	}
}

// HandleUserMessage processes a message from a user
func (e *Engine) HandleUserMessage(msg bot.BotMessage) {
	e.received.Add(1)
	logger.WithFields(logrus.Fields{
		"platform": msg.Platform,
		"user":     msg.UserID,
		"channel":  msg.Channel,
	}).Info("processing-user-message")

	if !e.config.IsUserAuthorized(msg.Platform, msg.UserID) {
		logger.WithFields(logrus.Fields{
			"platform": msg.Platform,
			"user":     msg.UserID,
		}).Warn("unauthorized-access-attempt")
		e.SendToBot(msg.Platform, msg.Channel, "❌ Unauthorized: Please contact the administrator to add your user ID")
		return
	}

	logger.WithField("user", msg.UserID).Debug("user-authorized")

	input := strings.TrimSpace(msg.Content)
	if cmd, isCmd, args := isSpecialCommand(e.config.Engine.CommandPrefix, input); isCmd {
		logger.WithFields(logrus.Fields{
			"command": cmd,
			"args":    args,
			"user":    msg.UserID,
		}).Info("special-command-received")
		e.HandleSpecialCommandWithArgs(cmd, args, msg)
		return
	}

	if !e.config.Engine.Echo {
		logger.WithField("channel", msg.Channel).Debug("message-ignored-echo-disabled")
		return
	}
	e.SendToBot(msg.Platform, msg.Channel, msg.Content)
}

// HandleSpecialCommandWithArgs handles special commands with pre-parsed arguments
func (e *Engine) HandleSpecialCommandWithArgs(command string, args []string, msg bot.BotMessage) {
	logger.WithField("command", command).Info("handling-special-command")

	switch command {
	case "start":
		e.showWelcome(msg)
	case "help":
		e.showHelp(msg)
	case "status":
		e.showStatus(msg)
	case "whoami":
		e.showWhoami(msg)
	default:
		e.SendToBot(msg.Platform, msg.Channel,
			fmt.Sprintf("❌ Unknown command: %s\nUse '%shelp' to see available commands", command, e.config.Engine.CommandPrefix))
	}
}

func (e *Engine) showWelcome(msg bot.BotMessage) {
	response := "👋 Hello"
	if msg.Username != "" {
		response += ", @" + msg.Username
	}
	response += "!\n\n"
	if e.config.Engine.Echo {
		response += "Send me any text and I will echo it back.\n"
	}
	response += fmt.Sprintf("Use '%shelp' to see available commands", e.config.Engine.CommandPrefix)
	e.SendToBot(msg.Platform, msg.Channel, response)
}

// showHelp displays help information about available commands
func (e *Engine) showHelp(msg bot.BotMessage) {
	p := e.config.Engine.CommandPrefix
	help := "📖 tgembed Help\n\n" +
		"Commands:\n" +
		"  " + p + "start   - Show the welcome message\n" +
		"  " + p + "help    - Show this help message\n" +
		"  " + p + "whoami  - Show your user and chat IDs (for whitelist config)\n" +
		"  " + p + "status  - Show engine status (admin only)\n"
	if e.config.Engine.Echo {
		help += "\nAny other text is echoed back."
	}
	e.SendToBot(msg.Platform, msg.Channel, help)
}

// showStatus shows engine counters to admins
func (e *Engine) showStatus(msg bot.BotMessage) {
	if !e.config.IsAdmin(msg.Platform, msg.UserID) {
		logger.WithFields(logrus.Fields{
			"platform": msg.Platform,
			"user":     msg.UserID,
		}).Warn("status-denied-not-admin")
		e.SendToBot(msg.Platform, msg.Channel, "❌ Permission denied: admin only")
		return
	}

	echo := "off"
	if e.config.Engine.Echo {
		echo = "on"
	}
	response := fmt.Sprintf("📊 tgembed Status:\n\n"+
		"Uptime: %s\n"+
		"Messages received: %d\n"+
		"Messages sent: %d\n"+
		"Send failures: %d\n"+
		"Echo: %s",
		time.Since(e.startedAt).Truncate(time.Second),
		e.received.Load(), e.sent.Load(), e.failed.Load(), echo)
	e.SendToBot(msg.Platform, msg.Channel, response)
}

// showWhoami returns the user's IM information to help with whitelist configuration
func (e *Engine) showWhoami(msg bot.BotMessage) {
	role := "user"
	if e.config.IsAdmin(msg.Platform, msg.UserID) {
		role = "admin"
	}
	response := fmt.Sprintf("🔍 Your IM Information\n\n"+
		"Platform: %s\n"+
		"User ID: %s (Use this for whitelist)\n"+
		"Channel ID: %s\n"+
		"Role: %s",
		msg.Platform, msg.UserID, msg.Channel, role)
	e.SendToBot(msg.Platform, msg.Channel, response)
}

// SendToBot sends a message to a specific bot, waiting for the send limiter
func (e *Engine) SendToBot(platform, channel, message string) {
	e.botsMu.RLock()
	botAdapter, exists := e.activeBots[platform]
	e.botsMu.RUnlock()
	if !exists {
		logger.WithField("platform", platform).Warn("bot-adapter-not-found")
		return
	}

	if err := e.limiter.Wait(e.ctx); err != nil {
		e.failed.Add(1)
		logger.WithFields(logrus.Fields{
			"platform": platform,
			"channel":  channel,
			"error":    err,
		}).Warn("send-rate-wait-aborted")
		return
	}

	if err := botAdapter.SendMessage(channel, message); err != nil {
		e.failed.Add(1)
		logger.WithFields(logrus.Fields{
			"platform": platform,
			"channel":  channel,
			"error":    err,
		}).Error("failed-to-send-message-to-bot")
		return
	}

	e.sent.Add(1)
	logger.WithFields(logrus.Fields{
		"platform": platform,
		"channel":  channel,
		"length":   len(message),
	}).Info("message-sent-to-bot")
}

// Stop gracefully stops the engine
func (e *Engine) Stop() error {
	logger.Info("stopping-tgembed-engine")

	if e.cancel != nil {
		e.cancel()
	}

	e.botsMu.RLock()
	defer e.botsMu.RUnlock()
	for botType, botAdapter := range e.activeBots {
		logger.WithField("bot_type", botType).Info("stopping-bot")
		if err := botAdapter.Stop(); err != nil {
			logger.WithFields(logrus.Fields{
				"bot_type": botType,
				"error":    err,
			}).Error("failed-to-stop-bot")
		}
	}

	logger.Info("engine-stopped")
	return nil
}
