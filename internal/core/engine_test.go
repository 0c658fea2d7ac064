package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/keepmind9/tgembed/internal/bot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	channel string
	text    string
}

// fakeBot records outgoing messages and lets tests push incoming ones
type fakeBot struct {
	mu       sync.Mutex
	handler  func(bot.BotMessage)
	sent     []sentMessage
	startErr error
	sendErr  error
	panicky  bool
	stopped  bool
}

func (f *fakeBot) Start(handler func(bot.BotMessage)) error {
	if f.panicky {
		panic("boom")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = handler
	return f.startErr
}

func (f *fakeBot) SendMessage(channel, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentMessage{channel, message})
	return nil
}

func (f *fakeBot) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeBot) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func testEngineConfig() *Config {
	config := &Config{
		Bot:    BotConfig{Token: "1:abc"},
		Engine: EngineConfig{Echo: true, SendRate: 1000, SendBurst: 100},
		Security: SecurityConfig{
			WhitelistEnabled: true,
			AllowedUsers:     map[string][]string{"telegram": {"77", "88"}},
			Admins:           map[string][]string{"telegram": {"77"}},
		},
	}
	if err := validateConfig(config); err != nil {
		panic(err)
	}
	return config
}

func newTestEngine(t *testing.T) (*Engine, *fakeBot) {
	t.Helper()
	e := NewEngine(testEngineConfig())
	fb := &fakeBot{}
	e.RegisterBotAdapter("telegram", fb)
	t.Cleanup(func() { e.Stop() })
	return e, fb
}

func userMessage(userID, content string) bot.BotMessage {
	return bot.BotMessage{
		Platform:  "telegram",
		UserID:    userID,
		Username:  "ann",
		Channel:   "-100",
		MessageID: 5,
		Content:   content,
		Timestamp: time.Unix(1700000000, 0),
	}
}

func TestIsSpecialCommand(t *testing.T) {
	tests := []struct {
		name          string
		prefix        string
		input         string
		expectedCmd   string
		expectedIsCmd bool
		expectedArgs  []string
	}{
		{"help command", "/", "/help", "help", true, []string{}},
		{"start command", "/", "/start", "start", true, []string{}},
		{"addressed to bot", "/", "/whoami@echo_bot", "whoami", true, []string{}},
		{"with args", "/", "/status now please", "status", true, []string{"now", "please"}},
		{"custom prefix", "!", "!help", "help", true, []string{}},
		{"missing prefix", "/", "help", "", false, nil},
		{"unknown command", "/", "/deploy", "", false, nil},
		{"prefix only", "/", "/", "", false, nil},
		{"case sensitive", "/", "/HELP", "", false, nil},
		{"empty prefix", "", "help", "", false, nil},
		{"plain text", "/", "hello there", "", false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, isCmd, args := isSpecialCommand(tt.prefix, tt.input)
			assert.Equal(t, tt.expectedCmd, cmd)
			assert.Equal(t, tt.expectedIsCmd, isCmd)
			if tt.expectedIsCmd {
				assert.Equal(t, tt.expectedArgs, args)
			} else {
				assert.Nil(t, args)
			}
		})
	}
}

func TestIsSpecialCommand_RejectsLongInput(t *testing.T) {
	input := "/help " + string(make([]byte, 300))

	_, isCmd, _ := isSpecialCommand("/", input)

	assert.False(t, isCmd)
}

func TestEngine_HandleUserMessage_Echo(t *testing.T) {
	e, fb := newTestEngine(t)

	e.HandleUserMessage(userMessage("88", "hello"))

	assert.Equal(t, []sentMessage{{"-100", "hello"}}, fb.messages())
	assert.Equal(t, uint64(1), e.received.Load())
	assert.Equal(t, uint64(1), e.sent.Load())
}

func TestEngine_HandleUserMessage_EchoDisabled(t *testing.T) {
	e, fb := newTestEngine(t)
	e.config.Engine.Echo = false

	e.HandleUserMessage(userMessage("88", "hello"))

	assert.Empty(t, fb.messages())
}

func TestEngine_HandleUserMessage_Unauthorized(t *testing.T) {
	e, fb := newTestEngine(t)

	e.HandleUserMessage(userMessage("99", "/help"))

	msgs := fb.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].text, "Unauthorized")
}

func TestEngine_Commands(t *testing.T) {
	tests := []struct {
		name     string
		userID   string
		input    string
		contains []string
	}{
		{"start", "88", "/start", []string{"Hello, @ann", "echo it back", "/help"}},
		{"help", "88", "/help", []string{"/whoami", "/status", "echoed back"}},
		{"whoami user", "88", "/whoami", []string{"User ID: 88", "Channel ID: -100", "Role: user"}},
		{"whoami admin", "77", "/whoami", []string{"Role: admin"}},
		{"status admin", "77", "/status", []string{"tgembed Status", "Messages received: 1", "Echo: on"}},
		{"status denied", "88", "/status", []string{"Permission denied"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, fb := newTestEngine(t)

			e.HandleUserMessage(userMessage(tt.userID, tt.input))

			msgs := fb.messages()
			require.Len(t, msgs, 1)
			assert.Equal(t, "-100", msgs[0].channel)
			for _, want := range tt.contains {
				assert.Contains(t, msgs[0].text, want)
			}
		})
	}
}

func TestEngine_UnknownCommand(t *testing.T) {
	e, fb := newTestEngine(t)

	e.HandleSpecialCommandWithArgs("deploy", nil, userMessage("77", "/deploy"))

	msgs := fb.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].text, "Unknown command: deploy")
}

func TestEngine_SendToBot_Failures(t *testing.T) {
	t.Run("unknown platform", func(t *testing.T) {
		e, fb := newTestEngine(t)

		e.SendToBot("discord", "1", "hi")

		assert.Empty(t, fb.messages())
		assert.Zero(t, e.failed.Load())
	})

	t.Run("adapter error is counted", func(t *testing.T) {
		e, fb := newTestEngine(t)
		fb.sendErr = errors.New("network down")

		e.SendToBot("telegram", "1", "hi")

		assert.Equal(t, uint64(1), e.failed.Load())
		assert.Zero(t, e.sent.Load())
	})

	t.Run("stopped engine does not wait for the limiter", func(t *testing.T) {
		config := testEngineConfig()
		config.Engine.SendRate = 0.001
		config.Engine.SendBurst = 1
		e := NewEngine(config)
		fb := &fakeBot{}
		e.RegisterBotAdapter("telegram", fb)
		require.True(t, e.limiter.Allow())
		require.NoError(t, e.Stop())

		e.SendToBot("telegram", "1", "hi")

		assert.Equal(t, uint64(1), e.failed.Load())
		assert.Empty(t, fb.messages())
	})
}

func TestEngine_Run_EchoesMessages(t *testing.T) {
	e, fb := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	require.Eventually(t, func() bool {
		fb.mu.Lock()
		defer fb.mu.Unlock()
		return fb.handler != nil
	}, 2*time.Second, 5*time.Millisecond)

	fb.mu.Lock()
	handler := fb.handler
	fb.mu.Unlock()
	handler(userMessage("88", "one"))
	handler(userMessage("88", "two"))

	require.Eventually(t, func() bool { return len(fb.messages()) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "one", fb.messages()[0].text)
	assert.Equal(t, "two", fb.messages()[1].text)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop")
	}
}

func TestEngine_Run_StartFailures(t *testing.T) {
	t.Run("no adapters", func(t *testing.T) {
		e := NewEngine(testEngineConfig())
		assert.ErrorContains(t, e.Run(context.Background()), "no bot adapters registered")
	})

	t.Run("adapter error", func(t *testing.T) {
		e, fb := newTestEngine(t)
		fb.startErr = errors.New("Unauthorized")
		assert.ErrorContains(t, e.Run(context.Background()), "failed to start telegram bot: Unauthorized")
	})

	t.Run("adapter panic", func(t *testing.T) {
		e, fb := newTestEngine(t)
		fb.panicky = true
		assert.ErrorContains(t, e.Run(context.Background()), "panic: boom")
	})
}

func TestEngine_HandleBotMessage_AfterStop(t *testing.T) {
	e, _ := newTestEngine(t)
	for i := 0; i < cap(e.messageChan); i++ {
		e.HandleBotMessage(userMessage("88", "fill"))
	}
	require.NoError(t, e.Stop())

	done := make(chan struct{})
	go func() {
		e.HandleBotMessage(userMessage("88", "late"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("HandleBotMessage blocked after Stop")
	}
}

func TestEngine_Stop_StopsBots(t *testing.T) {
	e, fb := newTestEngine(t)

	require.NoError(t, e.Stop())

	fb.mu.Lock()
	defer fb.mu.Unlock()
	assert.True(t, fb.stopped)
}
