package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/keepmind9/tgembed/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const getMeOK = `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Echo","username":"echo_bot"}}`

func TestTelegramBot_EchoLoop(t *testing.T) {
	c, tr := newTestClient(t, testConfig(),
		httpOK(getMeOK),
		updates(textUpdate(5, "hello")),
		httpOK(`{"ok":true,"result":{"message_id":2}}`),
	)
	tg := NewTelegramBot(c, 10*time.Millisecond)

	received := make(chan BotMessage, 1)
	err := tg.Start(func(msg BotMessage) {
		assert.NoError(t, tg.SendMessage(msg.Channel, msg.Content))
		received <- msg
	})
	require.NoError(t, err)

	var msg BotMessage
	select {
	case msg = <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("no message received")
	}
	require.NoError(t, tg.Stop())

	assert.Equal(t, "telegram", msg.Platform)
	assert.Equal(t, "77", msg.UserID)
	assert.Equal(t, "ann", msg.Username)
	assert.Equal(t, "-100", msg.Channel)
	assert.Equal(t, int64(50), msg.MessageID)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, time.Unix(1700000000, 0), msg.Timestamp)

	tr.mu.Lock()
	requests := append([]string(nil), tr.requests...)
	tr.mu.Unlock()
	require.GreaterOrEqual(t, len(requests), 3)
	assert.Contains(t, requests[0], "/getMe ")
	assert.Contains(t, requests[1], "/getUpdates ")
	assert.True(t, strings.HasSuffix(requests[2], `{"chat_id":"-100", "text":"hello"}`))
	assert.Equal(t, uint64(6), c.Cursor())
	assert.False(t, c.IsConnected())
}

func TestTelegramBot_StartFailsOnIdentityCheck(t *testing.T) {
	c, _ := newTestClient(t, testConfig(), httpOK(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
	tg := NewTelegramBot(c, 0)

	err := tg.Start(func(BotMessage) {})

	assert.ErrorContains(t, err, "Unauthorized")
	assert.NoError(t, tg.Stop())
}

func TestTelegramBot_SplitsLongMessages(t *testing.T) {
	ok := httpOK(`{"ok":true,"result":{"message_id":2}}`)
	c, tr := newTestClient(t, testConfig(), ok, ok, ok)
	tg := NewTelegramBot(c, 0)
	tg.SetSendOptions(SendOptions{DisableWebPagePreview: true})

	text := strings.Repeat("a", c.MaxTextLength("42")+10)
	require.NoError(t, tg.SendMessage("42", text))

	assert.Len(t, tr.requests, 2)
	assert.Contains(t, tr.requests[1], `"text":"aaaaaaaaaa", "disable_web_page_preview":true}`)
}

func TestTelegramBot_SplitsOnEscapedLength(t *testing.T) {
	ok := httpOK(`{"ok":true,"result":{"message_id":2}}`)

	t.Run("newlines", func(t *testing.T) {
		c, tr := newTestClient(t, testConfig(), ok, ok, ok)
		tg := NewTelegramBot(c, 0)
		text := strings.Repeat("\n", 800)
		require.Less(t, len(text), c.MaxTextLength("42"))

		require.NoError(t, tg.SendMessage("42", text))

		require.Len(t, tr.requests, 2)
		total := 0
		for _, req := range tr.requests {
			total += strings.Count(req, `\n`)
		}
		assert.Equal(t, 800, total)
	})

	t.Run("quotes and newlines", func(t *testing.T) {
		c, tr := newTestClient(t, testConfig(), ok, ok, ok, ok)
		tg := NewTelegramBot(c, 0)
		text := strings.Repeat(`say "hi"`+"\n", 150)

		require.NoError(t, tg.SendMessage("42", text))

		assert.Greater(t, len(tr.requests), 1)
		total := 0
		for _, req := range tr.requests {
			total += strings.Count(req, `say \"hi\"\n`)
		}
		assert.Equal(t, 150, total)
	})
}

func TestTelegramBot_SendDoesNotWaitForLongPoll(t *testing.T) {
	pollCfg := testConfig()
	pollCfg.Clock = wire.SystemClock
	pollCfg.Sleep = time.Sleep
	pollCfg.LongPoll = time.Second
	poller, pollTr := newTestClient(t, pollCfg)
	sender, sendTr := newTestClient(t, testConfig(), httpOK(`{"ok":true,"result":{"message_id":2}}`))
	tg := NewTelegramBot(poller, 0)
	tg.SetSender(sender)

	polled := make(chan struct{})
	go func() {
		defer close(polled)
		poller.PollUpdate(context.Background())
	}()
	require.Eventually(t, func() bool {
		return strings.Contains(pollTr.lastRequest(), "/getUpdates ")
	}, time.Second, 5*time.Millisecond)

	start := time.Now()
	require.NoError(t, tg.SendMessage("42", "hi"))

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.True(t, strings.HasSuffix(sendTr.lastRequest(), `{"chat_id":"42", "text":"hi"}`))
	select {
	case <-polled:
		t.Fatal("long poll ended before the send")
	default:
	}
	<-polled
	require.NoError(t, tg.Stop())
	assert.False(t, sender.IsConnected())
}

func TestTelegramBot_NotInitialized(t *testing.T) {
	tg := NewTelegramBot(nil, 0)

	assert.ErrorIs(t, tg.Start(func(BotMessage) {}), ErrNotInitialized)
	assert.ErrorIs(t, tg.SendMessage("42", "hi"), ErrNotInitialized)
	assert.NoError(t, tg.Stop())
}

func TestTelegramBot_SendMessage_NoChat(t *testing.T) {
	c, _ := newTestClient(t, testConfig())
	tg := NewTelegramBot(c, 0)

	assert.ErrorIs(t, tg.SendMessage("", "hi"), ErrInvalidChatID)
}

func TestTelegramBot_MessageHandler(t *testing.T) {
	tg := &TelegramBot{}
	assert.Nil(t, tg.GetMessageHandler())

	called := false
	tg.SetMessageHandler(func(BotMessage) { called = true })
	tg.GetMessageHandler()(BotMessage{})
	assert.True(t, called)
}

func TestTelegramBot_IgnoresNonTextMessages(t *testing.T) {
	tg := NewTelegramBot(nil, 0)
	called := false
	tg.SetMessageHandler(func(BotMessage) { called = true })

	tg.handleMessage(Message{UpdateID: 1, Chat: Chat{ID: 5}})

	assert.False(t, called)
}
