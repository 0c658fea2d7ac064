package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/keepmind9/tgembed/internal/jsontok"
	"github.com/keepmind9/tgembed/internal/logger"
	"github.com/keepmind9/tgembed/internal/transport"
	"github.com/keepmind9/tgembed/internal/wire"
	"github.com/keepmind9/tgembed/pkg/constants"
	"github.com/sirupsen/logrus"
)

// ClientConfig configures a Client. Zero values take the package defaults.
type ClientConfig struct {
	Token     string
	Host      string
	Port      int
	UserAgent string

	// KeepConnection leaves the connection open between exchanges.
	KeepConnection bool
	// StrictFraming finds "ok" and "result" by key instead of by position.
	StrictFraming bool

	ExchangeBufferSize int
	BodyBufferSize     int
	MaxTokens          int
	MaxSubTokens       int

	// ResponseTimeout bounds the wait for the first response byte.
	ResponseTimeout time.Duration
	// ChunkTimeout is the silence after which a response is complete.
	ChunkTimeout time.Duration
	// LongPoll is the getUpdates timeout hint; it extends ResponseTimeout
	// for polls.
	LongPoll time.Duration

	// Clock and Sleep drive the response reader. Tests replace them.
	Clock            wire.Clock
	Sleep            func(time.Duration)
	ReadPollInterval time.Duration
}

func (c *ClientConfig) applyDefaults() {
	if c.Host == "" {
		c.Host = constants.DefaultAPIHost
	}
	if c.Port == 0 {
		c.Port = constants.DefaultAPIPort
	}
	if c.UserAgent == "" {
		c.UserAgent = constants.DefaultUserAgent
	}
	if c.ExchangeBufferSize == 0 {
		c.ExchangeBufferSize = constants.DefaultExchangeBufferSize
	}
	if c.BodyBufferSize == 0 {
		c.BodyBufferSize = constants.DefaultBodyBufferSize
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = constants.DefaultMaxTokens
	}
	if c.MaxSubTokens == 0 {
		c.MaxSubTokens = constants.DefaultMaxSubTokens
	}
	if c.ResponseTimeout == 0 {
		c.ResponseTimeout = constants.DefaultResponseTimeout
	}
	if c.ChunkTimeout == 0 {
		c.ChunkTimeout = constants.DefaultChunkTimeout
	}
	if c.LongPoll == 0 {
		c.LongPoll = constants.DefaultLongPoll
	}
	if c.ReadPollInterval == 0 {
		c.ReadPollInterval = constants.DefaultReadPollInterval
	}
	if c.Clock == nil {
		c.Clock = wire.SystemClock
	}
	if c.Sleep == nil {
		c.Sleep = time.Sleep
	}
}

// Client is a bounded-memory Bot API client.
//
// All buffers are allocated once by NewClient. One exchange runs at a time;
// the methods are safe to call from several goroutines and serialize on an
// internal mutex.
type Client struct {
	mu sync.Mutex

	cfg       ClientConfig
	transport transport.Transport
	reader    *wire.Reader

	buf       *wire.Buffer
	body      *wire.Buffer
	path      *wire.Buffer
	tokens    []jsontok.Token
	subTokens []jsontok.Token
	parser    jsontok.Parser
	scratch   []byte

	cursor *UpdateCursor
	last   Message
	state  PollState
}

// NewClient creates a client over tr. cursor may be nil, in which case an
// in-memory cursor starting at zero is used.
func NewClient(cfg ClientConfig, tr transport.Transport, cursor *UpdateCursor) (*Client, error) {
	cfg.applyDefaults()

	if cfg.Token == "" {
		return nil, errors.New("bot token is required")
	}
	if tr == nil {
		return nil, errors.New("transport is required")
	}
	if cfg.ExchangeBufferSize < constants.MinExchangeBufferSize {
		return nil, fmt.Errorf("exchange buffer size %d is below the minimum %d", cfg.ExchangeBufferSize, constants.MinExchangeBufferSize)
	}
	if cfg.BodyBufferSize < constants.MinBodyBufferSize {
		return nil, fmt.Errorf("body buffer size %d is below the minimum %d", cfg.BodyBufferSize, constants.MinBodyBufferSize)
	}
	if cfg.BodyBufferSize >= cfg.ExchangeBufferSize {
		return nil, fmt.Errorf("body buffer size %d must be smaller than the exchange buffer size %d", cfg.BodyBufferSize, cfg.ExchangeBufferSize)
	}
	if cfg.MaxTokens < 8 || cfg.MaxSubTokens < 8 {
		return nil, fmt.Errorf("token arenas too small: %d/%d", cfg.MaxTokens, cfg.MaxSubTokens)
	}
	if n := len("/bot") + len(cfg.Token) + 1 + len(constants.APIMethodSendMessage); n > constants.MaxURILength {
		return nil, fmt.Errorf("request path of %d bytes exceeds %d", n, constants.MaxURILength)
	}

	if cursor == nil {
		cursor = &UpdateCursor{}
	}

	reader := wire.NewReader(tr)
	reader.Clock = cfg.Clock
	reader.Sleep = cfg.Sleep
	reader.PollInterval = cfg.ReadPollInterval

	return &Client{
		cfg:       cfg,
		transport: tr,
		reader:    reader,
		buf:       wire.NewBuffer(cfg.ExchangeBufferSize),
		body:      wire.NewBuffer(cfg.BodyBufferSize),
		path:      wire.NewBuffer(constants.MaxURILength),
		tokens:    make([]jsontok.Token, cfg.MaxTokens),
		subTokens: make([]jsontok.Token, cfg.MaxSubTokens),
		scratch:   make([]byte, constants.MaxValueLength),
		cursor:    cursor,
	}, nil
}

// Connect opens the transport if it is not already connected
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensureConnected(ctx)
}

// Disconnect closes the transport. It is safe to call at any time.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transport.Disconnect()
}

// IsConnected reports the transport state
func (c *Client) IsConnected() bool {
	return c.transport.IsConnected()
}

// NotifyLink passes a link event to the transport. It reports false when
// the transport does not take link events.
func (c *Client) NotifyLink(ev transport.LinkEvent) bool {
	n, ok := c.transport.(transport.LinkNotifier)
	if !ok {
		return false
	}
	n.NotifyLink(ev)
	return true
}

// Cursor returns the next update offset
func (c *Client) Cursor() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor.Next()
}

// LastMessage returns a copy of the message record
func (c *Client) LastMessage() Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// MaxTextLength is the largest JSON-escaped size of a text, without its
// quotes, that fits a sendMessage body to chatID with every option set.
// Measure text with wire.QuotedLen or wire.EscapedLen.
func (c *Client) MaxTextLength(chatID string) int {
	const overhead = len(`{"chat_id":"", "text":"", "parse_mode":"MarkdownV2", "disable_web_page_preview":true, "disable_notification":true, "reply_to_message_id":-9223372036854775808}`)
	n := c.body.Cap() - overhead - (wire.QuotedLen(chatID) - 2)
	if n < 0 {
		return 0
	}
	return n
}

// GetMe checks the token and returns the bot identity
func (c *Client) GetMe(ctx context.Context) (User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	payload, err := c.exchange(ctx, wire.MethodGet, constants.APIMethodGetMe, nil, c.cfg.ResponseTimeout)
	if err != nil {
		return User{}, err
	}
	defer c.finish()

	n, err := c.parser.Parse(payload, c.subTokens)
	if err != nil || n == 0 || c.subTokens[0].Type != jsontok.Object {
		logger.WithField("error", err).Warn("getme-payload-unreadable")
		return User{}, fmt.Errorf("%w: getMe result", ErrMalformedPayload)
	}

	var u User
	c.readUser(&u, payload, c.subTokens[:n], 0)
	if u.ID == 0 {
		return User{}, fmt.Errorf("%w: getMe result has no id", ErrMalformedPayload)
	}

	logger.WithFields(logrus.Fields{
		"bot_id":       u.ID,
		"bot_username": u.Username,
	}).Info("bot-identity-confirmed")
	return u, nil
}

// SendMessage sends text to chatID and returns the id the service gave the
// message. It succeeds only when the service accepted the message; the id
// is zero when the result could not be read.
func (c *Client) SendMessage(ctx context.Context, chatID, text string, opts SendOptions) (int64, error) {
	if chatID == "" {
		return 0, ErrInvalidChatID
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := writeSendMessageBody(c.body, chatID, text, opts); err != nil {
		logger.WithFields(logrus.Fields{
			"chat_id":  chatID,
			"text_len": len(text),
			"error":    err,
		}).Error("send-message-body-too-large")
		return 0, err
	}

	payload, err := c.exchange(ctx, wire.MethodPost, constants.APIMethodSendMessage, c.body.Bytes(), c.cfg.ResponseTimeout)
	c.body.Reset()
	if err != nil {
		logger.WithFields(logrus.Fields{
			"chat_id": chatID,
			"error":   err,
		}).Error("failed-to-send-message")
		return 0, fmt.Errorf("failed to send message to chat %s: %w", chatID, err)
	}
	id := c.sentMessageID(payload)
	c.finish()

	logger.WithFields(logrus.Fields{
		"chat_id":    chatID,
		"message_id": id,
	}).Debug("message-sent")
	return id, nil
}

// sentMessageID reads "message_id" from a sendMessage result
func (c *Client) sentMessageID(payload []byte) int64 {
	n, err := c.parser.Parse(payload, c.subTokens)
	if err != nil {
		logger.WithField("error", err).Debug("send-result-unreadable")
		return 0
	}
	m, ok := jsontok.KeyValue(payload, c.subTokens[:n], "message_id", c.scratch)
	if !ok {
		return 0
	}
	return parseInt(c.scratch[:m])
}

func (c *Client) ensureConnected(ctx context.Context) error {
	if c.transport.IsConnected() {
		return nil
	}
	err := c.transport.Connect(ctx, c.cfg.Host, c.cfg.Port)
	if err == nil {
		return nil
	}
	if errors.Is(err, transport.ErrCertificateRejected) {
		c.transport.Disconnect()
	}
	logger.WithFields(logrus.Fields{
		"host":  c.cfg.Host,
		"port":  c.cfg.Port,
		"error": err,
	}).Warn("failed-to-connect")
	return err
}

// exchange runs one request and returns the narrowed payload, which aliases
// the exchange buffer until finish is called. On error the buffer is already
// cleared.
func (c *Client) exchange(ctx context.Context, method, apiMethod string, body []byte, total time.Duration) ([]byte, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}
	if err := c.send(method, apiMethod, body); err != nil {
		return nil, err
	}
	return c.receive(ctx, total)
}

func (c *Client) send(method, apiMethod string, body []byte) error {
	c.path.Reset()
	c.path.WriteString("/bot")
	c.path.WriteString(c.cfg.Token)
	c.path.WriteByte('/')
	c.path.WriteString(apiMethod)
	if err := c.path.Err(); err != nil {
		return fmt.Errorf("%w: path: %w", wire.ErrRequestTooLarge, err)
	}

	if err := wire.BuildRequest(c.buf, method, string(c.path.Bytes()), c.cfg.Host, c.cfg.UserAgent, body); err != nil {
		logger.WithFields(logrus.Fields{
			"method":     apiMethod,
			"body_len":   len(body),
			"buffer_cap": c.buf.Cap(),
		}).Error("request-does-not-fit-exchange-buffer")
		return err
	}

	logger.WithFields(logrus.Fields{
		"method":  method,
		"api":     apiMethod,
		"request": maskSecretIn(string(c.buf.Bytes()), c.cfg.Token),
	}).Debug("sending-request")

	if err := wire.Send(c.transport, c.buf); err != nil {
		c.buf.Reset()
		c.transport.Disconnect()
		logger.WithFields(logrus.Fields{
			"api":   apiMethod,
			"error": err,
		}).Warn("request-write-failed")
		return err
	}
	c.buf.Reset()
	return nil
}

func (c *Client) receive(ctx context.Context, total time.Duration) ([]byte, error) {
	n, err := c.reader.ReadResponse(ctx, c.buf, total, c.cfg.ChunkTimeout)
	if err != nil {
		c.buf.Reset()
		// whatever is left of the response would corrupt the next exchange
		c.transport.Disconnect()
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"bytes":    n,
		"status":   wire.StatusCode(c.buf.Bytes()),
		"response": string(c.buf.Bytes()),
	}).Debug("response-received")

	var payload []byte
	if c.cfg.StrictFraming {
		payload, err = wire.NarrowStrict(c.buf, c.tokens)
	} else {
		payload, err = wire.Narrow(c.buf)
	}
	if err != nil {
		logger.WithField("error", err).Warn("response-rejected")
		c.finish()
		return nil, err
	}
	return payload, nil
}

// finish clears the exchange buffer and applies the connection policy
func (c *Client) finish() {
	c.buf.Reset()
	if !c.cfg.KeepConnection {
		c.transport.Disconnect()
	}
}

// readUser fills u from the object at index obj of tokens
func (c *Client) readUser(u *User, js []byte, tokens []jsontok.Token, obj int) {
	if v, ok := childValue(js, tokens, obj, "id"); ok {
		u.ID = parseInt(v)
	}
	if v, ok := childValue(js, tokens, obj, "is_bot"); ok {
		u.IsBot = string(v) == "true"
	}
	if v, ok := childValue(js, tokens, obj, "first_name"); ok {
		u.FirstName = c.text(v, constants.MaxUserLength)
	}
	if v, ok := childValue(js, tokens, obj, "last_name"); ok {
		u.LastName = c.text(v, constants.MaxUserLength)
	}
	if v, ok := childValue(js, tokens, obj, "username"); ok {
		u.Username = c.text(v, constants.MaxUsernameLength)
	}
	if v, ok := childValue(js, tokens, obj, "language_code"); ok {
		u.LanguageCode = c.text(v, constants.MaxLanguageCodeLength)
	}
}

// text unescapes a raw string value, truncated to limit bytes
func (c *Client) text(raw []byte, limit int) string {
	if limit > len(c.scratch) {
		limit = len(c.scratch)
	}
	n := jsontok.Unescape(c.scratch[:limit], raw)
	return string(c.scratch[:n])
}

func childValue(js []byte, tokens []jsontok.Token, obj int, key string) ([]byte, bool) {
	i, ok := jsontok.ChildKey(js, tokens, obj, key)
	if !ok {
		return nil, false
	}
	return jsontok.Raw(js, tokens[i+1]), true
}

func parseInt(b []byte) int64 {
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
