package bot

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/keepmind9/tgembed/internal/jsontok"
	"github.com/keepmind9/tgembed/internal/logger"
	"github.com/keepmind9/tgembed/internal/wire"
	"github.com/keepmind9/tgembed/pkg/constants"
	"github.com/sirupsen/logrus"
)

// PollState is the step of a PollUpdate call
type PollState int

const (
	PollIdle PollState = iota
	PollConnecting
	PollRequesting
	PollAwaitingResponse
	PollParsing
)

func (s PollState) String() string {
	switch s {
	case PollConnecting:
		return "connecting"
	case PollRequesting:
		return "requesting"
	case PollAwaitingResponse:
		return "awaiting-response"
	case PollParsing:
		return "parsing"
	default:
		return "idle"
	}
}

var updateIDKey = []byte(`"update_id":`)

// maxUpdateIDDigits is the length of the largest uint64
const maxUpdateIDDigits = 20

// PollUpdate asks for at most one new message update.
//
// It returns true when a message was received; LastMessage then holds it.
// It returns false with a nil error when no update arrived within the long
// poll. The cursor is advanced and saved before the message is handed out,
// so an update is never delivered twice. A failure before the response is
// framed leaves the cursor untouched; an unreadable update is skipped and
// reported with ErrMalformedPayload. When the new offset cannot be saved the
// update is dropped and ErrCursorNotSaved is returned.
func (c *Client) PollUpdate(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.setState(PollIdle)

	c.setState(PollConnecting)
	if err := c.ensureConnected(ctx); err != nil {
		return false, err
	}

	c.setState(PollRequesting)
	if err := writeGetUpdatesBody(c.body, c.cursor.Next(), c.cfg.LongPoll); err != nil {
		logger.WithField("error", err).Error("get-updates-body-too-large")
		return false, err
	}
	err := c.send(wire.MethodPost, constants.APIMethodGetUpdates, c.body.Bytes())
	c.body.Reset()
	if err != nil {
		return false, err
	}

	c.setState(PollAwaitingResponse)
	payload, err := c.receive(ctx, c.cfg.ResponseTimeout+c.cfg.LongPoll)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"offset": c.cursor.Next(),
			"error":  err,
		}).Warn("poll-failed")
		return false, err
	}
	defer c.finish()

	c.setState(PollParsing)
	return c.parseUpdate(payload)
}

func (c *Client) setState(s PollState) {
	if c.state == s {
		return
	}
	logger.WithFields(logrus.Fields{
		"from": c.state.String(),
		"to":   s.String(),
	}).Debug("poll-state")
	c.state = s
}

// parseUpdate reads the first update of a getUpdates result array
func (c *Client) parseUpdate(payload []byte) (bool, error) {
	n, err := c.parser.Parse(payload, c.tokens)
	if err != nil {
		return c.skipUnreadable(payload, err.Error())
	}
	toks := c.tokens[:n]
	if n == 0 || toks[0].Type != jsontok.Array {
		return c.skipUnreadable(payload, "result is not an array")
	}
	if toks[0].Size == 0 {
		return false, nil
	}
	if toks[1].Type != jsontok.Object {
		return c.skipUnreadable(payload, "update is not an object")
	}

	raw, ok := childValue(payload, toks, 1, "update_id")
	if !ok {
		return c.skipUnreadable(payload, "update has no update_id")
	}
	id, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return c.skipUnreadable(payload, "update_id is not a number")
	}
	advanced, err := c.cursor.Advance(id)
	if err != nil {
		logger.WithField("update_id", id).Warn("update-dropped-cursor-not-saved")
		return false, fmt.Errorf("update %d: %w", id, err)
	}
	if !advanced {
		logger.WithFields(logrus.Fields{
			"update_id": id,
			"next":      c.cursor.Next(),
		}).Warn("stale-update-ignored")
		return false, nil
	}

	c.last.Clear()
	c.last.UpdateID = id

	mk, ok := jsontok.ChildKey(payload, toks, 1, "message")
	if !ok {
		logger.WithField("update_id", id).Info("update-without-message")
		return false, nil
	}
	msg := mk + 1
	if toks[msg].Type != jsontok.Object {
		return false, c.unreadableMessage(id, "message is not an object")
	}

	if v, ok := childValue(payload, toks, msg, "message_id"); ok {
		c.last.MessageID = parseInt(v)
	}
	if v, ok := childValue(payload, toks, msg, "date"); ok {
		c.last.Date = parseInt(v)
	}
	if i, ok := jsontok.ChildKey(payload, toks, msg, "text"); ok && toks[i+1].Type == jsontok.String {
		c.last.Text = c.text(jsontok.Raw(payload, toks[i+1]), constants.MaxTextLength)
	}

	if from, ok := c.subObject(payload, toks, msg, "from"); ok {
		n, err := c.parser.Parse(from, c.subTokens)
		if err != nil {
			return false, c.unreadableMessage(id, "from: "+err.Error())
		}
		c.readUser(&c.last.From, from, c.subTokens[:n], 0)
	}

	chat, ok := c.subObject(payload, toks, msg, "chat")
	if !ok {
		return false, c.unreadableMessage(id, "message has no chat")
	}
	n, err = c.parser.Parse(chat, c.subTokens)
	if err != nil {
		return false, c.unreadableMessage(id, "chat: "+err.Error())
	}
	c.readChat(&c.last.Chat, chat, c.subTokens[:n], 0)

	logger.WithFields(logrus.Fields{
		"update_id":  id,
		"message_id": c.last.MessageID,
		"chat_id":    c.last.Chat.ID,
		"user_id":    c.last.From.ID,
		"text_len":   len(c.last.Text),
	}).Debug("update-received")
	return true, nil
}

// subObject returns the span of the object stored under key in the object
// at index obj
func (c *Client) subObject(js []byte, tokens []jsontok.Token, obj int, key string) ([]byte, bool) {
	i, ok := jsontok.ChildKey(js, tokens, obj, key)
	if !ok || tokens[i+1].Type != jsontok.Object {
		return nil, false
	}
	return jsontok.Raw(js, tokens[i+1]), true
}

func (c *Client) readChat(ch *Chat, js []byte, tokens []jsontok.Token, obj int) {
	if v, ok := childValue(js, tokens, obj, "id"); ok {
		ch.ID = parseInt(v)
	}
	if v, ok := childValue(js, tokens, obj, "type"); ok {
		ch.Type = c.text(v, constants.MaxChatTypeLength)
	}
	if v, ok := childValue(js, tokens, obj, "title"); ok {
		ch.Title = c.text(v, constants.MaxChatTitleLength)
	}
	if v, ok := childValue(js, tokens, obj, "username"); ok {
		ch.Username = c.text(v, constants.MaxUsernameLength)
	}
	if v, ok := childValue(js, tokens, obj, "first_name"); ok {
		ch.FirstName = c.text(v, constants.MaxUserLength)
	}
	if v, ok := childValue(js, tokens, obj, "last_name"); ok {
		ch.LastName = c.text(v, constants.MaxUserLength)
	}
	if v, ok := childValue(js, tokens, obj, "all_members_are_administrators"); ok {
		ch.AllMembersAreAdministrators = string(v) == "true"
	}
}

// skipUnreadable handles an update that could not be tokenized far enough
// to read its id. The id is recovered by a plain scan when possible so the
// next poll moves past the update instead of fetching it again.
func (c *Client) skipUnreadable(payload []byte, reason string) (bool, error) {
	fields := logrus.Fields{
		"reason":      reason,
		"payload_len": len(payload),
		"next":        c.cursor.Next(),
	}
	id, ok := recoverUpdateID(payload)
	if ok {
		ok, _ = c.cursor.Advance(id)
	}
	if ok {
		fields["skipped_update_id"] = id
		logger.WithFields(fields).Warn("skipping-unreadable-update")
	} else {
		logger.WithFields(fields).Error("unreadable-update-not-skipped")
	}
	return false, fmt.Errorf("%w: %s", ErrMalformedPayload, reason)
}

func (c *Client) unreadableMessage(id uint64, reason string) error {
	logger.WithFields(logrus.Fields{
		"update_id": id,
		"reason":    reason,
	}).Warn("unreadable-message-skipped")
	return fmt.Errorf("%w: update %d: %s", ErrMalformedPayload, id, reason)
}

// recoverUpdateID finds the first "update_id" value by scanning the raw
// payload
func recoverUpdateID(payload []byte) (uint64, bool) {
	i := bytes.Index(payload, updateIDKey)
	if i < 0 {
		return 0, false
	}
	rest := bytes.TrimLeft(payload[i+len(updateIDKey):], " \t\r\n")
	end := 0
	for end < len(rest) && end < maxUpdateIDDigits && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	id, err := strconv.ParseUint(string(rest[:end]), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
