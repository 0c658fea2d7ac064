package bot

import (
	"fmt"
	"time"

	"github.com/keepmind9/tgembed/internal/logger"
	"github.com/keepmind9/tgembed/internal/wire"
)

// Parse modes accepted by sendMessage
const (
	ParseModeMarkdown   = "Markdown"
	ParseModeMarkdownV2 = "MarkdownV2"
	ParseModeHTML       = "HTML"
)

// SendOptions are the optional sendMessage fields
type SendOptions struct {
	ParseMode             string
	DisableWebPagePreview bool
	DisableNotification   bool
	// ReplyToMessageID is omitted when zero.
	ReplyToMessageID int64
}

func validParseMode(mode string) bool {
	switch mode {
	case ParseModeMarkdown, ParseModeMarkdownV2, ParseModeHTML:
		return true
	}
	return false
}

// writeSendMessageBody writes the sendMessage JSON body into buf. Fields are
// written in a fixed order; text is escaped.
func writeSendMessageBody(buf *wire.Buffer, chatID, text string, opts SendOptions) error {
	buf.Reset()
	buf.WriteString(`{"chat_id":`)
	buf.AppendJSONString(chatID)
	buf.WriteString(`, "text":`)
	buf.AppendJSONString(text)

	if opts.ParseMode != "" {
		if validParseMode(opts.ParseMode) {
			buf.WriteString(`, "parse_mode":`)
			buf.AppendJSONString(opts.ParseMode)
		} else {
			logger.WithField("parse_mode", opts.ParseMode).Warn("unsupported-parse-mode-ignored")
		}
	}
	if opts.DisableWebPagePreview {
		buf.WriteString(`, "disable_web_page_preview":true`)
	}
	if opts.DisableNotification {
		buf.WriteString(`, "disable_notification":true`)
	}
	if opts.ReplyToMessageID != 0 {
		buf.WriteString(`, "reply_to_message_id":`)
		buf.AppendInt(opts.ReplyToMessageID)
	}
	buf.WriteByte('}')

	if err := buf.Err(); err != nil {
		buf.Reset()
		return fmt.Errorf("%w: sendMessage body: %w", wire.ErrRequestTooLarge, err)
	}
	return nil
}

// writeGetUpdatesBody writes the getUpdates JSON body into buf. One message
// update is requested per poll.
func writeGetUpdatesBody(buf *wire.Buffer, offset uint64, longPoll time.Duration) error {
	buf.Reset()
	buf.WriteString(`{"offset":`)
	buf.AppendUint(offset)
	buf.WriteString(`, "limit":1, "timeout":`)
	buf.AppendUint(uint64(longPoll / time.Second))
	buf.WriteString(`, "allowed_updates":["message"]}`)

	if err := buf.Err(); err != nil {
		buf.Reset()
		return fmt.Errorf("%w: getUpdates body: %w", wire.ErrRequestTooLarge, err)
	}
	return nil
}
