package main

import (
	"fmt"
	"strings"

	"github.com/keepmind9/tgembed/internal/bot"
	"github.com/spf13/cobra"
)

var (
	sendChatID    string
	sendParseMode string
	sendSilent    bool
	sendReplyTo   int64
)

var sendCmd = &cobra.Command{
	Use:   "send --chat <chat_id> <text>...",
	Short: "Send one message to a chat",
	Long: `Send a text message to a chat. Text longer than the body buffer allows
is split into several messages.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if sendChatID == "" {
			return bot.ErrInvalidChatID
		}

		config, client, err := setup(cmd)
		if err != nil {
			return err
		}

		opts := config.SendOptions()
		if sendParseMode != "" {
			opts.ParseMode = sendParseMode
		}
		if sendSilent {
			opts.DisableNotification = true
		}
		opts.ReplyToMessageID = sendReplyTo

		tg := bot.NewTelegramBot(client, 0)
		tg.SetSendOptions(opts)
		defer tg.Stop()

		text := strings.Join(args, " ")
		if err := tg.SendMessage(sendChatID, text); err != nil {
			return fmt.Errorf("send failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Message sent to %s (%d bytes)\n", sendChatID, len(text))
		return nil
	},
}

func init() {
	sendCmd.Flags().StringVar(&sendChatID, "chat", "", "Target chat ID")
	sendCmd.Flags().StringVar(&sendParseMode, "parse-mode", "", "Markdown, MarkdownV2 or HTML")
	sendCmd.Flags().BoolVar(&sendSilent, "silent", false, "Send without notification")
	sendCmd.Flags().Int64Var(&sendReplyTo, "reply-to", 0, "Message ID to reply to")
}
