package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/keepmind9/tgembed/internal/bot"
	"github.com/spf13/cobra"
)

var (
	pollCount int
	pollJSON  bool
)

// UpdateOutput is one received message printed by poll
type UpdateOutput struct {
	UpdateID  uint64 `json:"update_id"`
	MessageID int64  `json:"message_id"`
	Date      int64  `json:"date"`
	ChatID    string `json:"chat_id"`
	ChatType  string `json:"chat_type"`
	UserID    int64  `json:"user_id"`
	Username  string `json:"username,omitempty"`
	Text      string `json:"text"`
}

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Poll for updates and print them",
	Long: `Run getUpdates cycles and print each received message. Received
updates are consumed: the cursor moves past them and, with cursor_file set,
the new offset is saved.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if pollCount < 1 {
			return fmt.Errorf("--count must be at least 1")
		}

		_, client, err := setup(cmd)
		if err != nil {
			return err
		}
		defer client.Disconnect()

		out := cmd.OutOrStdout()
		received := 0
		for i := 0; i < pollCount; i++ {
			got, err := client.PollUpdate(cmd.Context())
			if err != nil {
				return fmt.Errorf("poll failed: %w", err)
			}
			if !got {
				continue
			}
			received++
			if err := printUpdate(cmd, client.LastMessage()); err != nil {
				return err
			}
		}

		if !pollJSON {
			fmt.Fprintf(out, "%d update(s) received, next offset %d\n", received, client.Cursor())
		}
		return nil
	},
}

func printUpdate(cmd *cobra.Command, m bot.Message) error {
	update := UpdateOutput{
		UpdateID:  m.UpdateID,
		MessageID: m.MessageID,
		Date:      m.Date,
		ChatID:    m.ChatID(),
		ChatType:  m.Chat.Type,
		UserID:    m.From.ID,
		Username:  m.From.Username,
		Text:      m.Text,
	}

	out := cmd.OutOrStdout()
	if pollJSON {
		return json.NewEncoder(out).Encode(update)
	}
	who := update.Username
	if who == "" {
		who = fmt.Sprintf("%d", update.UserID)
	}
	fmt.Fprintf(out, "[%d] %s %s@%s: %s\n",
		update.UpdateID, time.Unix(update.Date, 0).UTC().Format(time.RFC3339), who, update.ChatID, update.Text)
	return nil
}

func init() {
	pollCmd.Flags().IntVarP(&pollCount, "count", "n", 1, "Number of poll cycles")
	pollCmd.Flags().BoolVar(&pollJSON, "json", false, "Output one JSON object per update")
}
