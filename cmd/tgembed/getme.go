package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var getmeJSON bool

// IdentityOutput is the bot identity printed by getme
type IdentityOutput struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

var getmeCmd = &cobra.Command{
	Use:   "getme",
	Short: "Check the bot token against the Bot API",
	Long:  "Call getMe once and print the identity of the bot the token belongs to",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, client, err := setup(cmd)
		if err != nil {
			return err
		}
		defer client.Disconnect()

		ctx, cancel := context.WithTimeout(cmd.Context(), config.ClientConfig().ResponseTimeout+config.TransportConfig().ConnectTimeout)
		defer cancel()

		me, err := client.GetMe(ctx)
		if err != nil {
			return fmt.Errorf("identity check failed: %w", err)
		}

		out := cmd.OutOrStdout()
		identity := IdentityOutput{ID: me.ID, IsBot: me.IsBot, FirstName: me.FirstName, Username: me.Username}
		if getmeJSON {
			return json.NewEncoder(out).Encode(identity)
		}
		fmt.Fprintln(out, "✓ Bot identity confirmed")
		fmt.Fprintf(out, "  ID:       %d\n", identity.ID)
		fmt.Fprintf(out, "  Name:     %s\n", identity.FirstName)
		fmt.Fprintf(out, "  Username: @%s\n", identity.Username)
		return nil
	},
}

func init() {
	getmeCmd.Flags().BoolVar(&getmeJSON, "json", false, "Output in JSON format")
}
