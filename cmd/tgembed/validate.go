package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/keepmind9/tgembed/internal/bot"
	"github.com/keepmind9/tgembed/internal/core"
	"github.com/keepmind9/tgembed/internal/transport"
	"github.com/spf13/cobra"
)

var (
	validateShow   bool
	validateJSON   bool
	validateStrict bool
)

var errInvalidConfig = errors.New("configuration is invalid")

// ValidationResult represents the validation result
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Config   string   `json:"config"`
	Endpoint string   `json:"endpoint,omitempty"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate tgembed configuration file",
	Long: `Validate the tgembed configuration file without contacting Telegram.

This command checks:
  - YAML syntax
  - Environment variable expansion
  - Required fields and value ranges
  - Buffer sizes against the fixed request layout

Exit codes:
  0 - Configuration is valid
  1 - Configuration has errors (or warnings with --strict)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		configPath, err := resolveConfigPath(cmd)
		if err != nil {
			result := ValidationResult{Valid: false, Errors: []string{err.Error()}}
			outputValidationResult(out, result, validateJSON)
			return errInvalidConfig
		}

		config, err := core.LoadConfig(configPath)
		if err == nil {
			err = checkClient(config)
		}
		if err != nil {
			result := ValidationResult{
				Valid:  false,
				Config: configPath,
				Errors: []string{err.Error()},
			}
			outputValidationResult(out, result, validateJSON)
			return errInvalidConfig
		}

		result := ValidationResult{
			Valid:    true,
			Config:   configPath,
			Endpoint: fmt.Sprintf("%s:%d", config.Bot.Host, config.Bot.Port),
			Warnings: validateConfigDetails(config),
		}
		if validateStrict && len(result.Warnings) > 0 {
			result.Valid = false
		}

		if validateShow && !validateJSON {
			showConfig(out, config, configPath)
		}

		outputValidationResult(out, result, validateJSON)

		if !result.Valid {
			return errInvalidConfig
		}
		return nil
	},
}

func showConfig(out io.Writer, config *core.Config, configPath string) {
	cc := config.ClientConfig()
	fmt.Fprintf(out, "✓ Configuration loaded: %s\n\n", configPath)
	fmt.Fprintf(out, "Bot:\n")
	fmt.Fprintf(out, "  - token: %s\n", bot.MaskToken(config.Bot.Token))
	fmt.Fprintf(out, "  - endpoint: %s:%d\n", config.Bot.Host, config.Bot.Port)
	fmt.Fprintf(out, "  - keep_connection: %v\n", cc.KeepConnection)
	fmt.Fprintf(out, "  - strict_framing: %v\n", cc.StrictFraming)
	fmt.Fprintf(out, "\nHTTP:\n")
	fmt.Fprintf(out, "  - buffers: exchange %d, body %d\n", cc.ExchangeBufferSize, cc.BodyBufferSize)
	fmt.Fprintf(out, "  - tokens: %d/%d\n", cc.MaxTokens, cc.MaxSubTokens)
	fmt.Fprintf(out, "  - timeouts: response %v, chunk %v, long poll %v\n", cc.ResponseTimeout, cc.ChunkTimeout, cc.LongPoll)
	fmt.Fprintf(out, "\nEngine:\n")
	fmt.Fprintf(out, "  - echo: %v\n", config.Engine.Echo)
	fmt.Fprintf(out, "  - poll_interval: %s\n", config.Engine.PollInterval)
	fmt.Fprintf(out, "  - send_rate: %v/s (burst %d)\n", config.Engine.SendRate, config.Engine.SendBurst)
	fmt.Fprintln(out)
}

func outputValidationResult(out io.Writer, result ValidationResult, jsonFormat bool) {
	if jsonFormat {
		output, err := json.Marshal(result)
		if err != nil {
			fmt.Fprintf(out, "{\"error\": \"failed to marshal json: %v\"}\n", err)
			return
		}
		fmt.Fprintln(out, string(output))
		return
	}

	if result.Valid {
		fmt.Fprintln(out, "✓ Configuration is valid")
		fmt.Fprintf(out, "  - Config: %s\n", result.Config)
		fmt.Fprintf(out, "  - Endpoint: %s\n", result.Endpoint)
		if len(result.Warnings) > 0 {
			fmt.Fprintln(out, "\n⚠️  Warnings:")
			for _, warning := range result.Warnings {
				fmt.Fprintf(out, "  - %s\n", warning)
			}
		}
		return
	}

	fmt.Fprintln(out, "❌ Configuration validation failed:")
	if len(result.Errors) > 0 {
		fmt.Fprintln(out, "\nErrors:")
		for _, errMsg := range result.Errors {
			fmt.Fprintf(out, "  - %s\n", errMsg)
		}
	}
	if len(result.Warnings) > 0 {
		fmt.Fprintln(out, "\nWarnings:")
		for _, warning := range result.Warnings {
			fmt.Fprintf(out, "  - %s\n", warning)
		}
	}
}

func validateConfigDetails(config *core.Config) []string {
	var warnings []string

	if !config.Security.WhitelistEnabled {
		warnings = append(warnings, "Whitelist is disabled - this is a security risk")
	}
	if len(config.Security.Admins) == 0 {
		warnings = append(warnings, "No admins configured - the status command is unavailable")
	}
	if config.Bot.InsecureSkipVerify {
		warnings = append(warnings, "Certificate verification is disabled - the bot token can be intercepted")
	}
	if config.Bot.CursorFile == "" {
		warnings = append(warnings, "No cursor_file configured - unconfirmed updates are delivered again after a restart")
	}
	if !config.Engine.Echo {
		warnings = append(warnings, "Echo is disabled - the bot only answers commands")
	}

	return warnings
}

// checkClient builds the transport and client without connecting. This
// loads ca_file and runs the buffer checks of the client constructor.
func checkClient(config *core.Config) error {
	tr, err := transport.NewTLSTransport(config.TransportConfig())
	if err != nil {
		return err
	}
	_, err = bot.NewClient(config.ClientConfig(), tr, nil)
	return err
}

func init() {
	validateCmd.Flags().BoolVar(&validateShow, "show", false, "Show full configuration details")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "Output in JSON format")
	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "Treat warnings as errors")
}
