package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configFile string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:   "tgembed",
	Short: "tgembed is a bounded-memory Telegram bot client",
	Long: `tgembed talks to the Telegram Bot API over HTTPS inside fixed-size
buffers. It long-polls for messages one update at a time, answers a few
built-in commands and can echo text back to the chat.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadEnvFile(envFile)
	},
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadEnvFile exports the variables of a dotenv file before the config is
// expanded. Variables already set in the environment win.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// defaultConfigLocations are tried in order when --config is not given
func defaultConfigLocations() []string {
	return []string{
		"config.yaml",
		filepath.Join(os.Getenv("HOME"), ".config/tgembed/config.yaml"),
		"/etc/tgembed/config.yaml",
	}
}

// resolveConfigPath returns the --config value, or the first default
// location that exists
func resolveConfigPath(cmd *cobra.Command) (string, error) {
	if cmd.Flags().Changed("config") {
		return configFile, nil
	}
	for _, loc := range defaultConfigLocations() {
		if _, err := os.Stat(loc); err == nil {
			return loc, nil
		}
	}
	return "", fmt.Errorf("no configuration file found; specify one with --config or create ./config.yaml, ~/.config/tgembed/config.yaml or /etc/tgembed/config.yaml")
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.yaml", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment variables from a dotenv file")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(getmeCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)
}
