package main

import (
	"fmt"

	"github.com/keepmind9/tgembed/internal/bot"
	"github.com/keepmind9/tgembed/internal/core"
	"github.com/keepmind9/tgembed/internal/logger"
	"github.com/keepmind9/tgembed/internal/store"
	"github.com/keepmind9/tgembed/internal/transport"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// loadConfig resolves, loads and validates the configuration file
func loadConfig(cmd *cobra.Command) (*core.Config, string, error) {
	path, err := resolveConfigPath(cmd)
	if err != nil {
		return nil, "", err
	}
	config, err := core.LoadConfig(path)
	if err != nil {
		return nil, path, fmt.Errorf("failed to load config: %w", err)
	}
	return config, path, nil
}

// initLogger initializes the global logger from the logging section
func initLogger(config *core.Config, configPath string) error {
	logConfig := logger.Config{
		Level:        config.Logging.Level,
		File:         config.Logging.File,
		MaxSize:      config.Logging.MaxSize,
		MaxBackups:   config.Logging.MaxBackups,
		MaxAge:       config.Logging.MaxAge,
		Compress:     config.Logging.Compress,
		EnableStdout: config.Logging.EnableStdout,
	}
	if err := logger.InitLogger(logConfig); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"config_file": configPath,
		"log_level":   config.Logging.Level,
		"log_file":    config.Logging.File,
	}).Info("logger-initialized")
	return nil
}

// newClient builds the TLS transport, the update cursor and the client
func newClient(config *core.Config) (*bot.Client, error) {
	tr, err := transport.NewTLSTransport(config.TransportConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	var cursorStore bot.CursorStore
	if config.Bot.CursorFile != "" {
		cursorStore = store.NewCursorFile(config.Bot.CursorFile)
	}
	cursor, err := bot.NewUpdateCursor(cursorStore)
	if err != nil {
		return nil, err
	}

	client, err := bot.NewClient(config.ClientConfig(), tr, cursor)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"host":            config.Bot.Host,
		"port":            config.Bot.Port,
		"token":           bot.MaskToken(config.Bot.Token),
		"keep_connection": config.ClientConfig().KeepConnection,
		"cursor_file":     config.Bot.CursorFile,
		"next_offset":     cursor.Next(),
	}).Info("telegram-client-created")
	return client, nil
}

// newSendClient builds a client with its own transport for outgoing
// messages, so replies do not queue behind a long poll
func newSendClient(config *core.Config) (*bot.Client, error) {
	tr, err := transport.NewTLSTransport(config.TransportConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create send transport: %w", err)
	}
	client, err := bot.NewClient(config.ClientConfig(), tr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create send client: %w", err)
	}
	return client, nil
}

// setup loads the config, initializes logging and creates the client for a
// one-shot command. Console logs go to stderr so stdout carries only the
// command output.
func setup(cmd *cobra.Command) (*core.Config, *bot.Client, error) {
	config, path, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if err := initLogger(config, path); err != nil {
		return nil, nil, err
	}
	if config.Logging.File == "" {
		logger.SetOutput(cmd.ErrOrStderr())
	}
	client, err := newClient(config)
	if err != nil {
		return nil, nil, err
	}
	return config, client, nil
}
