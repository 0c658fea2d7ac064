package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/keepmind9/tgembed/internal/bot"
	"github.com/keepmind9/tgembed/internal/core"
	"github.com/keepmind9/tgembed/internal/logger"
	"github.com/keepmind9/tgembed/internal/transport"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the tgembed bot",
	Long:  "Start the bot: long-poll Telegram for messages, answer commands and echo text",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, path, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := initLogger(config, path); err != nil {
			return err
		}

		client, err := newClient(config)
		if err != nil {
			return err
		}

		sender, err := newSendClient(config)
		if err != nil {
			return err
		}

		tg := bot.NewTelegramBot(client, config.PollInterval())
		tg.SetSender(sender)
		tg.SetSendOptions(config.SendOptions())

		engine := core.NewEngine(config)
		engine.RegisterBotAdapter("telegram", tg)

		logger.WithFields(logrus.Fields{
			"echo":              config.Engine.Echo,
			"command_prefix":    config.Engine.CommandPrefix,
			"whitelist_enabled": config.Security.WhitelistEnabled,
			"poll_interval":     config.Engine.PollInterval,
		}).Info("tgembed-starting")

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		// Setup signal handling for graceful shutdown
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		// SIGHUP marks the link down so both clients reconnect
		hupChan := make(chan os.Signal, 1)
		signal.Notify(hupChan, syscall.SIGHUP)
		defer signal.Stop(hupChan)

		engineErrChan := make(chan error, 1)
		go func() {
			engineErrChan <- engine.Run(ctx)
		}()

		for {
			select {
			case <-hupChan:
				logger.Info("link-reset-requested")
				resetLink(client, sender)
			case sig := <-sigChan:
				logger.WithField("signal", sig.String()).Info("shutting-down-gracefully")
				cancel()
				if err := engine.Stop(); err != nil {
					logger.WithField("error", err).Error("error-during-shutdown")
				}
				<-engineErrChan
				logger.Info("tgembed-stopped")
				return nil
			case err := <-engineErrChan:
				engine.Stop()
				if err != nil {
					return fmt.Errorf("engine error: %w", err)
				}
				logger.Info("tgembed-stopped")
				return nil
			}
		}
	},
}

// resetLink delivers a link-down event to every client transport
func resetLink(clients ...*bot.Client) {
	for _, c := range clients {
		if !c.NotifyLink(transport.LinkDown) {
			logger.Warn("transport-ignores-link-events")
		}
	}
}
