// Package core provides the message engine and configuration management for tgembed.
//
// The core package connects the bounded Telegram client to a small command
// and echo loop. It handles:
//
//   - Configuration loading and validation (from YAML files)
//   - Access control through a per-platform whitelist
//   - Special commands and echo replies
//   - Outgoing message rate limiting
//
// # Configuration
//
// Configuration is loaded from a YAML file with the following sections:
//
//   - bot: Bot API endpoint, token and connection policy
//   - http: exchange buffer sizes and timeouts
//   - engine: poll interval, echo mode and send rate
//   - security: access control and whitelisting
//   - logging: log configuration
//
// # Example Configuration
//
//	bot:
//	  token: "${TELEGRAM_BOT_TOKEN}"
//	  keep_connection: true
//	  cursor_file: "~/.config/tgembed/cursor.yaml"
//	http:
//	  response_timeout: "3s"
//	  long_poll: "10s"
//	engine:
//	  echo: true
//	security:
//	  whitelist_enabled: true
//	  allowed_users:
//	    telegram: ["123456789"]
//	logging:
//	  level: info
package core

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/keepmind9/tgembed/internal/bot"
	"github.com/keepmind9/tgembed/internal/transport"
	"github.com/keepmind9/tgembed/pkg/constants"
	"gopkg.in/yaml.v3"
)

const (
	DefaultLogLevel      = "info"
	DefaultLogMaxBackups = 5

	DefaultPollInterval  = "1s"
	DefaultCommandPrefix = "/"

	// Telegram refuses long poll timeouts above 50 seconds
	MaxLongPoll = 50 * time.Second
)

// LoadConfig loads configuration from file and expands environment variables
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expandedData, err := expandEnv(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to expand environment variables: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// expandEnv replaces ${VAR_NAME} patterns with environment variable values
func expandEnv(input string) (string, error) {
	var missingVars []string

	result := os.Expand(input, func(key string) string {
		if val := os.Getenv(key); val != "" {
			return val
		}
		missingVars = append(missingVars, key)
		return ""
	})

	if len(missingVars) > 0 {
		return "", fmt.Errorf("missing required environment variables: %s",
			strings.Join(missingVars, ", "))
	}

	return result, nil
}

// validateConfig applies defaults and checks ranges
func validateConfig(config *Config) error {
	if err := validateBot(&config.Bot); err != nil {
		return err
	}
	if err := validateHTTP(&config.HTTP); err != nil {
		return err
	}
	if err := validateEngine(&config.Engine); err != nil {
		return err
	}

	if config.Security.WhitelistEnabled {
		if len(config.Security.AllowedUsers) == 0 {
			return fmt.Errorf("security.allowed_users cannot be empty when whitelist is enabled")
		}
	}

	if config.Logging.Level == "" {
		config.Logging.Level = DefaultLogLevel
	}
	if config.Logging.MaxSize == 0 {
		config.Logging.MaxSize = constants.DefaultLogMaxSize
	}
	if config.Logging.MaxBackups == 0 {
		config.Logging.MaxBackups = DefaultLogMaxBackups
	}
	if config.Logging.MaxAge == 0 {
		config.Logging.MaxAge = constants.DefaultLogMaxAge
	}
	// Without a file, stdout is the only place logs can go
	if config.Logging.File == "" {
		config.Logging.EnableStdout = true
	}

	return nil
}

func validateBot(b *BotConfig) error {
	if b.Token == "" {
		return fmt.Errorf("bot.token is required")
	}
	if strings.ContainsAny(b.Token, " /\r\n") {
		return fmt.Errorf("bot.token contains characters not allowed in a request path")
	}
	if b.Host == "" {
		b.Host = constants.DefaultAPIHost
	}
	if b.Port == 0 {
		b.Port = constants.DefaultAPIPort
	}
	if b.Port < 1 || b.Port > 65535 {
		return fmt.Errorf("bot.port must be between 1 and 65535 (got %d)", b.Port)
	}
	if b.KeepConnection == nil {
		keep := true
		b.KeepConnection = &keep
	}
	if b.CursorFile != "" {
		path, err := expandHome(b.CursorFile)
		if err != nil {
			return err
		}
		b.CursorFile = path
	}
	if b.CAFile != "" {
		path, err := expandHome(b.CAFile)
		if err != nil {
			return err
		}
		b.CAFile = path
	}
	return nil
}

func validateHTTP(h *HTTPConfig) error {
	if h.ExchangeBufferSize == 0 {
		h.ExchangeBufferSize = constants.DefaultExchangeBufferSize
	}
	if h.BodyBufferSize == 0 {
		h.BodyBufferSize = constants.DefaultBodyBufferSize
	}
	if h.MaxTokens == 0 {
		h.MaxTokens = constants.DefaultMaxTokens
	}
	if h.MaxSubTokens == 0 {
		h.MaxSubTokens = constants.DefaultMaxSubTokens
	}
	if h.UserAgent == "" {
		h.UserAgent = constants.DefaultUserAgent
	}

	if h.ExchangeBufferSize < constants.MinExchangeBufferSize {
		return fmt.Errorf("http.exchange_buffer_size must be at least %d (got %d)", constants.MinExchangeBufferSize, h.ExchangeBufferSize)
	}
	if h.BodyBufferSize < constants.MinBodyBufferSize {
		return fmt.Errorf("http.body_buffer_size must be at least %d (got %d)", constants.MinBodyBufferSize, h.BodyBufferSize)
	}
	if h.BodyBufferSize >= h.ExchangeBufferSize {
		return fmt.Errorf("http.body_buffer_size must be smaller than http.exchange_buffer_size (%d >= %d)", h.BodyBufferSize, h.ExchangeBufferSize)
	}
	if h.MaxTokens < 8 || h.MaxTokens > 4096 {
		return fmt.Errorf("http.max_tokens must be between 8 and 4096 (got %d)", h.MaxTokens)
	}
	if h.MaxSubTokens < 8 || h.MaxSubTokens > h.MaxTokens {
		return fmt.Errorf("http.max_sub_tokens must be between 8 and max_tokens (got %d)", h.MaxSubTokens)
	}

	durations := []struct {
		name  string
		value *string
		def   time.Duration
		min   time.Duration
		max   time.Duration
	}{
		{"response_timeout", &h.ResponseTimeout, constants.DefaultResponseTimeout, 100 * time.Millisecond, 2 * time.Minute},
		{"chunk_timeout", &h.ChunkTimeout, constants.DefaultChunkTimeout, 10 * time.Millisecond, 30 * time.Second},
		{"connect_timeout", &h.ConnectTimeout, constants.DefaultConnectTimeout, 100 * time.Millisecond, 2 * time.Minute},
		{"long_poll", &h.LongPoll, constants.DefaultLongPoll, time.Second, MaxLongPoll},
	}
	for _, d := range durations {
		if *d.value == "" {
			*d.value = d.def.String()
		}
		v, err := time.ParseDuration(*d.value)
		if err != nil {
			return fmt.Errorf("invalid http.%s: %w", d.name, err)
		}
		if v < d.min || v > d.max {
			return fmt.Errorf("http.%s must be between %v and %v (got %v)", d.name, d.min, d.max, v)
		}
	}
	return nil
}

func validateEngine(e *EngineConfig) error {
	if e.PollInterval == "" {
		e.PollInterval = DefaultPollInterval
	}
	interval, err := time.ParseDuration(e.PollInterval)
	if err != nil {
		return fmt.Errorf("invalid engine.poll_interval: %w", err)
	}
	if interval < 10*time.Millisecond {
		return fmt.Errorf("engine.poll_interval must be at least 10ms (got %v)", interval)
	}
	if interval > 60*time.Second {
		return fmt.Errorf("engine.poll_interval is too large (max 60s, got %v)", interval)
	}

	if e.CommandPrefix == "" {
		e.CommandPrefix = DefaultCommandPrefix
	}
	if e.SendRate == 0 {
		e.SendRate = constants.DefaultSendRate
	}
	if e.SendRate < 0 {
		return fmt.Errorf("engine.send_rate must be positive (got %v)", e.SendRate)
	}
	if e.SendBurst == 0 {
		e.SendBurst = constants.DefaultSendBurst
	}
	if e.SendBurst < 1 {
		return fmt.Errorf("engine.send_burst must be at least 1 (got %d)", e.SendBurst)
	}

	switch e.ParseMode {
	case "", bot.ParseModeMarkdown, bot.ParseModeMarkdownV2, bot.ParseModeHTML:
	default:
		return fmt.Errorf("engine.parse_mode must be one of Markdown, MarkdownV2, HTML (got %q)", e.ParseMode)
	}
	return nil
}

// expandHome expands ~ to user's home directory
func expandHome(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return home + path[1:], nil
	}
	return path, nil
}

// durationOr parses a validated duration string
func durationOr(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// ClientConfig builds the Bot API client settings
func (c *Config) ClientConfig() bot.ClientConfig {
	keep := true
	if c.Bot.KeepConnection != nil {
		keep = *c.Bot.KeepConnection
	}
	return bot.ClientConfig{
		Token:              c.Bot.Token,
		Host:               c.Bot.Host,
		Port:               c.Bot.Port,
		UserAgent:          c.HTTP.UserAgent,
		KeepConnection:     keep,
		StrictFraming:      c.Bot.StrictFraming,
		ExchangeBufferSize: c.HTTP.ExchangeBufferSize,
		BodyBufferSize:     c.HTTP.BodyBufferSize,
		MaxTokens:          c.HTTP.MaxTokens,
		MaxSubTokens:       c.HTTP.MaxSubTokens,
		ResponseTimeout:    durationOr(c.HTTP.ResponseTimeout, constants.DefaultResponseTimeout),
		ChunkTimeout:       durationOr(c.HTTP.ChunkTimeout, constants.DefaultChunkTimeout),
		LongPoll:           durationOr(c.HTTP.LongPoll, constants.DefaultLongPoll),
	}
}

// TransportConfig builds the TLS transport settings
func (c *Config) TransportConfig() transport.Config {
	return transport.Config{
		CAFile:             c.Bot.CAFile,
		InsecureSkipVerify: c.Bot.InsecureSkipVerify,
		ConnectTimeout:     durationOr(c.HTTP.ConnectTimeout, constants.DefaultConnectTimeout),
	}
}

// SendOptions builds the options applied to every outgoing message
func (c *Config) SendOptions() bot.SendOptions {
	return bot.SendOptions{
		ParseMode:             c.Engine.ParseMode,
		DisableWebPagePreview: c.Engine.DisableWebPagePreview,
		DisableNotification:   c.Engine.DisableNotification,
	}
}

// PollInterval returns the pause after an empty poll
func (c *Config) PollInterval() time.Duration {
	return durationOr(c.Engine.PollInterval, constants.DefaultEnginePollInterval)
}

// IsUserAuthorized checks if a user is in the whitelist
func (c *Config) IsUserAuthorized(platform, userID string) bool {
	// If whitelist is disabled, allow all users (warning: not recommended for production)
	if !c.Security.WhitelistEnabled {
		return true
	}

	userIDs, exists := c.Security.AllowedUsers[platform]
	if !exists {
		return false
	}

	for _, uid := range userIDs {
		if uid == userID {
			return true
		}
	}

	return false
}

// IsAdmin checks if a user is an admin
func (c *Config) IsAdmin(platform, userID string) bool {
	admins, exists := c.Security.Admins[platform]
	if !exists {
		return false
	}

	for _, adminID := range admins {
		if adminID == userID {
			return true
		}
	}

	return false
}
