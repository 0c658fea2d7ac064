package core

// Config represents the complete tgembed configuration structure
type Config struct {
	Bot      BotConfig      `yaml:"bot"`
	HTTP     HTTPConfig     `yaml:"http"`
	Engine   EngineConfig   `yaml:"engine"`
	Security SecurityConfig `yaml:"security"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// BotConfig represents the Bot API endpoint and connection settings
type BotConfig struct {
	Token              string `yaml:"token"`
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	KeepConnection     *bool  `yaml:"keep_connection"` // Default: true
	StrictFraming      bool   `yaml:"strict_framing"`  // Find ok/result by key instead of position
	CAFile             string `yaml:"ca_file"`         // PEM bundle replacing the system roots
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
	CursorFile         string `yaml:"cursor_file"` // Persist the update offset here (optional)
}

// HTTPConfig represents the bounded exchange settings
type HTTPConfig struct {
	ExchangeBufferSize int    `yaml:"exchange_buffer_size"`
	BodyBufferSize     int    `yaml:"body_buffer_size"`
	MaxTokens          int    `yaml:"max_tokens"`
	MaxSubTokens       int    `yaml:"max_sub_tokens"`
	ResponseTimeout    string `yaml:"response_timeout"` // e.g. "3s"
	ChunkTimeout       string `yaml:"chunk_timeout"`    // e.g. "500ms"
	ConnectTimeout     string `yaml:"connect_timeout"`  // e.g. "5s"
	LongPoll           string `yaml:"long_poll"`        // e.g. "10s"
	UserAgent          string `yaml:"user_agent"`
}

// EngineConfig represents the message loop settings
type EngineConfig struct {
	PollInterval          string  `yaml:"poll_interval"`  // Pause after an empty poll (default: "1s")
	Echo                  bool    `yaml:"echo"`           // Echo text messages back to the chat
	CommandPrefix         string  `yaml:"command_prefix"` // Default: "/"
	SendRate              float64 `yaml:"send_rate"`      // Outgoing messages per second
	SendBurst             int     `yaml:"send_burst"`
	ParseMode             string  `yaml:"parse_mode"` // Markdown, MarkdownV2 or HTML (optional)
	DisableWebPagePreview bool    `yaml:"disable_web_page_preview"`
	DisableNotification   bool    `yaml:"disable_notification"`
}

// SecurityConfig represents security and access control configuration
type SecurityConfig struct {
	WhitelistEnabled bool                `yaml:"whitelist_enabled"`
	AllowedUsers     map[string][]string `yaml:"allowed_users"`
	Admins           map[string][]string `yaml:"admins"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`         // debug, info, warn, error
	File         string `yaml:"file"`          // Log file path
	MaxSize      int    `yaml:"max_size"`      // Single file max size in MB (default: 100)
	MaxBackups   int    `yaml:"max_backups"`   // Number of backups to keep (default: 5)
	MaxAge       int    `yaml:"max_age"`       // Maximum days to retain (default: 30)
	Compress     bool   `yaml:"compress"`      // Whether to compress old logs
	EnableStdout bool   `yaml:"enable_stdout"` // Also output to stdout
}
