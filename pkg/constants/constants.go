package constants

import "time"

// Remote endpoint
const (
	// DefaultAPIHost is the Bot API host name
	DefaultAPIHost = "api.telegram.org"
	// DefaultAPIPort is the HTTPS port of the Bot API
	DefaultAPIPort = 443
	// DefaultUserAgent is sent with every request
	DefaultUserAgent = "tgembed"
	// AcceptHeaderValue is the fixed Accept header value
	AcceptHeaderValue = "text/html,application/xml,application/json"
)

// Bot API methods
const (
	APIMethodGetMe       = "getMe"
	APIMethodSendMessage = "sendMessage"
	APIMethodGetUpdates  = "getUpdates"
)

// Exchange buffer and token arena sizes
const (
	// DefaultExchangeBufferSize holds one request and later its response
	DefaultExchangeBufferSize = 4096
	// DefaultBodyBufferSize holds a POST body while the request is staged
	DefaultBodyBufferSize = 1024
	// MaxURILength bounds the request path
	MaxURILength = 128
	// MinExchangeBufferSize must fit the largest fixed request header
	MinExchangeBufferSize = 512
	// MinBodyBufferSize must fit the getUpdates body
	MinBodyBufferSize = 128
	// DefaultMaxTokens is the top-level JSON token arena size
	DefaultMaxTokens = 128
	// DefaultMaxSubTokens is the nested object token arena size
	DefaultMaxSubTokens = 64
	// MaxValueLength bounds a copied top-level value
	MaxValueLength = 1024
	// MaxSubValueLength bounds a copied sub-object value
	MaxSubValueLength = 512
)

// Message record field limits
const (
	MaxIDLength           = 24
	MaxUserLength         = 32
	MaxUsernameLength     = 32
	MaxLanguageCodeLength = 8
	MaxChatTypeLength     = 16
	MaxChatTitleLength    = 32
	MaxTextLength         = 1024
)

// Timeouts and delays
const (
	// DefaultConnectTimeout is the timeout for the TCP and TLS handshake
	DefaultConnectTimeout = 5 * time.Second
	// DefaultResponseTimeout is the wait for the first response byte
	DefaultResponseTimeout = 3 * time.Second
	// DefaultChunkTimeout is the silence that marks a response as complete
	DefaultChunkTimeout = 500 * time.Millisecond
	// DefaultLongPoll is the getUpdates long poll hint
	DefaultLongPoll = 10 * time.Second
	// DefaultReadPollInterval is the sleep between empty reads
	DefaultReadPollInterval = 10 * time.Millisecond
	// DefaultEnginePollInterval is the pause between engine poll cycles
	DefaultEnginePollInterval = 1 * time.Second
	// ReadDeadline emulates a non-blocking read on a blocking socket
	ReadDeadline = 5 * time.Millisecond
)

// Message length limits
const (
	// MaxTelegramMessageLength is Telegram's message character limit
	MaxTelegramMessageLength = 4096
)

// Engine settings
const (
	// MessageChannelBufferSize is the queue between the poll loop and the engine
	MessageChannelBufferSize = 100
	// MaxCommandInputLength bounds the input checked for a command
	MaxCommandInputLength = 256

	// DefaultSendRate is the steady outgoing messages per second
	DefaultSendRate = 1.0
	// DefaultSendBurst is the outgoing burst size
	DefaultSendBurst = 5
)

// Token masking
const (
	// MinSecretLengthForMasking is the minimum secret length to apply masking
	MinSecretLengthForMasking = 10
	// SecretMaskPrefixLength is the length of prefix to show before masking
	SecretMaskPrefixLength = 7
	// SecretMaskSuffixLength is the length of suffix to show after masking
	SecretMaskSuffixLength = 4
)

// Logging defaults
const (
	// DefaultLogMaxSize is the default maximum log file size in MB
	DefaultLogMaxSize = 100
	// DefaultLogMaxAge is the default maximum number of days to retain old logs
	DefaultLogMaxAge = 30
)
