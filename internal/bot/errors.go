package bot

import "errors"

var (
	// ErrMalformedPayload means a framed response held an update the client
	// could not read.
	ErrMalformedPayload = errors.New("malformed update payload")
	// ErrCursorNotSaved means the update offset could not be persisted. The
	// update that moved it is dropped.
	ErrCursorNotSaved = errors.New("update cursor not saved")
	// ErrNotInitialized is returned by an adapter used before Start.
	ErrNotInitialized = errors.New("bot not initialized")
	// ErrInvalidChatID is returned for an empty chat id.
	ErrInvalidChatID = errors.New("chat ID is required")
)
