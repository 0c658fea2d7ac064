package wire

import "errors"

// Sentinel errors for one exchange
var (
	ErrBufferOverflow     = errors.New("buffer overflow")
	ErrRequestTooLarge    = errors.New("request does not fit exchange buffer")
	ErrRequestIncomplete  = errors.New("request incomplete")
	ErrResponseTimeout    = errors.New("response timeout")
	ErrResponseBufferFull = errors.New("response buffer full")
	ErrConnectionLost     = errors.New("connection lost while reading")
	ErrMalformedResponse  = errors.New("malformed response")
)
