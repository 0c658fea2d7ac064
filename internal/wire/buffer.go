// Package wire implements the bounded-memory HTTP exchange: a fixed
// capacity buffer that stages a request and then accumulates its response,
// the request builder, the response reader and the frame narrowing that
// reduces a raw response to its JSON result payload.
//
// Nothing in this package allocates per exchange. All state lives in the
// caller-owned Buffer.
package wire

import (
	"strconv"
)

// Buffer is a fixed-capacity byte buffer with an append cursor.
//
// Appends are sticky on overflow: once an append does not fit, the buffer
// records ErrBufferOverflow and ignores further appends until Reset.
type Buffer struct {
	data []byte
	n    int
	err  error
}

// NewBuffer allocates a buffer with the given capacity
func NewBuffer(size int) *Buffer {
	return &Buffer{data: make([]byte, size)}
}

// Bytes returns the written part of the buffer. The slice aliases the
// buffer and is only valid until the next Reset.
func (b *Buffer) Bytes() []byte {
	return b.data[:b.n]
}

// Len returns the number of written bytes
func (b *Buffer) Len() int {
	return b.n
}

// Cap returns the fixed capacity
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Free returns the remaining capacity
func (b *Buffer) Free() int {
	return len(b.data) - b.n
}

// Err returns the sticky overflow error, if any
func (b *Buffer) Err() error {
	return b.err
}

// Reset zeroes the written bytes and rewinds the cursor.
func (b *Buffer) Reset() {
	clear(b.data[:b.n])
	b.n = 0
	b.err = nil
}

// tail is the unwritten region, used by the reader to fill in place.
func (b *Buffer) tail() []byte {
	return b.data[b.n:]
}

func (b *Buffer) advance(n int) {
	b.n += n
}

// Write appends p whole or not at all.
func (b *Buffer) Write(p []byte) (int, error) {
	if b.err != nil {
		return 0, b.err
	}
	if len(p) > b.Free() {
		b.err = ErrBufferOverflow
		return 0, b.err
	}
	b.n += copy(b.data[b.n:], p)
	return len(p), nil
}

// WriteString appends s whole or not at all.
func (b *Buffer) WriteString(s string) (int, error) {
	if b.err != nil {
		return 0, b.err
	}
	if len(s) > b.Free() {
		b.err = ErrBufferOverflow
		return 0, b.err
	}
	b.n += copy(b.data[b.n:], s)
	return len(s), nil
}

// WriteByte appends a single byte.
func (b *Buffer) WriteByte(c byte) error {
	if b.err != nil {
		return b.err
	}
	if b.Free() < 1 {
		b.err = ErrBufferOverflow
		return b.err
	}
	b.data[b.n] = c
	b.n++
	return nil
}

// AppendUint appends the decimal form of v.
func (b *Buffer) AppendUint(v uint64) error {
	var scratch [20]byte
	_, err := b.Write(strconv.AppendUint(scratch[:0], v, 10))
	return err
}

// AppendInt appends the decimal form of v.
func (b *Buffer) AppendInt(v int64) error {
	var scratch [20]byte
	_, err := b.Write(strconv.AppendInt(scratch[:0], v, 10))
	return err
}

// AppendJSONString appends s as a quoted JSON string.
func (b *Buffer) AppendJSONString(s string) error {
	if b.err != nil {
		return b.err
	}
	if QuotedLen(s) > b.Free() {
		b.err = ErrBufferOverflow
		return b.err
	}
	b.data[b.n] = '"'
	b.n++
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\\':
			b.data[b.n] = '\\'
			b.data[b.n+1] = c
			b.n += 2
		case c == '\n':
			b.n += copy(b.data[b.n:], `\n`)
		case c == '\r':
			b.n += copy(b.data[b.n:], `\r`)
		case c == '\t':
			b.n += copy(b.data[b.n:], `\t`)
		case c < 0x20:
			b.n += copy(b.data[b.n:], `\u00`)
			b.data[b.n] = hexDigits[c>>4]
			b.data[b.n+1] = hexDigits[c&0x0f]
			b.n += 2
		default:
			b.data[b.n] = c
			b.n++
		}
	}
	b.data[b.n] = '"'
	b.n++
	return nil
}

const hexDigits = "0123456789abcdef"

// QuotedLen is the encoded size of s including both quotes.
func QuotedLen(s string) int {
	n := 2
	for i := 0; i < len(s); i++ {
		n += EscapedLen(s[i])
	}
	return n
}

// EscapedLen is the number of bytes AppendJSONString writes for c.
func EscapedLen(c byte) int {
	switch {
	case c == '"' || c == '\\' || c == '\n' || c == '\r' || c == '\t':
		return 2
	case c < 0x20:
		return 6
	default:
		return 1
	}
}
