package jsontok

import "unicode/utf8"

// HasKey returns the index of the first object key equal to key.
//
// A token matches only if it is a string used as a key (Size 1), has the
// same byte length as key, and the same bytes. tokens must be the used part
// of the arena.
func HasKey(js []byte, tokens []Token, key string) (int, bool) {
	for i := 0; i+1 < len(tokens); i++ {
		tok := tokens[i]
		if tok.Type != String || tok.Size != 1 {
			continue
		}
		if tok.End-tok.Start != len(key) {
			continue
		}
		if string(js[tok.Start:tok.End]) == key {
			return i, true
		}
	}
	return -1, false
}

// ChildKey is HasKey restricted to the direct keys of the object at index
// parent.
func ChildKey(js []byte, tokens []Token, parent int, key string) (int, bool) {
	for i := parent + 1; i+1 < len(tokens); i++ {
		tok := tokens[i]
		if tok.Parent != parent || tok.Type != String || tok.Size != 1 {
			continue
		}
		if tok.End-tok.Start == len(key) && string(js[tok.Start:tok.End]) == key {
			return i, true
		}
	}
	return -1, false
}

// Raw returns the span of tok without copying.
func Raw(js []byte, tok Token) []byte {
	return js[tok.Start:tok.End]
}

// ValueOf copies the span of tok into dst, truncated to len(dst), and
// returns the number of bytes copied.
func ValueOf(js []byte, tok Token, dst []byte) int {
	return copy(dst, js[tok.Start:tok.End])
}

// KeyValue copies the value that follows key into dst.
func KeyValue(js []byte, tokens []Token, key string, dst []byte) (int, bool) {
	i, ok := HasKey(js, tokens, key)
	if !ok {
		return 0, false
	}
	return ValueOf(js, tokens[i+1], dst), true
}

// Unescape decodes the JSON escapes of a raw string span into dst and
// returns the number of bytes written. Output is truncated at a rune
// boundary when dst is too small. Malformed escapes are copied through.
func Unescape(dst, src []byte) int {
	n := 0
	for i := 0; i < len(src); {
		c := src[i]
		if c != '\\' || i+1 >= len(src) {
			if n >= len(dst) {
				return n
			}
			dst[n] = c
			n++
			i++
			continue
		}

		var r rune
		width := 2
		switch src[i+1] {
		case '"', '\\', '/':
			r = rune(src[i+1])
		case 'b':
			r = '\b'
		case 'f':
			r = '\f'
		case 'n':
			r = '\n'
		case 'r':
			r = '\r'
		case 't':
			r = '\t'
		case 'u':
			var ok bool
			r, ok = hex4(src[i+2:])
			if !ok {
				r, width = '\\', 1
				break
			}
			width = 6
			if utf16Surrogate(r) {
				r, width = surrogatePair(r, src[i+6:])
			}
		default:
			r, width = '\\', 1
		}

		if utf8.RuneLen(r) > len(dst)-n {
			return n
		}
		n += utf8.EncodeRune(dst[n:], r)
		i += width
	}
	return n
}

func hex4(b []byte) (rune, bool) {
	if len(b) < 4 {
		return 0, false
	}
	var r rune
	for _, c := range b[:4] {
		r <<= 4
		switch {
		case c >= '0' && c <= '9':
			r |= rune(c - '0')
		case c >= 'a' && c <= 'f':
			r |= rune(c - 'a' + 10)
		case c >= 'A' && c <= 'F':
			r |= rune(c - 'A' + 10)
		default:
			return 0, false
		}
	}
	return r, true
}

func utf16Surrogate(r rune) bool {
	return r >= 0xd800 && r < 0xdc00
}

// surrogatePair combines a high surrogate with a following \uXXXX low
// surrogate. It returns the replacement rune if the pair is incomplete.
func surrogatePair(high rune, rest []byte) (rune, int) {
	if len(rest) < 6 || rest[0] != '\\' || rest[1] != 'u' {
		return utf8.RuneError, 6
	}
	low, ok := hex4(rest[2:])
	if !ok || low < 0xdc00 || low >= 0xe000 {
		return utf8.RuneError, 6
	}
	return (high-0xd800)<<10 | (low - 0xdc00) + 0x10000, 12
}
