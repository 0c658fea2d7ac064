package bot

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/keepmind9/tgembed/internal/wire"
	"github.com/stretchr/testify/assert"
)

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "***", maskSecret(""))
	assert.Equal(t, "***", maskSecret("0123456789"))
	assert.Equal(t, "1234567***4567", maskSecret("12345678901234567"))
}

func TestSplitText(t *testing.T) {
	t.Run("short text is one part", func(t *testing.T) {
		assert.Equal(t, []string{"hello"}, splitText("hello", 10, byteCost))
	})

	t.Run("no limit", func(t *testing.T) {
		assert.Equal(t, []string{"hello"}, splitText("hello", 0, byteCost))
	})

	t.Run("hard split", func(t *testing.T) {
		assert.Equal(t, []string{"abcd", "efgh", "ij"}, splitText("abcdefghij", 4, byteCost))
	})

	t.Run("prefers newline", func(t *testing.T) {
		assert.Equal(t, []string{"line one\n", "line two"}, splitText("line one\nline two", 12, byteCost))
	})

	t.Run("keeps runes whole", func(t *testing.T) {
		text := strings.Repeat("é", 10)
		parts := splitText(text, 5, byteCost)
		assert.Equal(t, text, strings.Join(parts, ""))
		for _, p := range parts {
			assert.True(t, utf8.ValidString(p))
			assert.LessOrEqual(t, len(p), 5)
		}
	})

	t.Run("escaped cost", func(t *testing.T) {
		text := strings.Repeat("a\"b\n", 50)
		parts := splitText(text, 30, wire.EscapedLen)
		assert.Equal(t, text, strings.Join(parts, ""))
		for _, p := range parts {
			assert.LessOrEqual(t, wire.QuotedLen(p)-2, 30)
		}
		assert.Equal(t, []string{"a\"b\n", "a\"b\n"}, splitText("a\"b\na\"b\n", 6, wire.EscapedLen))
	})
}
