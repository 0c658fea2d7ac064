package jsontok

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, js string) ([]byte, []Token) {
	t.Helper()
	tokens := make([]Token, 64)
	n, err := Parse([]byte(js), tokens)
	require.NoError(t, err)
	return []byte(js), tokens[:n]
}

func TestHasKey(t *testing.T) {
	js, tokens := parse(t, `{"first_name":"text","text":"hi","textual":1}`)

	i, ok := HasKey(js, tokens, "text")
	require.True(t, ok)
	assert.Equal(t, "hi", string(Raw(js, tokens[i+1])))

	_, ok = HasKey(js, tokens, "tex")
	assert.False(t, ok)
	_, ok = HasKey(js, tokens, "last_name")
	assert.False(t, ok)
}

func TestChildKey(t *testing.T) {
	js, tokens := parse(t, `{"message":{"reply_to_message":{"text":"old"},"text":"new"}}`)

	i, ok := HasKey(js, tokens, "text")
	require.True(t, ok)
	assert.Equal(t, "old", string(Raw(js, tokens[i+1])), "flat search finds the nested key first")

	msg, ok := HasKey(js, tokens, "message")
	require.True(t, ok)
	i, ok = ChildKey(js, tokens, msg+1, "text")
	require.True(t, ok)
	assert.Equal(t, "new", string(Raw(js, tokens[i+1])))

	_, ok = ChildKey(js, tokens, 0, "text")
	assert.False(t, ok)
}

func TestKeyValue(t *testing.T) {
	js, tokens := parse(t, `{"update_id":5,"message":{"text":"hi"}}`)
	dst := make([]byte, 24)

	n, ok := KeyValue(js, tokens, "update_id", dst)
	require.True(t, ok)
	assert.Equal(t, "5", string(dst[:n]))

	n, ok = KeyValue(js, tokens, "message", dst[:8])
	require.True(t, ok)
	assert.Equal(t, `{"text":`, string(dst[:n]), "copy is truncated to dst")

	_, ok = KeyValue(js, tokens, "chat", dst)
	assert.False(t, ok)
}

func TestUnescape(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"plain", `hello`, "hello"},
		{"quotes and slashes", `say \"hi\" a\\b c\/d`, `say "hi" a\b c/d`},
		{"controls", `a\nb\tc\r`, "a\nb\tc\r"},
		{"bmp escape", `caf\u00e9`, "café"},
		{"surrogate pair", `\ud83d\ude00!`, "😀!"},
		{"lone high surrogate", `\ud83dx`, "�x"},
		{"raw utf8", `ñ`, "ñ"},
		{"bad escape copied", `a\q`, `a\q`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := make([]byte, 64)
			n := Unescape(dst, []byte(tt.src))
			assert.Equal(t, tt.want, string(dst[:n]))
		})
	}
}

func TestUnescape_TruncatesAtRuneBoundary(t *testing.T) {
	dst := make([]byte, 4)

	n := Unescape(dst, []byte(`abc\u00e9`))

	assert.Equal(t, "abc", string(dst[:n]))
}
