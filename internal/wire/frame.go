package wire

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/keepmind9/tgembed/internal/jsontok"
)

var (
	headerTerminator = []byte("\r\n\r\n")
	okKey            = []byte(`"ok":`)
	resultKey        = []byte(`"result":`)
	descriptionKey   = []byte(`"description":"`)
	trueLiteral      = []byte("true")
)

const maxDescriptionLength = 128

// Narrow reduces a raw response in buf to the value of its "result" key.
//
// The search is positional: the body must carry "ok" before "result", as
// the Bot API does. The returned slice aliases buf. On any failure buf is
// cleared and the error wraps ErrMalformedResponse.
func Narrow(buf *Buffer) ([]byte, error) {
	data := buf.Bytes()

	i := bytes.Index(data, headerTerminator)
	if i < 0 {
		return malformed(buf, "missing end of headers")
	}
	body := data[i+len(headerTerminator):]

	j := bytes.Index(body, okKey)
	if j < 0 {
		return malformed(buf, "missing ok flag")
	}
	rest := body[j+len(okKey):]
	end := bytes.IndexAny(rest, ",}")
	if end < 0 {
		return malformed(buf, "unterminated ok flag")
	}
	if flag := bytes.TrimSpace(rest[:end]); !bytes.Equal(flag, trueLiteral) {
		return malformed(buf, rejectReason(string(flag), rest))
	}
	rest = rest[end:]

	k := bytes.Index(rest, resultKey)
	if k < 0 {
		return malformed(buf, "missing result")
	}
	payload := bytes.TrimSpace(rest[k+len(resultKey):])
	payload = bytes.TrimSpace(bytes.TrimSuffix(payload, []byte("}")))
	if len(payload) == 0 {
		return malformed(buf, "empty result")
	}
	return payload, nil
}

// NarrowStrict is Narrow without the key order assumption: the body is
// tokenized and "ok" and "result" are looked up among the top-level keys.
func NarrowStrict(buf *Buffer, tokens []jsontok.Token) ([]byte, error) {
	data := buf.Bytes()

	i := bytes.Index(data, headerTerminator)
	if i < 0 {
		return malformed(buf, "missing end of headers")
	}
	body := bytes.TrimSpace(data[i+len(headerTerminator):])

	n, err := jsontok.Parse(body, tokens)
	if err != nil {
		return malformed(buf, err.Error())
	}
	if n == 0 || tokens[0].Type != jsontok.Object {
		return malformed(buf, "body is not an object")
	}

	var ok bool
	var result []byte
	for t := 1; t+1 < n; t++ {
		key := tokens[t]
		if key.Parent != 0 || key.Type != jsontok.String {
			continue
		}
		value := tokens[t+1]
		switch string(jsontok.Raw(body, key)) {
		case "ok":
			ok = value.Type == jsontok.Primitive && bytes.Equal(jsontok.Raw(body, value), trueLiteral)
		case "result":
			result = body[value.Start:value.End]
			if value.Type == jsontok.String {
				// keep the quotes so callers see the JSON value
				result = body[value.Start-1 : value.End+1]
			}
		}
	}

	if !ok {
		return malformed(buf, rejectReason("not true", body))
	}
	if len(result) == 0 {
		return malformed(buf, "missing result")
	}
	return result, nil
}

// StatusCode parses the status code from the status line, or 0.
func StatusCode(data []byte) int {
	if !bytes.HasPrefix(data, []byte("HTTP/")) {
		return 0
	}
	sp := bytes.IndexByte(data, ' ')
	if sp < 0 || len(data) < sp+4 {
		return 0
	}
	code, err := strconv.Atoi(string(data[sp+1 : sp+4]))
	if err != nil {
		return 0
	}
	return code
}

func malformed(buf *Buffer, reason string) ([]byte, error) {
	buf.Reset()
	return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, reason)
}

// rejectReason names the ok flag value and the service description, if the
// response carries one.
func rejectReason(flag string, body []byte) string {
	reason := "ok flag is " + flag
	d := bytes.Index(body, descriptionKey)
	if d < 0 {
		return reason
	}
	desc := body[d+len(descriptionKey):]
	end := 0
	for end < len(desc) && end < maxDescriptionLength {
		if desc[end] == '"' && (end == 0 || desc[end-1] != '\\') {
			break
		}
		end++
	}
	return reason + ": " + string(desc[:end])
}
