package wire

import (
	"fmt"
	"io"

	"github.com/keepmind9/tgembed/pkg/constants"
)

// HTTP methods supported by BuildRequest
const (
	MethodGet  = "GET"
	MethodPost = "POST"
)

// BuildRequest formats a request into buf, replacing its contents.
//
// GET requests carry no body. POST requests carry a JSON body with a
// Content-Length equal to len(body). If the request does not fit, buf is
// left empty and ErrRequestTooLarge is returned.
func BuildRequest(buf *Buffer, method, path, host, userAgent string, body []byte) error {
	buf.Reset()

	switch method {
	case MethodGet:
		if len(body) > 0 {
			return fmt.Errorf("GET request with %d byte body", len(body))
		}
	case MethodPost:
	default:
		return fmt.Errorf("unsupported method %q", method)
	}

	buf.WriteString(method)
	buf.WriteByte(' ')
	buf.WriteString(path)
	buf.WriteString(" HTTP/1.1\r\nHost: ")
	buf.WriteString(host)
	buf.WriteString("\r\nUser-Agent: ")
	buf.WriteString(userAgent)
	buf.WriteString("\r\nAccept: " + constants.AcceptHeaderValue + "\r\n")
	if method == MethodPost {
		buf.WriteString("Content-Type: application/json\r\nContent-Length: ")
		buf.AppendUint(uint64(len(body)))
		buf.WriteString("\r\n")
	}
	buf.WriteString("\r\n")
	buf.Write(body)

	if err := buf.Err(); err != nil {
		buf.Reset()
		return fmt.Errorf("%w: %s %s needs more than %d bytes", ErrRequestTooLarge, method, path, buf.Cap())
	}
	return nil
}

// Send writes the staged request. A short write is ErrRequestIncomplete.
func Send(w io.Writer, buf *Buffer) error {
	n, err := w.Write(buf.Bytes())
	if err != nil {
		return fmt.Errorf("%w: wrote %d of %d bytes: %w", ErrRequestIncomplete, n, buf.Len(), err)
	}
	if n != buf.Len() {
		return fmt.Errorf("%w: wrote %d of %d bytes", ErrRequestIncomplete, n, buf.Len())
	}
	return nil
}
