package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/keepmind9/tgembed/internal/transport"
	"github.com/stretchr/testify/require"
)

const testToken = "123456:ABCDEF-test-token"

// fakeTransport answers each written request with the next queued response
type fakeTransport struct {
	mu          sync.Mutex
	connected   bool
	connectErr  error
	connects    int
	disconnects int
	requests    []string
	responses   []string
	pending     []byte
}

func (f *fakeTransport) Connect(ctx context.Context, host string, port int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connects++
	f.connected = true
	return nil
}

func (f *fakeTransport) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connected {
		f.disconnects++
	}
	f.connected = false
	f.pending = nil
	return nil
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return 0, transport.ErrNotConnected
	}
	f.requests = append(f.requests, string(p))
	if len(f.responses) > 0 {
		f.pending = []byte(f.responses[0])
		f.responses = f.responses[1:]
	}
	return len(p), nil
}

func (f *fakeTransport) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return 0, transport.ErrNotConnected
	}
	n := copy(p, f.pending)
	f.pending = f.pending[n:]
	return n, nil
}

func (f *fakeTransport) lastRequest() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return ""
	}
	return f.requests[len(f.requests)-1]
}

// testClock only moves when the client sleeps
type testClock struct {
	mu  sync.Mutex
	now uint32
}

func (c *testClock) Millis() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += uint32(d.Milliseconds())
}

func testConfig() ClientConfig {
	clock := &testClock{}
	return ClientConfig{
		Token:            testToken,
		ResponseTimeout:  100 * time.Millisecond,
		ChunkTimeout:     50 * time.Millisecond,
		LongPoll:         time.Second,
		ReadPollInterval: 10 * time.Millisecond,
		Clock:            clock,
		Sleep:            clock.sleep,
	}
}

func newTestClient(t *testing.T, cfg ClientConfig, responses ...string) (*Client, *fakeTransport) {
	t.Helper()
	tr := &fakeTransport{responses: responses}
	c, err := NewClient(cfg, tr, nil)
	require.NoError(t, err)
	return c, tr
}

func httpOK(body string) string {
	return "HTTP/1.1 200 OK\r\nContent-Type: application/json\r\nContent-Length: " +
		itoa(len(body)) + "\r\n\r\n" + body
}

func updates(items ...string) string {
	return httpOK(`{"ok":true,"result":[` + strings.Join(items, ",") + `]}`)
}

func textUpdate(id int, text string) string {
	return `{"update_id":` + itoa(id) + `,"message":{"message_id":` + itoa(id*10) +
		`,"from":{"id":77,"is_bot":false,"first_name":"Ann","username":"ann"},` +
		`"chat":{"id":-100,"type":"group","title":"G"},"date":1700000000,"text":"` + text + `"}}`
}

func itoa(n int) string {
	return formatInt(int64(n))
}
