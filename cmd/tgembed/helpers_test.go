package main

import (
	"bytes"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

const testToken = "123456:cli-test-token"

const testUpdate = `{"update_id":5,"message":{"message_id":50,"from":{"id":77,"is_bot":false,"first_name":"Ann","username":"ann"},` +
	`"chat":{"id":-100,"title":"G","type":"group"},"date":1700000000,"text":"hi there"}}`

// resetFlags restores every flag to its default between runs
func resetFlags() {
	reset := func(fs *pflag.FlagSet) {
		fs.VisitAll(func(f *pflag.Flag) {
			f.Value.Set(f.DefValue)
			f.Changed = false
		})
	}
	reset(rootCmd.PersistentFlags())
	reset(rootCmd.Flags())
	for _, cmd := range rootCmd.Commands() {
		reset(cmd.Flags())
	}
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func findCommand(name string) *cobra.Command {
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == name {
			return cmd
		}
	}
	return nil
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// botAPI serves the three Bot API methods the CLI uses
type botAPI struct {
	mu   sync.Mutex
	sent []map[string]any
}

func (b *botAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	body, _ := io.ReadAll(r.Body)

	b.mu.Lock()
	defer b.mu.Unlock()

	switch r.URL.Path {
	case "/bot" + testToken + "/getMe":
		io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Echo","username":"echo_bot"}}`)
	case "/bot" + testToken + "/getUpdates":
		var req struct {
			Offset uint64 `json:"offset"`
		}
		json.Unmarshal(body, &req)
		if req.Offset <= 5 {
			io.WriteString(w, `{"ok":true,"result":[`+testUpdate+`]}`)
			return
		}
		io.WriteString(w, `{"ok":true,"result":[]}`)
	case "/bot" + testToken + "/sendMessage":
		var msg map[string]any
		if err := json.Unmarshal(body, &msg); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"ok":false,"error_code":400,"description":"Bad Request"}`)
			return
		}
		b.sent = append(b.sent, msg)
		io.WriteString(w, `{"ok":true,"result":{"message_id":99}}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"ok":false,"error_code":404,"description":"Not Found"}`)
	}
}

// startBotAPI runs a TLS Bot API and writes a config file pointing at it
func startBotAPI(t *testing.T) (*botAPI, string, string) {
	t.Helper()
	api := &botAPI{}
	srv := httptest.NewTLSServer(api)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	dir := t.TempDir()
	caFile := filepath.Join(dir, "ca.pem")
	caPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	require.NoError(t, os.WriteFile(caFile, caPEM, 0o600))

	cursorFile := filepath.Join(dir, "state", "cursor.yaml")
	config := fmt.Sprintf(`
bot:
  token: "%s"
  host: "%s"
  port: %s
  ca_file: "%s"
  cursor_file: "%s"
http:
  response_timeout: "2s"
  chunk_timeout: "100ms"
  long_poll: "1s"
logging:
  level: error
`, testToken, u.Hostname(), u.Port(), caFile, cursorFile)

	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0o600))
	return api, configPath, cursorFile
}
