package main

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/keepmind9/tgembed/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `
bot:
  token: "1:abc"
  cursor_file: "/tmp/tgembed-cursor.yaml"
engine:
  echo: true
security:
  whitelist_enabled: true
  allowed_users:
    telegram: ["77"]
  admins:
    telegram: ["77"]
`

func TestValidateCommandFlags(t *testing.T) {
	cmd := findCommand("validate")
	require.NotNil(t, cmd)
	for _, name := range []string{"show", "json", "strict"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "validate command should have %s flag", name)
	}
}

func TestValidateCommand_Valid(t *testing.T) {
	path := writeFile(t, "config.yaml", validConfig)

	out, err := runCLI(t, "validate", "--config", path, "--json")

	require.NoError(t, err)
	var result ValidationResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Valid)
	assert.Equal(t, path, result.Config)
	assert.Equal(t, "api.telegram.org:443", result.Endpoint)
	assert.Empty(t, result.Warnings)
}

func TestValidateCommand_Show(t *testing.T) {
	path := writeFile(t, "config.yaml", validConfig)

	out, err := runCLI(t, "validate", "--config", path, "--show")

	require.NoError(t, err)
	assert.Contains(t, out, "✓ Configuration loaded")
	assert.Contains(t, out, "keep_connection: true")
	assert.Contains(t, out, "buffers: exchange 4096, body 1024")
	assert.Contains(t, out, "✓ Configuration is valid")
	assert.NotContains(t, out, "1:abc\n")
}

func TestValidateCommand_Errors(t *testing.T) {
	t.Run("missing env var", func(t *testing.T) {
		path := writeFile(t, "config.yaml", "bot:\n  token: \"${TGEMBED_VALIDATE_UNSET}\"\n")

		out, err := runCLI(t, "validate", "--config", path, "--json")

		assert.ErrorIs(t, err, errInvalidConfig)
		var result ValidationResult
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		assert.False(t, result.Valid)
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0], "TGEMBED_VALIDATE_UNSET")
	})

	t.Run("token too long for the request path", func(t *testing.T) {
		long := make([]byte, 130)
		for i := range long {
			long[i] = 'a'
		}
		path := writeFile(t, "config.yaml", "bot:\n  token: \""+string(long)+"\"\n")

		out, err := runCLI(t, "validate", "--config", path)

		assert.ErrorIs(t, err, errInvalidConfig)
		assert.Contains(t, out, "❌ Configuration validation failed")
		assert.Contains(t, out, "request path")
	})

	t.Run("unreadable ca file", func(t *testing.T) {
		path := writeFile(t, "config.yaml", "bot:\n  token: \"1:abc\"\n  ca_file: \"/nonexistent/ca.pem\"\n")

		out, err := runCLI(t, "validate", "--config", path)

		assert.ErrorIs(t, err, errInvalidConfig)
		assert.Contains(t, out, "ca.pem")
	})
}

func TestValidateCommand_Strict(t *testing.T) {
	path := writeFile(t, "config.yaml", "bot:\n  token: \"1:abc\"\n")

	out, err := runCLI(t, "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Whitelist is disabled")

	_, err = runCLI(t, "validate", "--config", path, "--strict")
	assert.ErrorIs(t, err, errInvalidConfig)
}

func TestValidateCommand_EnvFile(t *testing.T) {
	envPath := writeFile(t, ".env", "TGEMBED_VALIDATE_TOKEN=9:from-env-file\n")
	t.Cleanup(func() { os.Unsetenv("TGEMBED_VALIDATE_TOKEN") })
	path := writeFile(t, "config.yaml", "bot:\n  token: \"${TGEMBED_VALIDATE_TOKEN}\"\n")

	_, err := runCLI(t, "validate", "--env-file", envPath, "--config", path, "--json")

	assert.NoError(t, err)
}

func TestValidateConfigDetails(t *testing.T) {
	config := &core.Config{}
	config.Bot.InsecureSkipVerify = true

	warnings := validateConfigDetails(config)

	assert.Len(t, warnings, 5)
	assert.Contains(t, warnings, "Certificate verification is disabled - the bot token can be intercepted")
}
