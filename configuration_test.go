package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wufe/catears-dashboard/internal/blob"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigurationJSONWithComments(t *testing.T) {
	path := writeFile(t, "configuration.json", `{
		// local development
		"log_level": "debug",
		"server": {
			"listen": ":9090",
			"backend": "dir",
			"dir": "/tmp/catears",
			"cache_ttl": "250ms", /* shorter than default */
		},
		"console": {"debounce": "1s"},
		"hue": {"light_name": "Desk"}
	}`)

	configuration, err := LoadConfiguration(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "debug", configuration.LogLevel)
	assert.Equal(t, ":9090", configuration.Server.Listen)
	assert.Equal(t, blob.BackendDir, configuration.Server.Backend)
	assert.Equal(t, 250*time.Millisecond, configuration.Server.CacheTTL.Duration)
	assert.Equal(t, time.Second, configuration.Console.Debounce.Duration)
	assert.Equal(t, "Desk", configuration.Hue.LightName)
	assert.Equal(t, "catears.json", configuration.Server.Key)
}

func TestLoadConfigurationYAML(t *testing.T) {
	path := writeFile(t, "catears.yaml", `
server:
  backend: gcs
  bucket: ears
console:
  server_url: https://ears.example.com
  username: kitty
`)

	configuration, err := LoadConfiguration(path, nil)
	require.NoError(t, err)
	assert.Equal(t, blob.BackendGCS, configuration.Server.Backend)
	assert.Equal(t, "ears", configuration.Server.Bucket)
	assert.Equal(t, "https://ears.example.com", configuration.Console.ServerURL)
	assert.Equal(t, "kitty", configuration.Console.Username)
	assert.Equal(t, 500*time.Millisecond, configuration.Console.Debounce.Duration)
}

func TestLoadConfigurationEnvOverrides(t *testing.T) {
	path := writeFile(t, "configuration.json", `{"server": {"session_secret": "from-file"}}`)

	configuration, err := LoadConfiguration(path, envMap(map[string]string{
		EnvSessionSecret:  "from-env-0123456789",
		EnvPasswordHash:   "hash",
		EnvGCSBucket:      "env-bucket",
		EnvGCSCredentials: "{}",
		EnvListen:         "",
	}))
	require.NoError(t, err)
	assert.Equal(t, "from-env-0123456789", configuration.Server.SessionSecret)
	assert.Equal(t, "hash", configuration.Server.PasswordHash)
	assert.Equal(t, "env-bucket", configuration.Server.Bucket)
	assert.Equal(t, blob.BackendGCS, configuration.Server.Backend)
	assert.Equal(t, ":8080", configuration.Server.Listen, "empty variables are ignored")
}

func TestLoadConfigurationErrors(t *testing.T) {
	_, err := LoadConfiguration(filepath.Join(t.TempDir(), "missing.json"), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadConfiguration(writeFile(t, "broken.json", `{"server": `), nil)
	assert.ErrorContains(t, err, "error unmarshalling configuration")

	_, err = LoadConfiguration(writeFile(t, "bad.json", `{"console": {"debounce": "soon"}}`), nil)
	assert.ErrorContains(t, err, "invalid duration")

	_, err = LoadConfiguration(writeFile(t, "invalid.json", `{"server": {"backend": "s3", "key": ""}}`), nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, "server.backend")
	assert.ErrorContains(t, err, "server.key")

	_, err = LoadConfiguration(writeFile(t, "dir.json", `{"server": {"backend": "dir"}}`), nil)
	assert.ErrorContains(t, err, "server.dir")
}

func TestRedacted(t *testing.T) {
	configuration := NewConfiguration()
	configuration.Server.SessionSecret = "secret"
	configuration.Server.GCSCredentials = "{}"

	redacted := configuration.Redacted()
	assert.Equal(t, "<redacted>", redacted.Server.SessionSecret)
	assert.Equal(t, "<redacted>", redacted.Server.GCSCredentials)
	assert.Empty(t, redacted.Server.PasswordHash)
	assert.Equal(t, "secret", configuration.Server.SessionSecret)
}
