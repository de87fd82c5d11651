package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sanity-io/litter"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/wufe/catears-dashboard/internal/api"
	"github.com/wufe/catears-dashboard/internal/blob"
	"github.com/wufe/catears-dashboard/internal/syncer"
)

var defaultConfigurationFiles = []string{"configuration.json", "configuration.yaml", "configuration.yml"}

func NewConfiguration() Configuration {
	return Configuration{
		LogLevel: "info",
		Server: ServerConfiguration{
			Listen:   ":8080",
			Backend:  blob.BackendMemory,
			Key:      api.DefaultKey,
			CacheTTL: Duration{time.Second},
		},
		Console: ConsoleConfiguration{
			ServerURL: "http://localhost:8080",
			Debounce:  Duration{syncer.DefaultDebounce},
		},
	}
}

// LoadConfiguration reads the configuration file at path, or the first
// default file found in the working directory when path is empty, then
// applies environment overrides. A missing default file is not an error.
func LoadConfiguration(path string, lookupEnv func(string) (string, bool)) (Configuration, error) {
	configuration := NewConfiguration()

	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return configuration, fmt.Errorf("error getting working directory: %w", err)
		}
		for _, name := range defaultConfigurationFiles {
			candidate := filepath.Join(wd, name)
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		if err := readConfigurationFile(path, &configuration); err != nil {
			return configuration, err
		}
	}

	configuration.applyEnv(lookupEnv)
	if err := configuration.Validate(); err != nil {
		return configuration, err
	}
	return configuration, nil
}

func readConfigurationFile(path string, configuration *Configuration) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("configuration file not found: %w", err)
		}
		return fmt.Errorf("error reading configuration file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, configuration); err != nil {
			return fmt.Errorf("error unmarshalling configuration %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(jsonc.ToJSON(raw), configuration); err != nil {
			return fmt.Errorf("error unmarshalling configuration %s: %w", path, err)
		}
	}
	return nil
}

func (c *Configuration) applyEnv(lookupEnv func(string) (string, bool)) {
	if lookupEnv == nil {
		return
	}
	overrides := []struct {
		name   string
		target *string
	}{
		{EnvSessionSecret, &c.Server.SessionSecret},
		{EnvPasswordHash, &c.Server.PasswordHash},
		{EnvGCSCredentials, &c.Server.GCSCredentials},
		{EnvGCSBucket, &c.Server.Bucket},
		{EnvUsername, &c.Server.Username},
		{EnvListen, &c.Server.Listen},
		{EnvServerURL, &c.Console.ServerURL},
		{EnvLogLevel, &c.LogLevel},
	}
	for _, o := range overrides {
		if v, ok := lookupEnv(o.name); ok && v != "" {
			*o.target = v
		}
	}
	if _, ok := lookupEnv(EnvGCSBucket); ok && c.Server.Bucket != "" && c.Server.Backend == blob.BackendMemory {
		c.Server.Backend = blob.BackendGCS
	}
}

// Validate checks the parts every command depends on. Secrets are only
// checked when the gate is built, so a server without them still starts
// and answers 500 on the write path.
func (c Configuration) Validate() error {
	var errs []error
	switch c.Server.Backend {
	case blob.BackendMemory, blob.BackendDir, blob.BackendGCS:
	default:
		errs = append(errs, fmt.Errorf("server.backend: unknown backend %q", c.Server.Backend))
	}
	if c.Server.Backend == blob.BackendDir && c.Server.Dir == "" {
		errs = append(errs, errors.New("server.dir: required by the dir backend"))
	}
	if c.Server.Backend == blob.BackendGCS && c.Server.Bucket == "" {
		errs = append(errs, errors.New("server.bucket: required by the gcs backend"))
	}
	if c.Server.Key == "" {
		errs = append(errs, errors.New("server.key: must not be empty"))
	}
	if c.Server.CacheTTL.Duration < 0 {
		errs = append(errs, errors.New("server.cache_ttl: must not be negative"))
	}
	if c.Console.Debounce.Duration < 0 {
		errs = append(errs, errors.New("console.debounce: must not be negative"))
	}
	return errors.Join(errs...)
}

// Redacted returns a copy that is safe to log.
func (c Configuration) Redacted() Configuration {
	redact := func(s string) string {
		if s == "" {
			return ""
		}
		return "<redacted>"
	}
	c.Server.SessionSecret = redact(c.Server.SessionSecret)
	c.Server.PasswordHash = redact(c.Server.PasswordHash)
	c.Server.GCSCredentials = redact(c.Server.GCSCredentials)
	c.Hue.BridgeUsername = redact(c.Hue.BridgeUsername)
	return c
}

func (c Configuration) Dump() {
	log.Debug().Msg("Configuration:\n" + litter.Sdump(c.Redacted()))
}
