package main

import (
	"fmt"
	"time"

	"github.com/wufe/catears-dashboard/internal/blob"
)

// Duration reads "500ms" style strings from both JSON and YAML files.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type ServerConfiguration struct {
	Listen  string       `json:"listen" yaml:"listen"`
	Backend blob.Backend `json:"backend" yaml:"backend"`
	Bucket  string       `json:"bucket" yaml:"bucket"`
	Key     string       `json:"key" yaml:"key"`
	Dir     string       `json:"dir" yaml:"dir"`
	// CacheTTL bounds how stale a GET /api/state answer may be.
	CacheTTL     Duration `json:"cache_ttl" yaml:"cache_ttl"`
	Username     string   `json:"username" yaml:"username"`
	SecureCookie bool     `json:"secure_cookie" yaml:"secure_cookie"`

	// Secrets are normally provided through the environment.
	SessionSecret  string `json:"session_secret" yaml:"session_secret"`
	PasswordHash   string `json:"password_hash" yaml:"password_hash"`
	GCSCredentials string `json:"gcs_credentials" yaml:"gcs_credentials"`
}

type ConsoleConfiguration struct {
	ServerURL string   `json:"server_url" yaml:"server_url"`
	Username  string   `json:"username" yaml:"username"`
	Debounce  Duration `json:"debounce" yaml:"debounce"`
}

type HueConfiguration struct {
	BridgeIP       string `json:"bridge_ip" yaml:"bridge_ip"`
	BridgeUsername string `json:"bridge_username" yaml:"bridge_username"`
	// LightName enables mirroring the left ear on this lamp.
	LightName string `json:"light_name" yaml:"light_name"`
}

type Configuration struct {
	LogLevel string               `json:"log_level" yaml:"log_level"`
	Server   ServerConfiguration  `json:"server" yaml:"server"`
	Console  ConsoleConfiguration `json:"console" yaml:"console"`
	Hue      HueConfiguration     `json:"hue" yaml:"hue"`
}

// Environment variables that override the configuration file.
const (
	EnvSessionSecret  = "CATEARS_SESSION_SECRET"
	EnvPasswordHash   = "CATEARS_PASSWORD_HASH"
	EnvGCSCredentials = "CATEARS_GCS_CREDENTIALS"
	EnvGCSBucket      = "CATEARS_GCS_BUCKET"
	EnvUsername       = "CATEARS_USERNAME"
	EnvListen         = "CATEARS_LISTEN"
	EnvServerURL      = "CATEARS_SERVER_URL"
	EnvLogLevel       = "CATEARS_LOG_LEVEL"
)
