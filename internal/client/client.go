// Package client talks to a running catears API on behalf of the
// terminal dashboard.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"go.uber.org/atomic"

	"github.com/wufe/catears-dashboard/internal/syncer"
)

var (
	ErrNotFound           = errors.New("client: no configuration stored")
	ErrInvalidCredentials = errors.New("client: invalid credentials")
)

// StatusError is a non-2xx answer the client has no better error for.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("client: server answered %d", e.Code)
	}
	return fmt.Sprintf("client: server answered %d: %s", e.Code, e.Message)
}

type Session struct {
	Authenticated bool      `json:"authenticated"`
	Username      string    `json:"username,omitempty"`
	ExpiresAt     time.Time `json:"expiresAt,omitempty"`
}

type Connection struct {
	base     *url.URL
	http     *http.Client
	username atomic.String
}

var _ syncer.Pusher = (*Connection)(nil)

func New(baseURL string) (*Connection, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("client: parsing %q: %w", baseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("client: %q is not an http url", baseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("client: creating cookie jar: %w", err)
	}
	return &Connection{
		base: base,
		http: &http.Client{Jar: jar, Timeout: 30 * time.Second},
	}, nil
}

// Username is the user of the last successful login.
func (c *Connection) Username() string {
	return c.username.Load()
}

func (c *Connection) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return nil, fmt.Errorf("client: creating %s %s request: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	return resp, nil
}

func statusError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)
	return &StatusError{Code: resp.StatusCode, Message: body.Error}
}

// Login exchanges credentials for a session cookie, kept in the client's
// jar for later calls.
func (c *Connection) Login(ctx context.Context, username, password string) error {
	payload, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return fmt.Errorf("client: encoding login: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/auth/login", payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return ErrInvalidCredentials
	default:
		return statusError(resp)
	}

	var out struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("client: decoding login response: %w", err)
	}
	c.username.Store(out.Username)
	return nil
}

func (c *Connection) Logout(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodPost, "/api/auth/logout", []byte("{}"))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	c.username.Store("")
	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	return nil
}

// Session asks the server whether the client's cookie is still valid.
func (c *Connection) Session(ctx context.Context) (Session, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/auth/session", nil)
	if err != nil {
		return Session{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Session{}, statusError(resp)
	}

	var out Session
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Session{}, fmt.Errorf("client: decoding session: %w", err)
	}
	if out.Authenticated {
		c.username.Store(out.Username)
	}
	return out, nil
}

// FetchState returns the stored device document.
func (c *Connection) FetchState(ctx context.Context) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/state", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, statusError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("client: reading state: %w", err)
	}
	return data, nil
}

// Push stores doc. A rejected session is reported as
// syncer.ErrUnauthorized.
func (c *Connection) Push(ctx context.Context, doc []byte) (syncer.Receipt, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/state", doc)
	if err != nil {
		return syncer.Receipt{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return syncer.Receipt{}, syncer.ErrUnauthorized
	default:
		return syncer.Receipt{}, statusError(resp)
	}

	var out struct {
		Timestamp time.Time `json:"timestamp"`
		Bucket    string    `json:"bucket"`
		File      string    `json:"file"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return syncer.Receipt{}, fmt.Errorf("client: decoding save response: %w", err)
	}
	return syncer.Receipt{Timestamp: out.Timestamp, Bucket: out.Bucket, File: out.File}, nil
}
