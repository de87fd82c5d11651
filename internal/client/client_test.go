package client

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/wufe/catears-dashboard/internal/api"
	"github.com/wufe/catears-dashboard/internal/auth"
	"github.com/wufe/catears-dashboard/internal/blob"
	"github.com/wufe/catears-dashboard/internal/clock"
	"github.com/wufe/catears-dashboard/internal/schema"
	"github.com/wufe/catears-dashboard/internal/store"
	"github.com/wufe/catears-dashboard/internal/syncer"
	"github.com/wufe/catears-dashboard/internal/wire"
)

func newAPI(t *testing.T, withGate bool) *httptest.Server {
	t.Helper()
	cfg := api.Config{
		Store:  blob.NewMemory(),
		Bucket: "catears-bucket",
		Logger: zerolog.Nop(),
	}
	if withGate {
		hash, err := bcrypt.GenerateFromPassword([]byte("meow"), bcrypt.MinCost)
		require.NoError(t, err)
		cfg.Gate, err = auth.NewGate(auth.GateConfig{
			Secret:       strings.Repeat("k", 32),
			PasswordHash: base64.StdEncoding.EncodeToString(hash),
		})
		require.NoError(t, err)
	}
	srv := httptest.NewServer(api.NewHandler(cfg))
	t.Cleanup(srv.Close)
	return srv
}

func TestNew(t *testing.T) {
	_, err := New("ftp://example.com")
	assert.Error(t, err)
	_, err = New("http://localhost:8080/")
	assert.NoError(t, err)
}

func TestSessionLifecycle(t *testing.T) {
	srv := newAPI(t, true)
	conn, err := New(srv.URL)
	require.NoError(t, err)
	ctx := context.Background()

	sess, err := conn.Session(ctx)
	require.NoError(t, err)
	assert.False(t, sess.Authenticated)

	_, err = conn.FetchState(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	doc, err := wire.Marshal(schema.Default())
	require.NoError(t, err)
	_, err = conn.Push(ctx, doc)
	assert.ErrorIs(t, err, syncer.ErrUnauthorized)

	assert.ErrorIs(t, conn.Login(ctx, "kitty", "woof"), ErrInvalidCredentials)
	require.NoError(t, conn.Login(ctx, "kitty", "meow"))
	assert.Equal(t, "kitty", conn.Username())

	sess, err = conn.Session(ctx)
	require.NoError(t, err)
	assert.True(t, sess.Authenticated)
	assert.WithinDuration(t, time.Now().Add(auth.SessionTTL), sess.ExpiresAt, time.Minute)

	receipt, err := conn.Push(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, "catears-bucket", receipt.Bucket)
	assert.Equal(t, api.DefaultKey, receipt.File)
	assert.False(t, receipt.Timestamp.IsZero())

	stored, err := conn.FetchState(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, string(doc), string(stored))

	require.NoError(t, conn.Logout(ctx))
	assert.Empty(t, conn.Username())
	_, err = conn.Push(ctx, doc)
	assert.ErrorIs(t, err, syncer.ErrUnauthorized)
}

func TestServerErrors(t *testing.T) {
	srv := newAPI(t, false)
	conn, err := New(srv.URL)
	require.NoError(t, err)

	err = conn.Login(context.Background(), "kitty", "meow")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.Code)
	assert.Equal(t, "Server configuration error", statusErr.Message)
}

func TestDrivesController(t *testing.T) {
	srv := newAPI(t, true)
	conn, err := New(srv.URL)
	require.NoError(t, err)

	s := store.New()
	fake := clock.NewFake(time.Now())
	ctrl, err := syncer.New(syncer.Config{Store: s, Pusher: conn, Clock: fake, Logger: zerolog.Nop()})
	require.NoError(t, err)
	ctrl.Start(context.Background())
	defer ctrl.Stop()

	ctrl.SetAuthorized(true)
	s.SetBrightness(10)
	fake.Advance(syncer.DefaultDebounce)
	assert.Equal(t, syncer.StatusAuthRequired, ctrl.State().Status)

	require.NoError(t, conn.Login(context.Background(), "kitty", "meow"))
	require.NoError(t, ctrl.LoggedIn(context.Background()))
	assert.Equal(t, syncer.StatusSuccess, ctrl.State().Status)

	stored, err := conn.FetchState(context.Background())
	require.NoError(t, err)
	cfg, err := wire.Unmarshal(stored)
	require.NoError(t, err)
	assert.Equal(t, uint8(10), cfg.Lights.Brightness)
}
