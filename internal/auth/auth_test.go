package auth

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/wufe/catears-dashboard/internal/clock"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func cheapHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(hash)
}

func newTestGate(t *testing.T, username string) (*Gate, *clock.FakeClock) {
	t.Helper()
	fake := clock.NewFake(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	gate, err := NewGate(GateConfig{
		Secret:       testSecret,
		PasswordHash: cheapHash(t, "meow"),
		Username:     username,
		Clock:        fake,
	})
	require.NoError(t, err)
	return gate, fake
}

func TestHashPassword(t *testing.T) {
	encoded, err := HashPassword("hunter2")
	require.NoError(t, err)

	hash, err := ParseHash(encoded)
	require.NoError(t, err)
	assert.NoError(t, verifyPassword(hash, "hunter2"))
	assert.ErrorIs(t, verifyPassword(hash, "hunter3"), ErrInvalidCredentials)

	_, err = HashPassword("")
	assert.Error(t, err)
}

func TestParseHash(t *testing.T) {
	raw, err := bcrypt.GenerateFromPassword([]byte("x"), bcrypt.MinCost)
	require.NoError(t, err)

	got, err := ParseHash(string(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	for _, bad := range []string{"", "not base64!", base64.StdEncoding.EncodeToString([]byte("plain"))} {
		_, err := ParseHash(bad)
		assert.ErrorIs(t, err, ErrInvalidHash, bad)
	}
}

func TestSigner(t *testing.T) {
	signer, err := NewSigner(testSecret)
	require.NoError(t, err)
	now := time.Unix(1_700_000_000, 0)

	session := Session{ID: "abc", Username: "kitty", IssuedAt: now.Unix(), ExpiresAt: now.Add(time.Hour).Unix()}
	token, err := signer.Mint(session)
	require.NoError(t, err)

	got, err := signer.VerifyAt(token, now)
	require.NoError(t, err)
	assert.Equal(t, session, got)

	_, err = signer.VerifyAt(token, now.Add(time.Hour))
	assert.ErrorIs(t, err, ErrExpired)

	other, err := NewSigner(strings.Repeat("z", 32))
	require.NoError(t, err)
	_, err = other.VerifyAt(token, now)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	payload, mac, _ := strings.Cut(token, ".")
	tampered := payload[:len(payload)-2] + "AA." + mac
	_, err = signer.VerifyAt(tampered, now)
	assert.Error(t, err)

	for _, bad := range []string{"", "nodot", "a.b", payload + ".!!"} {
		_, err := signer.VerifyAt(bad, now)
		assert.ErrorIs(t, err, ErrMalformedToken, bad)
	}

	_, err = NewSigner("short")
	assert.ErrorIs(t, err, ErrWeakSecret)
}

func TestNewGateMisconfigured(t *testing.T) {
	_, err := NewGate(GateConfig{})
	assert.ErrorIs(t, err, ErrMisconfigured)
	assert.ErrorIs(t, err, ErrWeakSecret)
	assert.ErrorIs(t, err, ErrInvalidHash)
}

func TestLogin(t *testing.T) {
	gate, _ := newTestGate(t, "")

	token, session, err := gate.Login("anyone", "meow")
	require.NoError(t, err)
	assert.Equal(t, "anyone", session.Username)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, int64(SessionTTL/time.Second), session.ExpiresAt-session.IssuedAt)

	got, err := gate.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, session, got)

	_, _, err = gate.Login("anyone", "woof")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = gate.Login("", "meow")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	named, _ := newTestGate(t, "operator")
	_, _, err = named.Login("anyone", "meow")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = named.Login("operator", "meow")
	assert.NoError(t, err)
}

func TestAuthorizeAndLogout(t *testing.T) {
	gate, fake := newTestGate(t, "")
	token, session, err := gate.Login("kitty", "meow")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	gate.SetCookie(rec, token, session)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
	assert.Equal(t, 7*24*60*60, cookies[0].MaxAge)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err = gate.Authorize(req)
	assert.ErrorIs(t, err, ErrNoSession)

	req.AddCookie(cookies[0])
	got, err := gate.Authorize(req)
	require.NoError(t, err)
	assert.Equal(t, "kitty", got.Username)

	gate.Logout(req)
	_, err = gate.Authorize(req)
	assert.ErrorIs(t, err, ErrRevoked)

	fresh, freshSession, err := gate.Login("kitty", "meow")
	require.NoError(t, err)
	_, err = gate.Verify(fresh)
	require.NoError(t, err)

	fake.Advance(SessionTTL)
	_, err = gate.Verify(fresh)
	assert.ErrorIs(t, err, ErrExpired)
	_, err = gate.Verify(token)
	assert.ErrorIs(t, err, ErrExpired, "revocation lapses with the session")
	assert.NotEqual(t, session.ID, freshSession.ID)

	cleared := httptest.NewRecorder()
	gate.ClearCookie(cleared)
	assert.Equal(t, -1, cleared.Result().Cookies()[0].MaxAge)
}
