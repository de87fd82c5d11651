package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"
)

// SessionTTL is how long a login stays valid.
const SessionTTL = 7 * 24 * time.Hour

const (
	macSize = 32
	// keyContext separates session MAC keys from any other use of the
	// same secret.
	keyContext = "catears-dashboard 2024-05 session token mac"
	minSecret  = 16
)

var (
	ErrNoSession        = errors.New("auth: no session")
	ErrMalformedToken   = errors.New("auth: malformed session token")
	ErrInvalidSignature = errors.New("auth: invalid session signature")
	ErrExpired          = errors.New("auth: session expired")
	ErrRevoked          = errors.New("auth: session revoked")
	ErrWeakSecret       = fmt.Errorf("auth: session secret must be at least %d bytes", minSecret)
)

// Session is the signed payload of a session token.
type Session struct {
	ID        string `cbor:"1,keyasint"`
	Username  string `cbor:"2,keyasint"`
	IssuedAt  int64  `cbor:"3,keyasint"`
	ExpiresAt int64  `cbor:"4,keyasint"`
}

func (s Session) Expires() time.Time {
	return time.Unix(s.ExpiresAt, 0)
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("auth: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("auth: CBOR decoder initialization failed: " + err.Error())
	}
}

// Signer mints and verifies session tokens. A token is the CBOR encoded
// Session and a keyed BLAKE3 MAC of it, each base64url encoded and joined
// with a dot.
type Signer struct {
	key [32]byte
}

func NewSigner(secret string) (*Signer, error) {
	if len(secret) < minSecret {
		return nil, ErrWeakSecret
	}
	s := &Signer{}
	blake3.DeriveKey(keyContext, []byte(secret), s.key[:])
	return s, nil
}

func (s *Signer) mac(payload []byte) []byte {
	hasher, err := blake3.NewKeyed(s.key[:])
	if err != nil {
		panic("auth: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(payload)
	return hasher.Sum(nil)
}

func (s *Signer) Mint(session Session) (string, error) {
	payload, err := encMode.Marshal(session)
	if err != nil {
		return "", fmt.Errorf("auth: encoding session: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(payload) + "." +
		base64.RawURLEncoding.EncodeToString(s.mac(payload)), nil
}

// VerifyAt checks the token's signature and its expiry against now.
func (s *Signer) VerifyAt(token string, now time.Time) (Session, error) {
	encodedPayload, encodedMAC, ok := strings.Cut(token, ".")
	if !ok {
		return Session{}, ErrMalformedToken
	}
	payload, err := base64.RawURLEncoding.DecodeString(encodedPayload)
	if err != nil {
		return Session{}, ErrMalformedToken
	}
	mac, err := base64.RawURLEncoding.DecodeString(encodedMAC)
	if err != nil || len(mac) != macSize {
		return Session{}, ErrMalformedToken
	}
	if subtle.ConstantTimeCompare(mac, s.mac(payload)) != 1 {
		return Session{}, ErrInvalidSignature
	}

	var session Session
	if err := decMode.Unmarshal(payload, &session); err != nil {
		return Session{}, fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}
	if now.Unix() >= session.ExpiresAt {
		return Session{}, ErrExpired
	}
	return session, nil
}
