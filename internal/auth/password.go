package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidHash        = errors.New("auth: password hash is not a base64 wrapped bcrypt hash")
	ErrInvalidCredentials = errors.New("auth: invalid username or password")
)

// HashPassword returns the bcrypt hash of password, base64 wrapped so it
// survives shell and env file quoting.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("auth: empty password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return base64.StdEncoding.EncodeToString(hash), nil
}

// ParseHash unwraps a hash produced by HashPassword. A bare bcrypt hash is
// accepted as well.
func ParseHash(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, ErrInvalidHash
	}

	hash := []byte(encoded)
	if !strings.HasPrefix(encoded, "$2") {
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidHash, err)
		}
		hash = decoded
	}
	if _, err := bcrypt.Cost(hash); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHash, err)
	}
	return hash, nil
}

func verifyPassword(hash []byte, password string) error {
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
