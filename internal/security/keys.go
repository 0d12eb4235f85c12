// Package security derives the per-purpose signing keys used by cookies.
package security

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const keySize = 32

// Purposes for DeriveKey. Changing one invalidates every cookie signed with it.
const (
	PurposeNotices = "task-tracker notices v1"
	PurposeCSRF    = "task-tracker csrf v1"
)

var ErrEmptySecret = errors.New("secret key must not be empty")

// DeriveKey expands the application secret into an independent key for purpose.
func DeriveKey(secret, purpose string) ([]byte, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	key := make([]byte, keySize)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(purpose))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to derive %q key: %w", purpose, err)
	}
	return key, nil
}

type Keys struct {
	Notices []byte
	CSRF    []byte
}

func DeriveKeys(secret string) (*Keys, error) {
	notices, err := DeriveKey(secret, PurposeNotices)
	if err != nil {
		return nil, err
	}
	csrf, err := DeriveKey(secret, PurposeCSRF)
	if err != nil {
		return nil, err
	}
	return &Keys{Notices: notices, CSRF: csrf}, nil
}
