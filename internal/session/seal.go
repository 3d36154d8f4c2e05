package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

var errUnseal = errors.New("sealed token cannot be opened")

// Sealer encrypts bearer tokens before they are persisted.
type Sealer struct {
	key [32]byte
}

// NewSealer derives the sealing key from secret.
func NewSealer(secret string) (*Sealer, error) {
	if secret == "" {
		return nil, errors.New("session secret is empty")
	}
	return &Sealer{key: blake2b.Sum256([]byte(secret))}, nil
}

// Seal returns nonce || secretbox(token).
func (s *Sealer) Seal(token string) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], []byte(token), &nonce, &s.key), nil
}

// Open reverses Seal.
func (s *Sealer) Open(sealed []byte) (string, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return "", errUnseal
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", errUnseal
	}
	return string(plain), nil
}

// TokenKey is the lookup digest of a bearer token. The scheme is ignored so
// "bearer x" and "Bearer x" share a session.
func TokenKey(token string) string {
	sum := blake2b.Sum256([]byte(bearerValue(token)))
	return hex.EncodeToString(sum[:])
}
