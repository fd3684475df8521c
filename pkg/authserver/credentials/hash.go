// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package credentials

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/ory/fosite"
)

// MinHashKeyLength is the minimum HMAC key length in bytes.
const MinHashKeyLength = 32

// ErrSecretMismatch is returned by SecretHasher.Compare on mismatch.
var ErrSecretMismatch = errors.New("client secret mismatch")

// Hasher computes keyed digests of registration tokens. The raw token is
// never used as a lookup key; callers hash first and query by digest.
type Hasher struct {
	key []byte
}

// NewHasher creates a Hasher with the given key.
func NewHasher(key []byte) (*Hasher, error) {
	if len(key) < MinHashKeyLength {
		return nil, fmt.Errorf("hash key must be at least %d bytes, got %d", MinHashKeyLength, len(key))
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Hasher{key: k}, nil
}

// Hash returns the HMAC-SHA256 digest of value.
func (h *Hasher) Hash(value string) []byte {
	mac := hmac.New(sha256.New, h.key)
	_, _ = mac.Write([]byte(value))
	return mac.Sum(nil)
}

// Equal reports whether value hashes to digest, in constant time.
func (h *Hasher) Equal(value string, digest []byte) bool {
	return hmac.Equal(h.Hash(value), digest)
}

// SecretDigest returns the SHA-256 digest fosite compares client secrets against.
func SecretDigest(secret []byte) []byte {
	sum := sha256.Sum256(secret)
	return sum[:]
}

// SecretHasher implements fosite.Hasher over SecretDigest. Clients expose the
// digest of their decrypted secret as the hashed secret.
type SecretHasher struct{}

var _ fosite.Hasher = SecretHasher{}

// Hash implements fosite.Hasher.
func (SecretHasher) Hash(_ context.Context, data []byte) ([]byte, error) {
	return SecretDigest(data), nil
}

// Compare implements fosite.Hasher.
func (SecretHasher) Compare(_ context.Context, hash, data []byte) error {
	if len(hash) == 0 || subtle.ConstantTimeCompare(hash, SecretDigest(data)) != 1 {
		return ErrSecretMismatch
	}
	return nil
}
