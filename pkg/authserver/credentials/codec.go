// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package credentials

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// Credential prefixes.
const (
	ClientSecretPrefix      = "wks_"
	RegistrationTokenPrefix = "wkr_"
	AccessTokenPrefix       = "ory_at_"
	RefreshTokenPrefix      = "ory_rt_"
	AuthorizeCodePrefix     = "ory_ac_"
)

const (
	// PublicIDLength is the length of a client's public identifier.
	PublicIDLength = 24

	secretEntropyBytes = 32
	publicIDAlphabet   = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// ErrMalformed is returned when a credential has no recognised prefix or an empty body.
var ErrMalformed = errors.New("malformed credential")

// Kind identifies the class of a credential.
type Kind int

// Credential kinds.
const (
	KindUnknown Kind = iota
	KindClientSecret
	KindRegistrationToken
	KindAccessToken
	KindRefreshToken
	KindAuthorizeCode
)

var kindPrefixes = []struct {
	kind   Kind
	prefix string
}{
	{KindClientSecret, ClientSecretPrefix},
	{KindRegistrationToken, RegistrationTokenPrefix},
	{KindAccessToken, AccessTokenPrefix},
	{KindRefreshToken, RefreshTokenPrefix},
	{KindAuthorizeCode, AuthorizeCodePrefix},
}

func (k Kind) String() string {
	switch k {
	case KindClientSecret:
		return "client_secret"
	case KindRegistrationToken:
		return "registration_access_token"
	case KindAccessToken:
		return "access_token"
	case KindRefreshToken:
		return "refresh_token"
	case KindAuthorizeCode:
		return "authorization_code"
	case KindUnknown:
	}
	return "unknown"
}

// Token is a credential value tagged with the kind recovered from its prefix.
type Token struct {
	Kind  Kind
	Value string
}

// KindOf classifies value by prefix without any lookup.
func KindOf(value string) Kind {
	for _, kp := range kindPrefixes {
		if len(value) > len(kp.prefix) && strings.HasPrefix(value, kp.prefix) {
			return kp.kind
		}
	}
	return KindUnknown
}

// Parse classifies value and rejects anything without a recognised prefix.
func Parse(value string) (Token, error) {
	kind := KindOf(value)
	if kind == KindUnknown {
		return Token{}, ErrMalformed
	}
	return Token{Kind: kind, Value: value}, nil
}

// NewClientSecret returns a fresh client secret.
func NewClientSecret() (string, error) {
	return newPrefixed(ClientSecretPrefix)
}

// NewRegistrationToken returns a fresh registration access token.
func NewRegistrationToken() (string, error) {
	return newPrefixed(RegistrationTokenPrefix)
}

func newPrefixed(prefix string) (string, error) {
	buf := make([]byte, secretEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return prefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// NewPublicID returns a lowercase alphanumeric identifier of PublicIDLength characters.
// Bytes that would bias the distribution are rejected and redrawn.
func NewPublicID() (string, error) {
	const limit = 256 - (256 % len(publicIDAlphabet))

	out := make([]byte, 0, PublicIDLength)
	buf := make([]byte, PublicIDLength*2)
	for len(out) < PublicIDLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, publicIDAlphabet[int(b)%len(publicIDAlphabet)])
			if len(out) == PublicIDLength {
				break
			}
		}
	}
	return string(out), nil
}

// IsPublicID reports whether s has the shape of a public identifier.
func IsPublicID(s string) bool {
	if len(s) != PublicIDLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !strings.ContainsRune(publicIDAlphabet, rune(s[i])) {
			return false
		}
	}
	return true
}
