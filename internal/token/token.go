// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

// Package token mints, encodes and compares the bearer secrets handed to clients.
//
// A secret is never stored. Only its digest is persisted, and comparisons between
// digests run in time independent of where the first difference sits.
package token

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/samber/oops"
	"golang.org/x/crypto/blake2b"
)

// Fixed sizes shared by every secret-bearing record.
const (
	SecretSize = 64 // random bytes handed to the client
	DigestSize = 64 // BLAKE2b-512 output
	SaltSize   = 32 // per-account password salt
	HashSize   = 64 // argon2id password key length
)

var encoding = base64.RawURLEncoding

// Generate returns a fresh random secret and its digest.
func Generate() (secret, digest []byte, err error) {
	secret = make([]byte, SecretSize)
	if _, err = rand.Read(secret); err != nil {
		return nil, nil, oops.Code("TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SecretSize).
			Wrap(err)
	}
	return secret, Digest(secret), nil
}

// Digest computes the unsalted digest stored in place of a secret.
func Digest(b []byte) []byte {
	sum := blake2b.Sum512(b)
	return sum[:]
}

// Encode renders a secret in the URL-safe alphabet without padding.
func Encode(secret []byte) string {
	return encoding.EncodeToString(secret)
}

// Decode parses an encoded secret. Anything that does not decode to exactly
// SecretSize bytes is malformed.
func Decode(s string) ([]byte, error) {
	secret, err := encoding.DecodeString(s)
	if err != nil {
		return nil, oops.Code("TOKEN_MALFORMED").Wrap(err)
	}
	if len(secret) != SecretSize {
		return nil, oops.Code("TOKEN_MALFORMED").
			With("length", len(secret)).
			Errorf("token must decode to %d bytes", SecretSize)
	}
	return secret, nil
}

// DigestEncoded decodes s and returns the digest of the secret it carries.
func DigestEncoded(s string) ([]byte, error) {
	secret, err := Decode(s)
	if err != nil {
		return nil, err
	}
	return Digest(secret), nil
}

// NewSalt returns a random password salt.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, oops.Code("TOKEN_SALT_FAILED").Wrap(err)
	}
	return salt, nil
}

// Equal reports whether a and b hold the same bytes. Lengths are fixed by the
// protocol, so a length mismatch returns early; otherwise every position is
// visited before the result is known.
func Equal(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var diff byte
	for i := range a {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}
