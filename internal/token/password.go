// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package token

import "golang.org/x/crypto/argon2"

// Argon2id holds the cost parameters for password hashing.
type Argon2id struct {
	Time    uint32 // iterations
	Memory  uint32 // KiB
	Threads uint8
}

// DefaultArgon2id uses the OWASP-recommended argon2id parameters.
var DefaultArgon2id = Argon2id{
	Time:    1,
	Memory:  64 * 1024,
	Threads: 4,
}

// Hash derives the stored password hash from a plaintext password and its salt.
func (p Argon2id) Hash(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, HashSize)
}
