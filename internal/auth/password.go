package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id cost parameters for parent-account passwords. These follow the
// OWASP 2025 guidance; raising them only affects newly stored hashes, since
// verification reads the parameters back out of the stored string.
const (
	hashIterations  uint32 = 3
	hashMemoryKiB   uint32 = 64 * 1024
	hashParallelism uint8  = 1
	hashKeyLen      uint32 = 32
	saltLen                = 16
)

// phcParts is the number of $-delimited segments in a PHC-formatted hash.
const phcParts = 6

// HashPassword derives an Argon2id hash for a plaintext password and encodes
// it as a PHC string ($argon2id$v=19$m=65536,t=3,p=1$<salt>$<key>). Each call
// draws a fresh random salt, so hashing the same password twice never yields
// the same string.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, hashIterations, hashMemoryKiB, hashParallelism, hashKeyLen)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		hashMemoryKiB, hashIterations, hashParallelism,
		b64.EncodeToString(salt),
		b64.EncodeToString(key),
	), nil
}

// VerifyPassword reports whether password matches the stored PHC hash.
// The comparison is constant-time; a malformed stored hash is an error,
// not a mismatch.
func VerifyPassword(password, stored string) (bool, error) {
	p, err := parsePHC(stored)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey([]byte(password), p.salt, p.iterations, p.memoryKiB, p.parallelism, uint32(len(p.key))) //nolint:gosec // G115: key length always fits uint32

	return subtle.ConstantTimeCompare(p.key, candidate) == 1, nil
}

// phcHash is a decoded Argon2id PHC string.
type phcHash struct {
	salt        []byte
	key         []byte
	iterations  uint32
	memoryKiB   uint32
	parallelism uint8
}

// parsePHC splits and decodes a stored $argon2id$... hash string.
func parsePHC(stored string) (phcHash, error) {
	var p phcHash

	parts := strings.Split(stored, "$")
	if len(parts) != phcParts {
		return p, fmt.Errorf("malformed password hash")
	}
	if parts[1] != "argon2id" {
		return p, fmt.Errorf("unsupported hash algorithm %q", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return p, fmt.Errorf("parsing hash version: %w", err)
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memoryKiB, &p.iterations, &p.parallelism); err != nil {
		return p, fmt.Errorf("parsing hash parameters: %w", err)
	}

	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return p, fmt.Errorf("decoding salt: %w", err)
	}
	if p.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return p, fmt.Errorf("decoding key: %w", err)
	}

	return p, nil
}
