// Package secure provides password hashing and verification for all identity
// kinds. Digests use the PBKDF2-SHA256 scheme in the format
// "pbkdf2:sha256:<iterations>$<salt>$<hex-digest>", which keeps digests
// written by the previous system verifiable without a rehash migration.
package secure

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultIterations is the PBKDF2 work factor applied to new digests.
	DefaultIterations = 600000

	saltLen = 16
	keyLen  = 32
)

const saltAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// ErrMalformedDigest indicates a stored digest that cannot be parsed. This is
// a data-corruption signal, never the result of a wrong password.
var ErrMalformedDigest = fmt.Errorf("secure: malformed password digest")

func generateSalt() (string, error) {
	buf := make([]byte, saltLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random salt: %w", err)
	}
	for i := range buf {
		buf[i] = saltAlphabet[int(buf[i])%len(saltAlphabet)]
	}
	return string(buf), nil
}

// HashPassword derives a salted digest from the plaintext. The plaintext is
// never stored.
func HashPassword(plain string) (string, error) {
	salt, err := generateSalt()
	if err != nil {
		return "", err
	}
	key := pbkdf2.Key([]byte(plain), []byte(salt), DefaultIterations, keyLen, sha256.New)
	return fmt.Sprintf("pbkdf2:sha256:%d$%s$%s", DefaultIterations, salt, hex.EncodeToString(key)), nil
}

// CheckPassword reports whether plain matches the stored digest. A wrong
// password returns (false, nil); only an unparseable digest returns an error.
func CheckPassword(digest, plain string) (bool, error) {
	parts := strings.SplitN(digest, "$", 3)
	if len(parts) != 3 {
		return false, ErrMalformedDigest
	}

	method := strings.Split(parts[0], ":")
	if len(method) != 3 || method[0] != "pbkdf2" || method[1] != "sha256" {
		return false, ErrMalformedDigest
	}
	iterations, err := strconv.Atoi(method[2])
	if err != nil || iterations <= 0 {
		return false, ErrMalformedDigest
	}

	salt := parts[1]
	want, err := hex.DecodeString(parts[2])
	if err != nil || len(want) == 0 {
		return false, ErrMalformedDigest
	}

	got := pbkdf2.Key([]byte(plain), []byte(salt), iterations, len(want), sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
