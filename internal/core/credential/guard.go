// Package credential hashes and verifies the per-account lock secret.
//
// The default scheme is an unsalted hex SHA-256 of the raw secret. It is kept
// because every digest already stored by earlier releases uses it; it is not
// a password-storage best practice. The argon2id scheme writes versioned,
// salted digests and can be enabled without a schema change, since Verify
// recognises both formats.
package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Supported digest schemes.
const (
	SchemeSHA256   = "sha256"
	SchemeArgon2id = "argon2id"
)

// argon2id parameters, encoded into every digest so they can change later.
const (
	argonTime    uint32 = 1
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 4
	argonKeyLen  uint32 = 32
	argonSaltLen        = 16
)

var (
	// ErrCredentialRejected is returned when a secret does not match the stored digest.
	ErrCredentialRejected = errors.New("credential rejected")

	// ErrUnknownScheme is returned for an unsupported digest scheme name.
	ErrUnknownScheme = errors.New("unknown digest scheme")
)

// Guard produces and checks digests for one configured scheme.
type Guard struct {
	scheme string
	rand   io.Reader
}

// New returns a Guard writing digests with the given scheme ("" means sha256).
func New(scheme string) (*Guard, error) {
	switch scheme {
	case "":
		scheme = SchemeSHA256
	case SchemeSHA256, SchemeArgon2id:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
	}
	return &Guard{scheme: scheme, rand: rand.Reader}, nil
}

// Default returns the sha256 guard.
func Default() *Guard {
	g, _ := New(SchemeSHA256)
	return g
}

// Scheme returns the scheme new digests are written with.
func (g *Guard) Scheme() string {
	return g.scheme
}

// Hash returns the digest of secret.
func (g *Guard) Hash(secret string) (string, error) {
	if g.scheme == SchemeArgon2id {
		salt := make([]byte, argonSaltLen)
		if _, err := io.ReadFull(g.rand, salt); err != nil {
			return "", fmt.Errorf("read salt: %w", err)
		}
		return encodeArgon2id(secret, salt), nil
	}
	return hashSHA256(secret), nil
}

// Verify reports whether secret matches digest. An empty digest means no
// password is configured and always verifies.
func (g *Guard) Verify(secret, digest string) bool {
	if digest == "" {
		return true
	}
	if strings.HasPrefix(digest, "$"+SchemeArgon2id+"$") {
		return verifyArgon2id(secret, digest)
	}
	want := hashSHA256(secret)
	return subtle.ConstantTimeCompare([]byte(want), []byte(strings.ToLower(digest))) == 1
}

// Check is Verify returning ErrCredentialRejected on mismatch.
func (g *Guard) Check(secret, digest string) error {
	if !g.Verify(secret, digest) {
		return ErrCredentialRejected
	}
	return nil
}

func hashSHA256(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func encodeArgon2id(secret string, salt []byte) string {
	key := argon2.IDKey([]byte(secret), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		SchemeArgon2id, argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key))
}

func verifyArgon2id(secret, digest string) bool {
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	parts := strings.Split(digest, "$")
	if len(parts) != 6 {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}

	var memory, iterations uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(want) == 0 {
		return false
	}

	got := argon2.IDKey([]byte(secret), salt, iterations, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}
