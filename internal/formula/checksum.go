package formula

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	"github.com/zeebo/blake3"
)

// Algorithm names a content digest.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	SHA512 Algorithm = "sha512"
	BLAKE3 Algorithm = "blake3"
)

// DefaultAlgorithm applies to bare hex checksums.
const DefaultAlgorithm = SHA256

// Size returns the digest length in bytes, or 0 for unknown algorithms.
func (a Algorithm) Size() int {
	switch a {
	case SHA256, BLAKE3:
		return 32
	case SHA512:
		return 64
	}
	return 0
}

// New returns a fresh hash for the algorithm.
func (a Algorithm) New() (hash.Hash, error) {
	switch a {
	case SHA256:
		return sha256.New(), nil
	case SHA512:
		return sha512.New(), nil
	case BLAKE3:
		return blake3.New(), nil
	}
	return nil, fmt.Errorf("unknown checksum algorithm %q", a)
}

// Checksum is an expected digest. Hex is lowercase.
type Checksum struct {
	Algorithm Algorithm
	Hex       string
}

// String renders the checksum as "algo:hex".
func (c Checksum) String() string {
	return string(c.Algorithm) + ":" + c.Hex
}

// IsZero reports whether c is unset.
func (c Checksum) IsZero() bool {
	return c.Algorithm == "" && c.Hex == ""
}

// Sum computes the digest of data with c's algorithm, hex encoded.
func (c Checksum) Sum(data []byte) (string, error) {
	h, err := c.Algorithm.New()
	if err != nil {
		return "", err
	}
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ChecksumError reports a malformed checksum in a catalog definition.
type ChecksumError struct {
	Value  string
	Reason string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("invalid checksum %q: %s", e.Value, e.Reason)
}

// ParseChecksum parses "algo:hex" or bare hex (sha256). The hex part must
// decode to exactly the algorithm's digest size.
func ParseChecksum(s string) (Checksum, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return Checksum{}, &ChecksumError{Value: s, Reason: "empty"}
	}

	algo := DefaultAlgorithm
	digest := raw
	if name, rest, ok := strings.Cut(raw, ":"); ok {
		algo = Algorithm(strings.ToLower(name))
		digest = rest
	}

	if algo.Size() == 0 {
		return Checksum{}, &ChecksumError{Value: s, Reason: fmt.Sprintf("unknown algorithm %q", algo)}
	}

	digest = strings.ToLower(digest)
	if len(digest)%2 != 0 {
		return Checksum{}, &ChecksumError{Value: s, Reason: fmt.Sprintf("odd number of hex characters (%d)", len(digest))}
	}
	if _, err := hex.DecodeString(digest); err != nil {
		return Checksum{}, &ChecksumError{Value: s, Reason: "not hex encoded"}
	}
	if want := algo.Size() * 2; len(digest) != want {
		return Checksum{}, &ChecksumError{
			Value:  s,
			Reason: fmt.Sprintf("%s digest must be %d hex characters, got %d", algo, want, len(digest)),
		}
	}

	return Checksum{Algorithm: algo, Hex: digest}, nil
}
