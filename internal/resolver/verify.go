package resolver

import (
	"bytes"
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork

	"github.com/ZebulonRouseFrantzich/pour/internal/formula"
)

// Verify hashes data with the artifact's algorithm and compares it with the
// recorded checksum in constant time. It returns true, nil on a match and
// false with an *IntegrityError otherwise.
func Verify(a formula.Artifact, data []byte) (bool, error) {
	actual, err := a.Checksum.Sum(data)
	if err != nil {
		return false, fmt.Errorf("compute checksum: %w", err)
	}

	expected := strings.ToLower(a.Checksum.Hex)
	if subtle.ConstantTimeCompare([]byte(actual), []byte(expected)) != 1 {
		return false, &IntegrityError{
			URL:       a.URL,
			Reason:    ReasonChecksum,
			Algorithm: a.Checksum.Algorithm,
			Expected:  expected,
			Actual:    actual,
		}
	}
	return true, nil
}

// VerifySignature checks a detached OpenPGP signature over data against an
// armored public key ring. Armored and binary signatures are accepted.
func VerifySignature(a formula.Artifact, data, signature []byte, armoredKeyring string) error {
	fail := func(err error) error {
		return &IntegrityError{URL: a.URL, Reason: ReasonSignature, Err: err}
	}

	if strings.TrimSpace(armoredKeyring) == "" {
		return fail(fmt.Errorf("formula has no public key"))
	}

	keyring, err := openpgp.ReadArmoredKeyRing(strings.NewReader(armoredKeyring))
	if err != nil {
		return fail(fmt.Errorf("read keyring: %w", err))
	}
	if len(keyring) == 0 {
		return fail(fmt.Errorf("keyring is empty"))
	}

	_, err = openpgp.CheckArmoredDetachedSignature(keyring, bytes.NewReader(data), bytes.NewReader(signature), nil)
	if err != nil {
		_, err = openpgp.CheckDetachedSignature(keyring, bytes.NewReader(data), bytes.NewReader(signature), nil)
	}
	if err != nil {
		return fail(fmt.Errorf("verify signature: %w", err))
	}
	return nil
}
