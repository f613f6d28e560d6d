package resolver

import (
	"fmt"
	"strings"

	"github.com/ZebulonRouseFrantzich/pour/internal/formula"
	"github.com/ZebulonRouseFrantzich/pour/internal/platform"
)

// UnsupportedPlatformError means the catalog has no artifact for Key.
// It is never retried.
type UnsupportedPlatformError struct {
	Package   string
	Key       platform.Key
	Supported []platform.Key
}

func (e *UnsupportedPlatformError) Error() string {
	supported := make([]string, len(e.Supported))
	for i, k := range e.Supported {
		supported[i] = k.String()
	}
	subject := "no artifact"
	if e.Package != "" {
		subject = "no " + e.Package + " artifact"
	}
	return fmt.Sprintf("%s for platform %s (supported: %s)", subject, e.Key, strings.Join(supported, ", "))
}

// Integrity failure reasons.
const (
	ReasonChecksum  = "checksum"
	ReasonSignature = "signature"
)

// IntegrityError means downloaded bytes did not match what the formula
// recorded. The artifact must not be installed.
type IntegrityError struct {
	URL       string
	Reason    string
	Algorithm formula.Algorithm
	Expected  string
	Actual    string
	Err       error
}

func (e *IntegrityError) Error() string {
	if e.Reason == ReasonSignature {
		return fmt.Sprintf("signature verification failed for %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("%s mismatch for %s:\nexpected: %s\nactual:   %s", e.Algorithm, e.URL, e.Expected, e.Actual)
}

func (e *IntegrityError) Unwrap() error {
	return e.Err
}

// InstallActionError means an install action could not be carried out,
// usually because its source is missing from the extracted archive.
type InstallActionError struct {
	Index  int
	Action formula.InstallAction
	Path   string
	Err    error
}

func (e *InstallActionError) Error() string {
	return fmt.Sprintf("install step %d (%s): %s: %v", e.Index+1, e.Action, e.Path, e.Err)
}

func (e *InstallActionError) Unwrap() error {
	return e.Err
}
