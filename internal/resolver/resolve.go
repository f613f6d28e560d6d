// Package resolver maps a host platform to a formula artifact, checks the
// downloaded bytes against it and carries out its install actions.
//
// The three steps run strictly in order, Resolve then Verify then Install,
// and a failure in any of them stops the sequence. None of them do network
// I/O or retry; each failure is reported with a typed error
// (UnsupportedPlatformError, IntegrityError, InstallActionError) that
// callers can match with errors.As.
package resolver

import (
	"github.com/ZebulonRouseFrantzich/pour/internal/formula"
	"github.com/ZebulonRouseFrantzich/pour/internal/platform"
)

// Resolve returns the artifact built for exactly key. A supported OS with
// an unlisted architecture is a miss, not a near match.
func Resolve(catalog *formula.Catalog, key platform.Key) (formula.Artifact, error) {
	if catalog != nil {
		if a, ok := catalog.Lookup(key); ok {
			return a, nil
		}
	}

	var supported []platform.Key
	if catalog != nil {
		supported = catalog.Keys()
	}
	return formula.Artifact{}, &UnsupportedPlatformError{Key: key, Supported: supported}
}

// ResolveFormula is Resolve with the package name filled into the error.
func ResolveFormula(f *formula.Formula, key platform.Key) (formula.Artifact, error) {
	a, err := Resolve(f.Catalog, key)
	if err != nil {
		if upe, ok := err.(*UnsupportedPlatformError); ok {
			upe.Package = f.Name
		}
		return formula.Artifact{}, err
	}
	return a, nil
}
