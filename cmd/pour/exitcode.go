package main

import (
	"errors"

	"github.com/ZebulonRouseFrantzich/pour/internal/resolver"
)

// Process exit codes.
const (
	ExitOK            = 0
	ExitFailure       = 1
	ExitUsage         = 2
	ExitUnsupported   = 3
	ExitIntegrity     = 4
	ExitInstallAction = 5
)

// usageError marks bad flags or arguments.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// exitCode maps err to a process exit code. For a joined batch error the
// first package's failure decides.
func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	if errs := firstBatch(err); len(errs) > 0 {
		return exitCode(errs[0])
	}

	var (
		usage       *usageError
		unsupported *resolver.UnsupportedPlatformError
		integrity   *resolver.IntegrityError
		action      *resolver.InstallActionError
	)
	switch {
	case errors.As(err, &usage):
		return ExitUsage
	case errors.As(err, &unsupported):
		return ExitUnsupported
	case errors.As(err, &integrity):
		return ExitIntegrity
	case errors.As(err, &action):
		return ExitInstallAction
	}
	return ExitFailure
}

// firstBatch returns the members of the outermost joined error in err's
// chain, if any.
func firstBatch(err error) []error {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if j, ok := e.(interface{ Unwrap() []error }); ok {
			return j.Unwrap()
		}
	}
	return nil
}
