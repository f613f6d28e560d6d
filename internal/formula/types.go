package formula

import (
	"fmt"
	"path"

	"github.com/ZebulonRouseFrantzich/pour/internal/platform"
)

// ActionKind selects the layout directory an install action writes into.
type ActionKind string

const (
	// ActionBin copies an executable into the bin directory.
	ActionBin ActionKind = "bin"
	// ActionLibexec copies a helper into the libexec directory.
	ActionLibexec ActionKind = "libexec"
	// ActionShare copies a data file into the share directory.
	ActionShare ActionKind = "share"
)

// Valid reports whether k is a known kind.
func (k ActionKind) Valid() bool {
	switch k {
	case ActionBin, ActionLibexec, ActionShare:
		return true
	}
	return false
}

// InstallAction copies Source, relative to the extracted archive root, into
// the directory for Kind. The installed name is Target, or the base name of
// Source when Target is empty.
type InstallAction struct {
	Kind   ActionKind
	Source string
	Target string
}

// DestName returns the file name the action installs.
func (a InstallAction) DestName() string {
	if a.Target != "" {
		return a.Target
	}
	return path.Base(a.Source)
}

func (a InstallAction) String() string {
	if a.Target != "" && a.Target != path.Base(a.Source) {
		return fmt.Sprintf("%s.install %q => %q", a.Kind, a.Source, a.Target)
	}
	return fmt.Sprintf("%s.install %q", a.Kind, a.Source)
}

// Artifact is one downloadable, checksummed archive for a single platform.
type Artifact struct {
	Key          platform.Key
	URL          string
	Checksum     Checksum
	SignatureURL string
	Install      []InstallAction
}

// Formula is a package descriptor: metadata plus its artifact catalog.
type Formula struct {
	Name     string
	Desc     string
	Homepage string
	Version  string
	License  string
	// PublicKey is an armored OpenPGP key ring used when an artifact has
	// a SignatureURL.
	PublicKey string
	Catalog   *Catalog
	// Source is the file the formula was loaded from, if any.
	Source string
}
