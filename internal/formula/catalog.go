package formula

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/ZebulonRouseFrantzich/pour/internal/platform"
)

// DuplicateKeyError is returned when two artifacts target the same platform.
type DuplicateKeyError struct {
	Key platform.Key
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate artifact for platform %s", e.Key)
}

// Catalog is the set of artifacts of one formula, indexed by platform.
// It is immutable after NewCatalog returns and safe for concurrent reads.
type Catalog struct {
	byKey map[platform.Key]Artifact
	keys  []platform.Key
}

// NewCatalog validates artifacts and indexes them by key. Construction
// fails on duplicate keys, malformed checksums, missing URLs and invalid
// install actions.
func NewCatalog(artifacts ...Artifact) (*Catalog, error) {
	c := &Catalog{byKey: make(map[platform.Key]Artifact, len(artifacts))}

	for i, a := range artifacts {
		if a.Key.OS == "" || a.Key.Arch == "" {
			return nil, fmt.Errorf("artifact %d: platform key is incomplete", i)
		}
		if _, dup := c.byKey[a.Key]; dup {
			return nil, &DuplicateKeyError{Key: a.Key}
		}
		if err := validateURL(a.URL); err != nil {
			return nil, fmt.Errorf("artifact %s: %w", a.Key, err)
		}
		if a.SignatureURL != "" {
			if err := validateURL(a.SignatureURL); err != nil {
				return nil, fmt.Errorf("artifact %s: signature: %w", a.Key, err)
			}
		}

		// re-parse so hand-built Checksums get the same checks as decoded ones
		sum, err := ParseChecksum(a.Checksum.String())
		if err != nil {
			return nil, fmt.Errorf("artifact %s: %w", a.Key, err)
		}
		a.Checksum = sum

		if err := validateActions(a.Install); err != nil {
			return nil, fmt.Errorf("artifact %s: %w", a.Key, err)
		}

		a.Install = append([]InstallAction(nil), a.Install...)
		c.byKey[a.Key] = a
		c.keys = append(c.keys, a.Key)
	}

	sort.Slice(c.keys, func(i, j int) bool {
		return c.keys[i].String() < c.keys[j].String()
	})

	return c, nil
}

// Lookup returns the artifact for key exactly; there is no fallback.
func (c *Catalog) Lookup(key platform.Key) (Artifact, bool) {
	a, ok := c.byKey[key]
	if !ok {
		return Artifact{}, false
	}
	a.Install = append([]InstallAction(nil), a.Install...)
	return a, true
}

// Keys returns the supported platforms in sorted order.
func (c *Catalog) Keys() []platform.Key {
	return append([]platform.Key(nil), c.keys...)
}

// Len returns the number of artifacts.
func (c *Catalog) Len() int {
	return len(c.keys)
}

func validateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	switch u.Scheme {
	case "https", "http", "file":
	default:
		return fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	return nil
}

func validateActions(actions []InstallAction) error {
	if len(actions) == 0 {
		return fmt.Errorf("no install actions")
	}
	for i, act := range actions {
		if !act.Kind.Valid() {
			return fmt.Errorf("install action %d: unknown kind %q", i, act.Kind)
		}
		if act.Source == "" {
			return fmt.Errorf("install action %d: source is required", i)
		}
		if name := act.DestName(); name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
			return fmt.Errorf("install action %d: invalid target name %q", i, name)
		}
	}
	return nil
}
