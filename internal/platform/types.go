// Package platform identifies the install target of the running host.
//
// A Key is the (operating system, CPU architecture) pair that formula
// catalogs are indexed by. Keys are comparable values and are used directly
// as map keys. Detection uses runtime.GOOS for the operating system and
// gopsutil for the kernel-reported CPU architecture and, on Linux, the
// distribution details shown by `pour info`.
package platform

import (
	"context"
	"fmt"
	"strings"
)

// OS is a canonical operating system name.
type OS string

const (
	OSMacOS   OS = "macos"
	OSLinux   OS = "linux"
	OSWindows OS = "windows"
	OSFreeBSD OS = "freebsd"
)

// Arch is a canonical CPU architecture name.
type Arch string

const (
	ArchAMD64 Arch = "amd64"
	ArchARM64 Arch = "arm64"
	Arch386   Arch = "386"
	ArchARM   Arch = "arm"
)

// Linux distribution family constants.
const (
	FamilyDebian  = "debian"  // Debian, Ubuntu, Linux Mint
	FamilyRHEL    = "rhel"    // RHEL, CentOS, Rocky Linux, AlmaLinux
	FamilyFedora  = "fedora"  // Fedora
	FamilySUSE    = "suse"    // openSUSE, SLES
	FamilyArch    = "arch"    // Arch Linux, Manjaro
	FamilyAlpine  = "alpine"  // Alpine Linux
	FamilyGentoo  = "gentoo"  // Gentoo
	FamilyUnknown = "unknown" // Unrecognized distributions
)

// Key is the (os, arch) pair an artifact is built for.
type Key struct {
	OS   OS
	Arch Arch
}

// String returns the key as "os/arch".
func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.OS, k.Arch)
}

// ParseKey parses "os/arch" (aliases allowed on both sides).
func ParseKey(s string) (Key, error) {
	osPart, archPart, ok := strings.Cut(s, "/")
	if !ok {
		return Key{}, fmt.Errorf("invalid platform %q: expected os/arch", s)
	}
	return NewKey(osPart, archPart)
}

// NewKey builds a Key from raw os and arch strings, normalizing aliases.
func NewKey(osName, arch string) (Key, error) {
	o, err := ParseOS(osName)
	if err != nil {
		return Key{}, err
	}
	a, err := ParseArch(arch)
	if err != nil {
		return Key{}, err
	}
	return Key{OS: o, Arch: a}, nil
}

// Info contains platform detection information.
type Info struct {
	OS         OS
	Arch       Arch   // normalized host CPU architecture
	ArchRaw    string // GOARCH of this process
	KernelArch string // architecture reported by the kernel, if probed
	Platform   string // distro ID (Linux only, e.g., "ubuntu")
	Family     string // canonical family (e.g., "debian")
	Version    string // distro version (Linux only, e.g., "22.04")
}

// Key returns the install target for this host.
func (i *Info) Key() Key {
	return Key{OS: i.OS, Arch: i.Arch}
}

// Distro contains Linux distribution information.
type Distro struct {
	ID      string
	Family  string
	Version string
}

// GetDistro returns distro information if this is a Linux platform.
// Returns nil for non-Linux platforms or if distro detection failed.
func (i *Info) GetDistro() *Distro {
	if i.OS != OSLinux || i.Platform == "" {
		return nil
	}
	return &Distro{
		ID:      i.Platform,
		Family:  i.Family,
		Version: i.Version,
	}
}

// Detector is the interface for platform detection.
type Detector interface {
	Detect(ctx context.Context) (*Info, error)
}
