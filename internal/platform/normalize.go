package platform

import (
	"fmt"
	"strings"
)

// familyMap maps distribution names to their canonical family names.
// This is used to normalize variations of family strings from gopsutil.
var familyMap = map[string]string{
	"debian":   FamilyDebian,
	"ubuntu":   FamilyDebian, // gopsutil might return ubuntu as family
	"rhel":     FamilyRHEL,
	"centos":   FamilyRHEL,
	"rocky":    FamilyRHEL,
	"fedora":   FamilyFedora,
	"suse":     FamilySUSE,
	"opensuse": FamilySUSE,
	"arch":     FamilyArch,
	"manjaro":  FamilyArch,
	"alpine":   FamilyAlpine,
	"gentoo":   FamilyGentoo,
}

var osAliases = map[string]OS{
	"macos":   OSMacOS,
	"darwin":  OSMacOS,
	"osx":     OSMacOS,
	"mac":     OSMacOS,
	"linux":   OSLinux,
	"windows": OSWindows,
	"win":     OSWindows,
	"freebsd": OSFreeBSD,
}

var archAliases = map[string]Arch{
	"amd64":   ArchAMD64,
	"x86_64":  ArchAMD64,
	"x64":     ArchAMD64,
	"intel":   ArchAMD64,
	"arm64":   ArchARM64,
	"aarch64": ArchARM64,
	"armv8":   ArchARM64,
	"386":     Arch386,
	"i386":    Arch386,
	"i686":    Arch386,
	"x86":     Arch386,
	"arm":     ArchARM,
	"armv6l":  ArchARM,
	"armv7":   ArchARM,
	"armv7l":  ArchARM,
}

// ParseOS converts an operating system name or alias to its canonical form.
func ParseOS(s string) (OS, error) {
	if o, ok := osAliases[normalizePlatform(s)]; ok {
		return o, nil
	}
	return "", fmt.Errorf("unsupported operating system: %q", s)
}

// ParseArch converts an architecture name or alias to its canonical form.
func ParseArch(s string) (Arch, error) {
	if a, ok := archAliases[normalizePlatform(s)]; ok {
		return a, nil
	}
	return "", fmt.Errorf("unsupported architecture: %q", s)
}

// normalizePlatform converts platform IDs to lowercase for consistency.
func normalizePlatform(platform string) string {
	return strings.ToLower(strings.TrimSpace(platform))
}

// mapFamily maps distribution family strings to canonical family names.
func mapFamily(family string) string {
	if canonical, ok := familyMap[normalizePlatform(family)]; ok {
		return canonical
	}
	return FamilyUnknown
}
