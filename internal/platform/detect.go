package platform

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"
)

// RealDetector implements Detector using actual platform detection.
type RealDetector struct {
	// kernelArch is swappable in tests.
	kernelArch func() (string, error)
}

// NewDetector creates a new platform detector.
func NewDetector() Detector {
	return &RealDetector{kernelArch: host.KernelArch}
}

// Detect probes the host. The operating system comes from runtime.GOOS.
// The architecture is the one the kernel reports through gopsutil, so a
// 32-bit or emulated build of pour still resolves artifacts for the real
// CPU. If the kernel probe fails, GOARCH is used instead.
//
// On Linux, distribution details are filled in when gopsutil can read
// them; failure there is not an error.
func (d *RealDetector) Detect(ctx context.Context) (*Info, error) {
	osName, err := ParseOS(runtime.GOOS)
	if err != nil {
		return nil, fmt.Errorf("platform detection failed: %w", err)
	}

	info := &Info{
		OS:      osName,
		ArchRaw: runtime.GOARCH,
	}

	archSource := runtime.GOARCH
	if d.kernelArch != nil {
		if kernelArch, err := d.kernelArch(); err == nil && kernelArch != "" {
			info.KernelArch = kernelArch
			if _, err := ParseArch(kernelArch); err == nil {
				archSource = kernelArch
			}
		}
	}

	arch, err := ParseArch(archSource)
	if err != nil {
		return nil, fmt.Errorf("platform detection failed: %w", err)
	}
	info.Arch = arch

	if info.OS == OSLinux {
		platform, family, version, err := host.PlatformInformationWithContext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("platform detection cancelled: %w", ctx.Err())
			}
			return info, nil
		}

		platform = normalizePlatform(platform)
		if platform != "" {
			info.Platform = platform
			info.Family = mapFamily(family)
			info.Version = normalizePlatform(version)
		}
	}

	return info, nil
}

// StaticDetector reports a fixed platform. It backs dry-run commands that
// take an explicit --platform and the tests.
type StaticDetector struct {
	Info Info
}

// NewStaticDetector returns a detector that always reports key.
func NewStaticDetector(key Key) Detector {
	return &StaticDetector{Info: Info{OS: key.OS, Arch: key.Arch, ArchRaw: string(key.Arch)}}
}

// Detect returns a copy of the configured info.
func (s *StaticDetector) Detect(ctx context.Context) (*Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info := s.Info
	return &info, nil
}
