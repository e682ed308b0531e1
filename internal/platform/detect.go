package platform

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v4/host"
)

// RealDetector implements Detector by asking the running host.
type RealDetector struct{}

// NewDetector creates a new platform detector.
func NewDetector() Detector {
	return &RealDetector{}
}

// Detect reports the running OS from runtime.GOOS and the machine string
// from the kernel (uname on Unix) via gopsutil. If the kernel cannot be
// asked, the machine string is derived from GOARCH.
//
// On Linux the distribution is also detected for diagnostics. Failures
// there are ignored unless the context was cancelled.
func (d *RealDetector) Detect(ctx context.Context) (*Info, error) {
	info := &Info{
		OS:      runtime.GOOS,
		ArchRaw: machineArch(runtime.GOOS, runtime.GOARCH),
	}
	info.Arch = NormalizeArch(info.ArchRaw)

	if runtime.GOOS == "linux" {
		platform, family, version, err := host.PlatformInformationWithContext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("platform detection cancelled: %w", ctx.Err())
			}
			return info, nil
		}

		info.Platform = strings.ToLower(strings.TrimSpace(platform))
		info.Family = mapFamily(family)
		info.Version = strings.TrimSpace(version)
	}

	return info, nil
}

func machineArch(goos, goarch string) string {
	if goos == "windows" {
		return machineFromGOARCH(goos, goarch)
	}
	if arch, err := host.KernelArch(); err == nil && arch != "" {
		return arch
	}
	return machineFromGOARCH(goos, goarch)
}
