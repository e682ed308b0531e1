// Package platform detects the running operating system and machine
// architecture and decides whether an artifact entry applies to them.
//
// Architecture matching works on canonical tokens. The machine string
// reported by the kernel (for example "aarch64" or "x86_64") is lowercased
// and aarch64 is folded into arm64. amd64 and x86_64 stay distinct, so an
// entry must spell the architecture the way the host reports it.
package platform

import (
	"context"
	"fmt"
)

// Canonical architecture tokens.
const (
	ArchAMD64  = "amd64"
	ArchX86_64 = "x86_64"
	ArchARM64  = "arm64"
)

// Linux distribution family constants, used for logging and the Lua
// platform table only.
const (
	FamilyDebian  = "debian"
	FamilyRHEL    = "rhel"
	FamilyFedora  = "fedora"
	FamilySUSE    = "suse"
	FamilyArch    = "arch"
	FamilyAlpine  = "alpine"
	FamilyUnknown = "unknown"
)

// Info contains platform detection information.
type Info struct {
	OS       string // "linux", "darwin", "windows" (GOOS)
	Arch     string // canonical token, see NormalizeArch
	ArchRaw  string // machine string as reported by the host, e.g. "aarch64"
	Platform string // distro ID (Linux only, e.g. "ubuntu")
	Family   string // canonical distro family
	Version  string // distro version
}

// IsLinux returns true if the platform is Linux.
func (i *Info) IsLinux() bool {
	return i.OS == "linux"
}

// IsMacOS returns true if the platform is macOS.
func (i *Info) IsMacOS() bool {
	return i.OS == "darwin"
}

// IsWindows returns true if the platform is Windows.
func (i *Info) IsWindows() bool {
	return i.OS == "windows"
}

// String renders the info for log lines.
func (i *Info) String() string {
	return fmt.Sprintf("%s/%s", i.OS, i.Arch)
}

// Detector is the interface for platform detection.
type Detector interface {
	Detect(ctx context.Context) (*Info, error)
}

// StaticDetector returns a fixed Info. It is used when the caller already
// knows the platform, and by tests that fabricate one.
type StaticDetector struct {
	Info *Info
}

// Detect returns a copy of the configured info.
func (d StaticDetector) Detect(ctx context.Context) (*Info, error) {
	if d.Info == nil {
		return nil, fmt.Errorf("static detector has no platform info")
	}
	info := *d.Info
	if info.Arch == "" {
		info.Arch = NormalizeArch(info.ArchRaw)
	}
	return &info, nil
}

// UnrecognizedOSError is returned when the running OS is none of the
// platforms an entry can name.
type UnrecognizedOSError struct {
	OS string
}

func (e *UnrecognizedOSError) Error() string {
	return fmt.Sprintf("unrecognized platform: %s", e.OS)
}
