package platform

import (
	"strings"
)

// archSynonyms folds alternate spellings into a canonical token.
// amd64 and x86_64 are intentionally not merged.
var archSynonyms = map[string]string{
	"amd64":   ArchAMD64,
	"x86_64":  ArchX86_64,
	"aarch64": ArchARM64,
	"arm64":   ArchARM64,
}

// familyMap maps distribution family strings from gopsutil to canonical names.
var familyMap = map[string]string{
	"debian":   FamilyDebian,
	"ubuntu":   FamilyDebian,
	"rhel":     FamilyRHEL,
	"centos":   FamilyRHEL,
	"rocky":    FamilyRHEL,
	"fedora":   FamilyFedora,
	"suse":     FamilySUSE,
	"opensuse": FamilySUSE,
	"arch":     FamilyArch,
	"manjaro":  FamilyArch,
	"alpine":   FamilyAlpine,
}

// NormalizeArch converts an architecture name to its canonical token.
// Unknown names are returned lowercased.
func NormalizeArch(arch string) string {
	normalized := strings.ToLower(strings.TrimSpace(arch))
	if canonical, ok := archSynonyms[normalized]; ok {
		return canonical
	}
	return normalized
}

// MatchesOS reports whether an entry's platform tag applies to the running
// OS. The tag is matched by prefix: "dar" or "mac" for macOS, "win" for
// Windows, "lin" for Linux. Any other running OS is an error.
func MatchesOS(currentOS, tag string) (bool, error) {
	current := strings.ToLower(strings.TrimSpace(currentOS))
	tag = strings.ToLower(strings.TrimSpace(tag))

	switch {
	case strings.HasPrefix(current, "dar"):
		return strings.HasPrefix(tag, "dar") || strings.HasPrefix(tag, "mac"), nil
	case strings.HasPrefix(current, "win"):
		return strings.HasPrefix(tag, "win"), nil
	case strings.HasPrefix(current, "lin"):
		return strings.HasPrefix(tag, "lin"), nil
	default:
		return false, &UnrecognizedOSError{OS: currentOS}
	}
}

// MatchesArch reports whether an entry's arch applies to the canonical
// running architecture. An empty arch matches everything.
func MatchesArch(currentArch, arch string) bool {
	if arch == "" {
		return true
	}
	return NormalizeArch(currentArch) == NormalizeArch(arch)
}

// machineFromGOARCH maps GOARCH to the machine string the host would report.
// It is the fallback when the kernel cannot be asked.
func machineFromGOARCH(goos, goarch string) string {
	if goos == "windows" {
		// Windows reports PROCESSOR_ARCHITECTURE style names.
		switch goarch {
		case "amd64":
			return "AMD64"
		case "arm64":
			return "ARM64"
		}
		return strings.ToUpper(goarch)
	}

	switch goarch {
	case "amd64":
		return "x86_64"
	case "386":
		return "i686"
	case "arm64":
		if goos == "darwin" {
			return "arm64"
		}
		return "aarch64"
	default:
		return goarch
	}
}

// mapFamily maps distribution family strings to canonical family names.
func mapFamily(family string) string {
	normalized := strings.ToLower(strings.TrimSpace(family))
	if canonical, ok := familyMap[normalized]; ok {
		return canonical
	}
	return FamilyUnknown
}
