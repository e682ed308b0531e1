package artifact

import (
	"net/url"
	"strings"
	"time"
)

// ArchiveFormat is the archive encoding implied by a URL suffix.
type ArchiveFormat string

const (
	// FormatNone means the URL is a single opaque file.
	FormatNone   ArchiveFormat = ""
	FormatTarGz  ArchiveFormat = "tar.gz"
	FormatTarXz  ArchiveFormat = "tar.xz"
	FormatTarBz2 ArchiveFormat = "tar.bz2"
	FormatZip    ArchiveFormat = "zip"
)

var archiveSuffixes = []struct {
	suffix string
	format ArchiveFormat
}{
	{".tar.gz", FormatTarGz},
	{".tar.xz", FormatTarXz},
	{".tar.bz2", FormatTarBz2},
	{".zip", FormatZip},
}

// DetectFormat returns the archive format for rawURL, or FormatNone when the
// URL names a single file. Only the URL path is considered, so query strings
// on signed download links do not hide the suffix.
func DetectFormat(rawURL string) ArchiveFormat {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		p = u.Path
	}

	for _, s := range archiveSuffixes {
		if strings.HasSuffix(p, s.suffix) {
			return s.format
		}
	}
	return FormatNone
}

// IsArchive reports whether f names an archive format.
func (f ArchiveFormat) IsArchive() bool {
	return f != FormatNone
}

func (f ArchiveFormat) String() string {
	if f == FormatNone {
		return "file"
	}
	return string(f)
}

// VerificationMethod indicates how downloaded bytes were verified.
type VerificationMethod int

const (
	// VerificationNone means the entry was skipped and nothing was fetched.
	VerificationNone VerificationMethod = iota
	// VerificationSHA256 means only the declared hash was checked.
	VerificationSHA256
	// VerificationGPG means the hash and a detached signature were checked.
	VerificationGPG
)

// String returns the string representation of the verification method
func (v VerificationMethod) String() string {
	switch v {
	case VerificationGPG:
		return "SHA256+GPG"
	case VerificationSHA256:
		return "SHA256"
	case VerificationNone:
		return "None"
	default:
		return "Unknown"
	}
}

// InstallResult describes what Install did for one entry.
type InstallResult struct {
	Name     string
	Target   string
	Format   ArchiveFormat
	Skipped  bool     // target already existed
	Files    []string // absolute paths written
	Verified VerificationMethod
	Duration time.Duration
}
