package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Field names as they appear in configuration files.
const (
	FieldName            = "name"
	FieldPlatform        = "platform"
	FieldArch            = "arch"
	FieldURL             = "url"
	FieldSHA256          = "sha256"
	FieldTarget          = "target"
	FieldChmod           = "chmod"
	FieldExtractSkip     = "extract_skip"
	FieldExtractOnly     = "extract_only"
	FieldStripComponents = "strip_components"
	FieldSignatureURL    = "signature_url"
	FieldPublicKey       = "public_key"
)

// Entry describes one installable artifact.
type Entry struct {
	Name     string `json:"name"`
	Platform string `json:"platform"`
	Arch     string `json:"arch,omitempty"`

	URL    string `json:"url"`
	SHA256 string `json:"sha256"`
	Target string `json:"target"`

	Chmod           *FileMode `json:"chmod,omitempty"`
	ExtractSkip     []string  `json:"extract_skip,omitempty"`
	ExtractOnly     string    `json:"extract_only,omitempty"`
	StripComponents int       `json:"strip_components,omitempty"`

	// Optional detached OpenPGP signature over the downloaded bytes.
	SignatureURL string `json:"signature_url,omitempty"`
	PublicKey    string `json:"public_key,omitempty"`

	// Index is the entry's position in the configuration file.
	Index int `json:"-"`

	// UnknownFields lists keys the entry carries that no field matches.
	UnknownFields []string `json:"-"`
}

// knownFields holds every key an entry may carry.
var knownFields = map[string]bool{
	FieldName: true, FieldPlatform: true, FieldArch: true,
	FieldURL: true, FieldSHA256: true, FieldTarget: true,
	FieldChmod: true, FieldExtractSkip: true, FieldExtractOnly: true, FieldStripComponents: true,
	FieldSignatureURL: true, FieldPublicKey: true,
}

// Require checks that the named fields are present. Empty strings count as
// missing.
func (e Entry) Require(fields ...string) error {
	for _, field := range fields {
		var missing bool
		switch field {
		case FieldName:
			missing = e.Name == ""
		case FieldPlatform:
			missing = e.Platform == ""
		case FieldURL:
			missing = e.URL == ""
		case FieldSHA256:
			missing = e.SHA256 == ""
		case FieldTarget:
			missing = e.Target == ""
		default:
			return fmt.Errorf("field %q cannot be required", field)
		}
		if missing {
			return &FieldError{Index: e.Index, Name: e.Name, Field: field, Err: ErrMissingField}
		}
	}
	return nil
}

// ValidateInstall checks everything an install needs from the entry.
// Unknown keys are reported here, so they only matter for entries that are
// actually installed.
func (e Entry) ValidateInstall() error {
	if err := e.Require(FieldURL, FieldSHA256, FieldTarget); err != nil {
		return err
	}

	if len(e.UnknownFields) > 0 {
		return &FieldError{Index: e.Index, Name: e.Name, Field: e.UnknownFields[0], Err: ErrUnknownField}
	}

	if e.StripComponents < 0 {
		return &FieldError{
			Index: e.Index, Name: e.Name, Field: FieldStripComponents,
			Err: fmt.Errorf("must not be negative, got %d", e.StripComponents),
		}
	}

	switch {
	case e.SignatureURL != "" && e.PublicKey == "":
		return &FieldError{Index: e.Index, Name: e.Name, Field: FieldPublicKey, Err: ErrMissingField}
	case e.SignatureURL == "" && e.PublicKey != "":
		return &FieldError{Index: e.Index, Name: e.Name, Field: FieldSignatureURL, Err: ErrMissingField}
	}

	return nil
}

// HasSignature reports whether the entry asks for signature verification.
func (e Entry) HasSignature() bool {
	return e.SignatureURL != "" && e.PublicKey != ""
}

var (
	// ErrMissingField is wrapped by FieldError when a required field is absent.
	ErrMissingField = errors.New("missing required field")
	// ErrUnknownField is wrapped by FieldError for keys no field matches.
	ErrUnknownField = errors.New("unknown field")
)

// FieldError reports a problem with one field of one entry.
type FieldError struct {
	Index int
	Name  string
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("config entry %d: %s: %v", e.Index, e.Field, e.Err)
	}
	return fmt.Sprintf("config entry %d (%s): %s: %v", e.Index, e.Name, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// FileMode is a permission value written in octal digits. Both 755 and "755"
// decode to 0o755; "0755" and "0o755" are accepted too.
type FileMode os.FileMode

// ParseFileMode parses octal permission digits.
func ParseFileMode(s string) (FileMode, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0o"), "0O")
	if s == "" {
		return 0, fmt.Errorf("empty file mode")
	}

	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid octal file mode %q", s)
	}
	if v > 0o7777 {
		return 0, fmt.Errorf("file mode %o out of range", v)
	}
	return FileMode(v), nil
}

// Perm returns the mode as an os.FileMode.
func (m FileMode) Perm() os.FileMode {
	return os.FileMode(m)
}

func (m FileMode) String() string {
	return fmt.Sprintf("%04o", uint32(m))
}

func (m *FileMode) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	parsed, err := ParseFileMode(string(data))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m FileMode) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(m.String())), nil
}
