package artifact

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/gobwas/glob"

	"github.com/ZebulonRouseFrantzich/artifetch/internal/logging"
)

// ErrUnsafePath is returned for archive members that would be placed
// outside the target directory.
var ErrUnsafePath = errors.New("archive member escapes target directory")

// PlaceOptions carries an entry's extraction rules.
type PlaceOptions struct {
	Format          ArchiveFormat
	Chmod           *os.FileMode
	ExtractSkip     []string
	ExtractOnly     string
	StripComponents int
}

// Placer writes verified bytes to disk.
type Placer struct {
	log logging.Logger
}

// NewPlacer creates a placer.
func NewPlacer(log logging.Logger) *Placer {
	return &Placer{log: logging.OrNop(log)}
}

// Place writes data to target according to opts and returns the files it
// wrote. A single file is written at target itself; an archive is extracted
// into the directory target.
func (p *Placer) Place(data []byte, target string, opts PlaceOptions) ([]string, error) {
	if !opts.Format.IsArchive() {
		if err := p.WriteFile(data, target, opts.Chmod); err != nil {
			return nil, err
		}
		return []string{target}, nil
	}
	return p.Extract(data, target, opts)
}

// WriteFile writes data to path through a temporary file and an atomic
// rename, creating parent directories first.
func (p *Placer) WriteFile(data []byte, path string, chmod *os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create dest dir: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write file %s: %w", path, err)
	}

	if chmod != nil {
		if err := os.Chmod(tmpPath, *chmod); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("chmod %s: %w", path, err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Extract walks the archive in data and writes the selected members under
// root.
//
// When opts.ExtractOnly is set, the first member whose base name equals it
// is written to root/<base name> and the walk stops right there; skip
// patterns are ignored. Otherwise members matching any skip pattern are left
// out and the rest keep their stripped relative paths. Members without
// content are never written.
func (p *Placer) Extract(data []byte, root string, opts PlaceOptions) ([]string, error) {
	skips, err := compileSkips(opts.ExtractSkip)
	if err != nil {
		return nil, err
	}

	var written []string
	err = walkArchive(opts.Format, data, func(m member) (bool, error) {
		name := stripComponents(m.name, opts.StripComponents)

		if opts.ExtractOnly != "" {
			base := baseName(name)
			if base != opts.ExtractOnly {
				return false, nil
			}

			dest, err := safeJoin(root, base)
			if err != nil {
				return true, err
			}
			p.log.Debug("extracting only", "path", dest)
			ok, err := p.placeMember(m, dest, opts.Chmod)
			if ok {
				written = append(written, dest)
			}
			return true, err
		}

		if name == "" {
			return false, nil
		}
		if matchesAny(skips, name) {
			p.log.Debug("skipping", "member", name)
			return false, nil
		}

		dest, err := safeJoin(root, name)
		if err != nil {
			return true, err
		}
		p.log.Debug("extracting", "path", dest)
		ok, err := p.placeMember(m, dest, opts.Chmod)
		if ok {
			written = append(written, dest)
		}
		return false, err
	})
	if err != nil {
		return written, err
	}

	return written, nil
}

// placeMember writes one member to dest. It reports false without error when
// dest is an existing directory or the member has no content.
func (p *Placer) placeMember(m member, dest string, chmod *os.FileMode) (bool, error) {
	if info, err := os.Stat(dest); err == nil && info.IsDir() {
		return false, nil
	}

	data, err := m.content()
	if err != nil {
		return false, fmt.Errorf("read member %s: %w", m.name, err)
	}
	if len(data) == 0 {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return false, fmt.Errorf("create parent dir for %s: %w", dest, err)
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return false, fmt.Errorf("write file %s: %w", dest, err)
	}
	if chmod != nil {
		if err := os.Chmod(dest, *chmod); err != nil {
			return false, fmt.Errorf("chmod %s: %w", dest, err)
		}
	}
	return true, nil
}

// stripComponents drops the first n slash-separated segments of name.
func stripComponents(name string, n int) string {
	if n <= 0 {
		return name
	}
	parts := strings.Split(name, "/")
	if n >= len(parts) {
		return ""
	}
	return strings.Join(parts[n:], "/")
}

// baseName returns the text after the last slash; a trailing slash yields "".
func baseName(name string) string {
	return name[strings.LastIndex(name, "/")+1:]
}

// safeJoin joins an archive-relative name under root and rejects names that
// are absolute or climb out of root.
func safeJoin(root, name string) (string, error) {
	clean := path.Clean(name)
	if path.IsAbs(clean) || filepath.IsAbs(filepath.FromSlash(clean)) ||
		clean == ".." || strings.HasPrefix(clean, "../") || filepath.VolumeName(filepath.FromSlash(clean)) != "" {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}

	dest, err := securejoin.SecureJoin(root, name)
	if err != nil {
		return "", fmt.Errorf("join %s: %w", name, err)
	}
	if dest != filepath.Join(root, filepath.FromSlash(clean)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return dest, nil
}

// compileSkips compiles fnmatch-style skip patterns. Without separators,
// "*" and "?" also match "/".
func compileSkips(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(fnmatchPattern(pattern))
		if err != nil {
			return nil, fmt.Errorf("invalid extract_skip pattern %q: %w", pattern, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

// fnmatchPattern escapes what glob would read differently from fnmatch:
// braces, commas and backslashes are plain characters there, and so is a
// "[" that never closes.
func fnmatchPattern(pattern string) string {
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '[':
			if end := classEnd(pattern, i); end > 0 {
				b.WriteString(pattern[i : end+1])
				i = end
				continue
			}
			b.WriteString(`\[`)
		case '{', '}', ',', '\\', ']':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// classEnd returns the index of the "]" closing the class opened at start,
// or -1. A "]" right after "[" or "[!" belongs to the class.
func classEnd(pattern string, start int) int {
	j := start + 1
	if j < len(pattern) && pattern[j] == '!' {
		j++
	}
	if j < len(pattern) && pattern[j] == ']' {
		j++
	}
	for ; j < len(pattern); j++ {
		if pattern[j] == ']' {
			return j
		}
	}
	return -1
}

func matchesAny(globs []glob.Glob, name string) bool {
	for _, g := range globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}
