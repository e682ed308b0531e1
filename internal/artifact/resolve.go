package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ResolveTarget turns a configured target into an absolute path. A relative
// target containing a ".." segment is taken relative to baseDir (the
// utility's own directory); anything else has "~" expanded and is made
// absolute against the working directory.
func ResolveTarget(baseDir, target string) (string, error) {
	if hasParentSegment(target) && !filepath.IsAbs(target) {
		target = filepath.Join(baseDir, target)
	}

	expanded, err := expandHome(target)
	if err != nil {
		return "", err
	}

	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", target, err)
	}
	return abs, nil
}

func hasParentSegment(p string) bool {
	for _, seg := range strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return true
		}
	}
	return false
}

// expandHome replaces a leading "~" with the user's home directory.
func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") && !strings.HasPrefix(p, `~\`) {
		return p, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", p, err)
	}
	return filepath.Join(home, p[1:]), nil
}

// exists reports whether p is present on disk.
func exists(p string) (bool, error) {
	_, err := os.Lstat(p)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", p, err)
}
