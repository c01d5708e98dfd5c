package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Contains reports whether the canonicalized form of p lies inside the
// canonicalized sandbox root, or inside one of the extra glob-allowed
// paths. Symlinks that would cross the boundary are treated as boundary
// violations: both sides are resolved with EvalSymlinks (tolerating
// not-yet-existing path components) before the prefix check.
func (s *Sandbox) Contains(p string, extraAllowedGlobs []string) (bool, error) {
	cleanRoot := filepath.Clean(s.Root)
	if real, err := filepath.EvalSymlinks(cleanRoot); err == nil {
		cleanRoot = real
	}

	resolved := p
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(s.Root, resolved)
	}
	resolved = filepath.Clean(resolved)
	if real, err := evalSymlinksExisting(resolved); err == nil {
		resolved = real
	}

	if isUnder(resolved, cleanRoot) {
		return true, nil
	}

	for _, pattern := range extraAllowedGlobs {
		matched, err := doublestar.Match(pattern, resolved)
		if err == nil && matched {
			return true, nil
		}
	}

	return false, fmt.Errorf("path %q is outside sandbox root %q", p, s.Root)
}

// isUnder reports whether child is equal to or nested under parent.
func isUnder(child, parent string) bool {
	if child == parent {
		return true
	}
	return strings.HasPrefix(child, parent+string(filepath.Separator))
}

// evalSymlinksExisting resolves symlinks for path, walking up to the
// nearest existing ancestor when path itself does not yet exist (the
// common case for a file about to be created inside the sandbox).
func evalSymlinksExisting(path string) (string, error) {
	real, err := filepath.EvalSymlinks(path)
	if err == nil {
		return real, nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if dir == path {
		return "", err
	}
	resolvedDir, err := evalSymlinksExisting(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedDir, base), nil
}
