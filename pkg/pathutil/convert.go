// Package pathutil converts between absolute and relative paths. The
// loader works with absolute paths internally; user-facing output (DOT
// labels, log lines, file listings) uses paths relative to the project
// root for readability.
package pathutil

import (
	"path/filepath"
	"strings"
)

// ToRelative converts an absolute path to one relative to rootDir.
// Falls back to the original path when conversion fails, when the path
// is already relative, or when it points outside the root.
func ToRelative(absPath, rootDir string) string {
	if absPath == "" || rootDir == "" {
		return absPath
	}
	if !filepath.IsAbs(absPath) {
		return absPath
	}

	absPath = filepath.Clean(absPath)
	rootDir = filepath.Clean(rootDir)

	relPath, err := filepath.Rel(rootDir, absPath)
	if err != nil {
		return absPath
	}
	if strings.HasPrefix(relPath, "..") {
		return absPath
	}
	return relPath
}

// ToAbsolute resolves a possibly-relative path against rootDir.
func ToAbsolute(path, rootDir string) string {
	if path == "" {
		return ""
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Clean(filepath.Join(rootDir, path))
}
