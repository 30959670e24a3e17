package loader

import (
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	cragerrors "github.com/standardbeagle/crag/internal/errors"
)

// Scan walks root and returns the files whose root-relative slash paths
// match an include glob and no exclude glob, sorted for deterministic
// work distribution.
func Scan(root string, include, exclude []string) ([]string, error) {
	for _, pat := range append(append([]string{}, include...), exclude...) {
		if !doublestar.ValidatePattern(pat) {
			return nil, cragerrors.NewScanError(root, pat, doublestar.ErrBadPattern)
		}
	}

	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !matchAny(include, rel) || matchAny(exclude, rel) {
			return nil
		}
		out = append(out, path)
		return nil
	})
	if err != nil {
		return nil, cragerrors.NewScanError(root, "", err)
	}
	sort.Strings(out)
	return out, nil
}

func matchAny(patterns []string, rel string) bool {
	for _, pat := range patterns {
		if ok, _ := doublestar.Match(pat, rel); ok {
			return true
		}
	}
	return false
}
