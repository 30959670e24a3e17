package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(";; Function f\n"), 0644))
	return path
}

func TestScanMatchesIncludes(t *testing.T) {
	root := t.TempDir()
	a := writeFile(t, root, "a.c.234r.expand")
	b := writeFile(t, root, "sub/b.c.234r.expand")
	writeFile(t, root, "sub/b.c")
	writeFile(t, root, "README.md")

	files, err := Scan(root, []string{"**/*.expand"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, files)
}

func TestScanAppliesExcludes(t *testing.T) {
	root := t.TempDir()
	keep := writeFile(t, root, "src/a.expand")
	writeFile(t, root, "vendor/dep/c.expand")

	files, err := Scan(root, []string{"**/*.expand"}, []string{"vendor/**"})
	require.NoError(t, err)
	assert.Equal(t, []string{keep}, files)
}

func TestScanRejectsBadPattern(t *testing.T) {
	_, err := Scan(t.TempDir(), []string{"[bad"}, nil)
	assert.Error(t, err)
}

func TestScanEmptyRoot(t *testing.T) {
	files, err := Scan(t.TempDir(), []string{"**/*.expand"}, nil)
	require.NoError(t, err)
	assert.Empty(t, files)
}
