package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

func TestCreate_RelativePathsAtRoot(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"handler.py":           "def handler(event, context): pass\n",
		"requests/__init__.py": "",
		"requests/api.py":      "def get(url): pass\n",
	})

	out := filepath.Join(t.TempDir(), "out.zip")
	require.NoError(t, Create(out, dir))

	names, err := List(out)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"handler.py",
		"requests/__init__.py",
		"requests/api.py",
	}, names)
}

func TestCreate_EmptyDir(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.zip")
	err := Create(out, t.TempDir())
	assert.ErrorIs(t, err, ErrEmptyDir)
	assert.NoFileExists(t, out)
}

func TestCreate_NoPartialArchiveOnFailure(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.zip")
	err := Create(out, filepath.Join(t.TempDir(), "does-not-exist"))
	require.Error(t, err)
	assert.NoFileExists(t, out)
}

func TestCreate_SameContentsOnRebuild(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"handler.py":   "print('hi')\n",
		"lib/mod.py":   "x = 1\n",
		"lib/other.py": "y = 2\n",
	})

	first := filepath.Join(t.TempDir(), "first.zip")
	second := filepath.Join(t.TempDir(), "second.zip")
	require.NoError(t, Create(first, dir))
	require.NoError(t, Create(second, dir))

	firstNames, err := List(first)
	require.NoError(t, err)
	secondNames, err := List(second)
	require.NoError(t, err)
	assert.Equal(t, firstNames, secondNames)
}

func TestContains(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"handler.py": "pass\n",
		"pandas/_libs/interval.cpython-312-x86_64-linux-gnu.so": "\x7fELF",
	})

	out := filepath.Join(t.TempDir(), "out.zip")
	require.NoError(t, Create(out, dir))

	found, err := Contains(out, "pandas/_libs/interval.cpython-312-x86_64-linux-gnu.so")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = Contains(out, "pandas/_libs/missing.so")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestList_MissingArchive(t *testing.T) {
	_, err := List(filepath.Join(t.TempDir(), "absent.zip"))
	assert.Error(t, err)
}
