package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestCopyTree(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a.txt"), "a")
	writeFile(t, filepath.Join(src, "sub", "b.txt"), "b")
	writeFile(t, filepath.Join(src, ".git", "HEAD"), "ref")
	require.NoError(t, os.Symlink("a.txt", filepath.Join(src, "link")))

	dst := filepath.Join(t.TempDir(), "copy")
	require.NoError(t, CopyTree(src, dst, CopyOptions{Exclude: []string{".git"}}))

	data, err := os.ReadFile(filepath.Join(dst, "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "b", string(data))

	assert.NoDirExists(t, filepath.Join(dst, ".git"))

	target, err := os.Readlink(filepath.Join(dst, "link"))
	require.NoError(t, err)
	assert.Equal(t, "a.txt", target)
}

func TestCopyTreeDereference(t *testing.T) {
	origin := t.TempDir()
	writeFile(t, filepath.Join(origin, "f"), "content")

	src := t.TempDir()
	require.NoError(t, os.Symlink(origin, filepath.Join(src, "uploads")))

	dst := filepath.Join(t.TempDir(), "out")
	require.NoError(t, CopyTree(src, dst, CopyOptions{Dereference: true}))

	info, err := os.Lstat(filepath.Join(dst, "uploads"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.FileExists(t, filepath.Join(dst, "uploads", "f"))
}

func TestRemoveTreeSilent(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "databases")
	writeFile(t, filepath.Join(target, "db.sql"), "--")

	removed, err := RemoveTreeSilent(target)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.NoDirExists(t, target)

	removed, err = RemoveTreeSilent(target)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestHasSymlinks(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "files", "f"), "x")

	found, err := HasSymlinks(dir)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, os.Symlink(filepath.Join(dir, "files"), filepath.Join(dir, "code")))
	found, err = HasSymlinks(dir)
	require.NoError(t, err)
	assert.True(t, found)
}
