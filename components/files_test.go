package components

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webup/deploy/domain"
)

func TestFilesDumpCopy(t *testing.T) {
	site := t.TempDir()
	uploads := filepath.Join(site, "uploads")
	writeFile(t, filepath.Join(uploads, "logo.png"), "png")
	media := filepath.Join(site, "media")
	writeFile(t, filepath.Join(media, "a", "b.mp4"), "mp4")

	dest := filepath.Join(t.TempDir(), "files")
	writeFile(t, filepath.Join(dest, "stale"), "x")

	files := NewFiles(newExecutionContext(newFakeRunner()))
	section := domain.Section{"paths": uploads + ", " + media}
	require.NoError(t, files.Dump(context.Background(), section, dest, domain.Copy))

	info, err := os.Lstat(filepath.Join(dest, "uploads"))
	require.NoError(t, err)
	assert.True(t, info.IsDir(), "copied, not linked")
	assert.Equal(t, "png", readFile(t, filepath.Join(dest, "uploads", "logo.png")))
	assert.Equal(t, "mp4", readFile(t, filepath.Join(dest, "media", "a", "b.mp4")))
	assert.NoFileExists(t, filepath.Join(dest, "stale"))
}

func TestFilesDumpSymlink(t *testing.T) {
	uploads := filepath.Join(t.TempDir(), "uploads")
	writeFile(t, filepath.Join(uploads, "logo.png"), "png")

	dest := filepath.Join(t.TempDir(), "files")
	files := NewFiles(newExecutionContext(newFakeRunner()))
	require.NoError(t, files.Dump(context.Background(), domain.Section{"paths": uploads}, dest, domain.Symlink))

	target, err := os.Readlink(filepath.Join(dest, "uploads"))
	require.NoError(t, err)
	assert.Equal(t, uploads, target)
}

func TestFilesDumpMissingSource(t *testing.T) {
	files := NewFiles(newExecutionContext(newFakeRunner()))
	section := domain.Section{"paths": filepath.Join(t.TempDir(), "missing")}

	err := files.Dump(context.Background(), section, filepath.Join(t.TempDir(), "files"), domain.Copy)
	assert.Error(t, err)
}

func TestFilesConfigErrors(t *testing.T) {
	files := NewFiles(newExecutionContext(newFakeRunner()))
	dest := filepath.Join(t.TempDir(), "files")

	err := files.Dump(context.Background(), domain.Section{}, dest, domain.Copy)
	assert.ErrorIs(t, err, domain.MissingField)

	err = files.Dump(context.Background(), domain.Section{"paths": "relative/uploads"}, dest, domain.Copy)
	assert.ErrorIs(t, err, domain.ConfigError)

	err = files.Dump(context.Background(), domain.Section{"paths": "/a/uploads /b/uploads"}, dest, domain.Copy)
	assert.ErrorIs(t, err, domain.ConfigError)
}

func TestFilesRestore(t *testing.T) {
	uploads := filepath.Join(t.TempDir(), "uploads")
	writeFile(t, filepath.Join(uploads, "new-since-backup.png"), "x")

	src := filepath.Join(t.TempDir(), "files")
	writeFile(t, filepath.Join(src, "uploads", "logo.png"), "png")

	files := NewFiles(newExecutionContext(newFakeRunner()))
	require.NoError(t, files.Restore(context.Background(), domain.Section{"paths": uploads}, src))

	assert.Equal(t, "png", readFile(t, filepath.Join(uploads, "logo.png")))
	assert.NoFileExists(t, filepath.Join(uploads, "new-since-backup.png"))
}

func TestFilesRestoreSymlinkedArchiveOnSameHost(t *testing.T) {
	uploads := filepath.Join(t.TempDir(), "uploads")
	writeFile(t, filepath.Join(uploads, "logo.png"), "png")

	dest := filepath.Join(t.TempDir(), "files")
	files := NewFiles(newExecutionContext(newFakeRunner()))
	section := domain.Section{"paths": uploads}
	require.NoError(t, files.Dump(context.Background(), section, dest, domain.Symlink))

	require.NoError(t, files.Restore(context.Background(), section, dest))
	assert.Equal(t, "png", readFile(t, filepath.Join(uploads, "logo.png")))
}

func TestFilesRestoreMissingSource(t *testing.T) {
	files := NewFiles(newExecutionContext(newFakeRunner()))
	section := domain.Section{"paths": "/var/www/uploads"}

	assert.NoError(t, files.Restore(context.Background(), section, filepath.Join(t.TempDir(), "files")))
}

func TestCodeDumpExcludes(t *testing.T) {
	checkout := t.TempDir()
	writeFile(t, filepath.Join(checkout, "index.php"), "<?php")
	writeFile(t, filepath.Join(checkout, ".git", "HEAD"), "ref")

	dest := filepath.Join(t.TempDir(), "code")
	code := NewCode(newExecutionContext(newFakeRunner()))
	section := domain.Section{"dir": checkout, "exclude": ".git"}
	require.NoError(t, code.Dump(context.Background(), section, dest, domain.Copy))

	assert.Equal(t, "<?php", readFile(t, filepath.Join(dest, "index.php")))
	assert.NoDirExists(t, filepath.Join(dest, ".git"))
}

func TestCodeDumpSymlinkThenCopy(t *testing.T) {
	checkout := t.TempDir()
	writeFile(t, filepath.Join(checkout, "index.php"), "<?php")

	dest := filepath.Join(t.TempDir(), "code")
	code := NewCode(newExecutionContext(newFakeRunner()))
	section := domain.Section{"dir": checkout}

	require.NoError(t, code.Dump(context.Background(), section, dest, domain.Symlink))
	target, err := os.Readlink(dest)
	require.NoError(t, err)
	assert.Equal(t, checkout, target)

	require.NoError(t, code.Dump(context.Background(), section, dest, domain.Copy))
	info, err := os.Lstat(dest)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.FileExists(t, filepath.Join(checkout, "index.php"), "replacing the link leaves the checkout alone")
}

func TestCodeRestoreKeepsExcluded(t *testing.T) {
	checkout := t.TempDir()
	writeFile(t, filepath.Join(checkout, ".git", "HEAD"), "ref")
	writeFile(t, filepath.Join(checkout, "old.php"), "old")

	src := filepath.Join(t.TempDir(), "code")
	writeFile(t, filepath.Join(src, "index.php"), "<?php")

	code := NewCode(newExecutionContext(newFakeRunner()))
	require.NoError(t, code.Restore(context.Background(), domain.Section{"dir": checkout, "exclude": ".git"}, src))

	assert.Equal(t, "<?php", readFile(t, filepath.Join(checkout, "index.php")))
	assert.NoFileExists(t, filepath.Join(checkout, "old.php"))
	assert.Equal(t, "ref", readFile(t, filepath.Join(checkout, ".git", "HEAD")))
}

func TestCodeRequiresDir(t *testing.T) {
	code := NewCode(newExecutionContext(newFakeRunner()))

	err := code.Dump(context.Background(), domain.Section{}, filepath.Join(t.TempDir(), "code"), domain.Copy)
	assert.ErrorIs(t, err, domain.MissingField)
}
