package utils

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/juju/errors"
)

// CopyOptions tunes CopyTree.
type CopyOptions struct {
	// Dereference copies the targets of symbolic links instead of
	// recreating the links.
	Dereference bool
	// Exclude holds glob patterns matched against entry base names.
	// Matching entries below the root are skipped.
	Exclude []string
}

// Excluded reports whether name matches one of the Exclude patterns.
func (o CopyOptions) Excluded(name string) bool {
	for _, pattern := range o.Exclude {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// CopyTree copies src to dst. Directories are copied recursively and
// merged into an existing dst.
func CopyTree(src, dst string, opts CopyOptions) error {
	stat := os.Lstat
	if opts.Dereference {
		stat = os.Stat
	}
	info, err := stat(src)
	if err != nil {
		return errors.Trace(err)
	}

	switch {
	case info.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(src)
		if err != nil {
			return errors.Trace(err)
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return errors.Trace(err)
		}
		_ = os.Remove(dst)
		return errors.Trace(os.Symlink(target, dst))

	case info.IsDir():
		if err := os.MkdirAll(dst, info.Mode().Perm()|0700); err != nil {
			return errors.Trace(err)
		}
		entries, err := os.ReadDir(src)
		if err != nil {
			return errors.Trace(err)
		}
		for _, entry := range entries {
			if opts.Excluded(entry.Name()) {
				continue
			}
			if err := CopyTree(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name()), opts); err != nil {
				return err
			}
		}
		return nil

	case info.Mode().IsRegular():
		in, err := os.Open(src)
		if err != nil {
			return errors.Trace(err)
		}
		defer in.Close()
		return CopyFile(dst, in, info)
	}

	// sockets, devices and pipes are not archived
	return nil
}

// CopyFile writes the content of source to dest, creating the parent
// directories as needed.
func CopyFile(dest string, source io.Reader, sourceInfo os.FileInfo) error {

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return errors.Trace(err)
	}

	file, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, sourceInfo.Mode().Perm())
	if err != nil {
		return errors.Trace(err)
	}
	defer file.Close()

	if _, err = io.Copy(file, source); err != nil {
		return errors.Trace(err)
	}

	return errors.Trace(file.Close())
}

// ReplaceDir removes anything at path and creates an empty directory.
func ReplaceDir(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(os.MkdirAll(path, 0755))
}

// RemoveTreeSilent removes path recursively. A missing path is not an
// error; removed reports whether anything was there.
func RemoveTreeSilent(path string) (removed bool, err error) {
	if _, err := os.Lstat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Trace(err)
	}
	if err := os.RemoveAll(path); err != nil {
		return true, errors.Trace(err)
	}
	return true, nil
}

// HasSymlinks reports whether the tree rooted at dir holds a symbolic link.
func HasSymlinks(dir string) (bool, error) {
	found := false
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type()&fs.ModeSymlink != 0 {
			found = true
			return filepath.SkipAll
		}
		return nil
	})
	return found, errors.Trace(err)
}

// SamePath reports whether a and b resolve to the same file.
func SamePath(a, b string) bool {
	ia, err := os.Stat(a)
	if err != nil {
		return false
	}
	ib, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ia, ib)
}
