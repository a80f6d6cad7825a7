package archive

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/juju/errors"

	"webup/deploy/domain"
	"webup/deploy/utils"
)

// IsPacked reports whether path names a packed (tar.gz) archive.
func IsPacked(p string) bool {
	lower := strings.ToLower(p)
	return strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz")
}

// IsEncrypted reports whether path names an encrypted packed archive.
func IsEncrypted(p string) bool {
	return strings.HasSuffix(strings.ToLower(p), EncryptedSuffix)
}

func openTarball(tarball string) (*tar.Reader, func(), error) {
	reader, err := os.Open(tarball)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}

	gzipReader, err := gzip.NewReader(reader)
	if err != nil {
		reader.Close()
		return nil, nil, errors.Annotatef(err, "%s is not a gzip stream", tarball)
	}

	closeFn := func() {
		gzipReader.Close()
		reader.Close()
	}
	return tar.NewReader(gzipReader), closeFn, nil
}

// entryName cleans a tar member name; ok is false for names escaping the
// archive root.
func entryName(name string) (string, bool) {
	clean := path.Clean("/" + strings.TrimPrefix(name, "./"))
	clean = strings.TrimPrefix(clean, "/")
	if clean == "" || clean == "." {
		return "", false
	}
	return clean, true
}

// ReadConfigCopy returns the name and content of the configuration copy
// at the top of a packed archive, without unpacking it. Encrypted archives
// are opened with key.
func ReadConfigCopy(tarball string, key []byte) (string, []byte, error) {
	if IsEncrypted(tarball) {
		tmp, err := os.MkdirTemp("", "deploy-config-")
		if err != nil {
			return "", nil, errors.Trace(err)
		}
		defer os.RemoveAll(tmp)

		if tarball, err = Decrypt(tarball, tmp, key); err != nil {
			return "", nil, err
		}
	}

	tarReader, closeFn, err := openTarball(tarball)
	if err != nil {
		return "", nil, err
	}
	defer closeFn()

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return "", nil, errors.Trace(err)
		}

		name, ok := entryName(header.Name)
		if !ok || header.Typeflag != tar.TypeReg || strings.Count(name, "/") > 1 {
			continue
		}
		for _, ext := range domain.ConfigCopyExtensions {
			if path.Base(name) == domain.ConfigCopyBase+ext {
				data, err := io.ReadAll(tarReader)
				if err != nil {
					return "", nil, errors.Trace(err)
				}
				return name, data, nil
			}
		}
	}

	return "", nil, errors.NotFoundf("configuration copy in %s", tarball)
}

// Unpack extracts a packed archive into dest. Packed archives never hold
// links, so symbolic and hard link members are refused, as is any member
// that would land outside dest.
func Unpack(tarball, dest string) error {
	root, err := filepath.EvalSymlinks(dest)
	if err != nil {
		return errors.Trace(err)
	}

	tarReader, closeFn, err := openTarball(tarball)
	if err != nil {
		return err
	}
	defer closeFn()

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return errors.Trace(err)
		}

		name, ok := entryName(header.Name)
		if !ok {
			continue
		}
		target := filepath.Join(root, filepath.FromSlash(name))

		switch header.Typeflag {
		case tar.TypeDir, tar.TypeReg:
		case tar.TypeSymlink, tar.TypeLink:
			return errors.NotSupportedf("link member %q in %s", header.Name, tarball)
		default:
			continue
		}
		if err := checkParent(root, target); err != nil {
			return errors.Annotatef(err, "extracting %s", name)
		}

		if header.Typeflag == tar.TypeDir {
			if err := os.MkdirAll(target, 0755); err != nil {
				return errors.Trace(err)
			}
			continue
		}
		if err := utils.CopyFile(target, tarReader, header.FileInfo()); err != nil {
			return errors.Annotatef(err, "extracting %s", name)
		}
	}

	return nil
}

// checkParent fails unless the deepest existing ancestor of target
// resolves inside root.
func checkParent(root, target string) error {
	dir := filepath.Dir(target)
	for {
		resolved, err := filepath.EvalSymlinks(dir)
		if err == nil {
			if !isInside(root, resolved) {
				return errors.NotValidf("path %q leaving %q", target, root)
			}
			return nil
		}
		if !os.IsNotExist(err) {
			return errors.Trace(err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return errors.NotValidf("path %q", target)
		}
		dir = parent
	}
}

// isInside reports whether p is root or lies below it.
func isInside(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
