package archive

import (
	"os"
	"path/filepath"

	"github.com/jhoonb/archivex"
	"github.com/juju/errors"

	"webup/deploy/utils"
)

// EncryptedSuffix is appended to packed archives by Encrypt.
const EncryptedSuffix = ".enc"

// KeyEnvVar holds the passphrase of encrypted archives.
const KeyEnvVar = "DEPLOY_ARCHIVE_KEY"

// KeyFromEnv returns the archive passphrase from the environment.
func KeyFromEnv() []byte {
	return []byte(os.Getenv(KeyEnvVar))
}

// Pack writes the archive directory dir into the tarball out (which must
// end in .tar.gz), with the directory itself as the top-level entry.
// Symbolic links are dereferenced so that the tarball is self-contained.
func Pack(dir, out string) error {
	dir = filepath.Clean(dir)

	src := dir
	linked, err := utils.HasSymlinks(dir)
	if err != nil {
		return errors.Annotatef(err, "scanning %s", dir)
	}
	if linked {
		staging, err := os.MkdirTemp("", "deploy-pack-")
		if err != nil {
			return errors.Trace(err)
		}
		defer os.RemoveAll(staging)

		src = filepath.Join(staging, filepath.Base(dir))
		if err := utils.CopyTree(dir, src, utils.CopyOptions{Dereference: true}); err != nil {
			return errors.Annotatef(err, "staging %s", dir)
		}
	}

	tar := new(archivex.TarFile)
	if err := tar.Create(out); err != nil {
		return errors.Annotatef(err, "creating %s", out)
	}
	if err := tar.AddAll(src, true); err != nil {
		tar.Close()
		return errors.Annotatef(err, "packing %s", dir)
	}
	return errors.Trace(tar.Close())
}

// Encrypt seals the packed archive at path into path+".enc" and returns
// the new path.
func Encrypt(path string, key []byte) (string, error) {
	if len(key) == 0 {
		return "", errors.NotValidf("empty archive key (set %s)", KeyEnvVar)
	}
	out := path + EncryptedSuffix
	if err := utils.EncryptFile(path, out, key); err != nil {
		return "", errors.Annotatef(err, "encrypting %s", path)
	}
	return out, nil
}

// Decrypt opens an encrypted archive into a packed archive next to dest
// and returns its path.
func Decrypt(path, destDir string, key []byte) (string, error) {
	if len(key) == 0 {
		return "", errors.NotValidf("empty archive key (set %s)", KeyEnvVar)
	}
	out := filepath.Join(destDir, "archive.tar.gz")
	if err := utils.DecryptFile(path, out, key); err != nil {
		return "", errors.Annotatef(err, "decrypting %s", path)
	}
	return out, nil
}
