package archive

import (
	"context"
	"os"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"webup/deploy/domain"
)

// Resolver turns the argument of extract into a plain archive directory.
type Resolver struct {
	logger loggo.Logger
	// Key returns the passphrase of encrypted archives.
	Key func() []byte
}

func NewResolver(ectx domain.ExecutionContext) *Resolver {
	return &Resolver{
		logger: ectx.Logger("archive"),
		Key:    KeyFromEnv,
	}
}

// ResolveSourceDir returns the archive at archivePath as a directory.
// Directories are used in place. Packed and encrypted archives are
// unpacked into a temporary directory that the returned source's Close
// removes.
func (r *Resolver) ResolveSourceDir(ctx context.Context, archivePath string) (domain.Source, error) {
	info, err := os.Stat(archivePath)
	if err != nil {
		return domain.Source{}, errors.WithType(errors.Annotatef(err, "unable to open archive"), domain.ConfigError)
	}

	if info.IsDir() {
		return r.source(archivePath, nil)
	}

	if !IsPacked(archivePath) && !IsEncrypted(archivePath) {
		return domain.Source{}, errors.WithType(errors.Errorf("%s is neither a directory nor a packed archive", archivePath), domain.ConfigError)
	}

	tmp, err := os.MkdirTemp("", "deploy-extract-")
	if err != nil {
		return domain.Source{}, errors.Trace(err)
	}
	cleanup := func() error { return os.RemoveAll(tmp) }

	tarball := archivePath
	if IsEncrypted(archivePath) {
		r.logger.Debugf("decrypting '%s'", archivePath)
		if tarball, err = Decrypt(archivePath, tmp, r.Key()); err != nil {
			cleanup()
			return domain.Source{}, errors.WithType(err, domain.ConfigError)
		}
	}

	unpacked := filepath.Join(tmp, "unpacked")
	r.logger.Debugf("unpacking '%s' into '%s'", archivePath, unpacked)
	if err := Unpack(tarball, unpacked); err != nil {
		cleanup()
		return domain.Source{}, errors.WithType(errors.Annotatef(err, "unable to unpack %s", archivePath), domain.ConfigError)
	}

	dir, err := topLevelDir(unpacked)
	if err != nil {
		cleanup()
		return domain.Source{}, errors.WithType(errors.Annotatef(err, "%s", archivePath), domain.ConfigError)
	}
	return r.source(dir, cleanup)
}

func (r *Resolver) source(dir string, cleanup func() error) (domain.Source, error) {
	manifest, err := ReadManifest(dir)
	if err != nil {
		r.logger.Warningf("ignoring the manifest of '%s': %v", dir, err)
		manifest = nil
	}
	return domain.NewSource(dir, manifest, cleanup), nil
}

// topLevelDir returns the single project directory of an unpacked archive.
func topLevelDir(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", errors.Trace(err)
	}
	var found string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if found != "" {
			return "", errors.NotValidf("archive with several top-level directories")
		}
		found = entry.Name()
	}
	if found == "" {
		return "", errors.NotFoundf("archive directory")
	}
	return filepath.Join(dir, found), nil
}
