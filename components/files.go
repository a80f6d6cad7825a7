package components

import (
	"context"
	"os"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"webup/deploy/domain"
	"webup/deploy/utils"
)

// Files mirrors the static file trees of a project. The section key
// "paths" lists them; each one is archived under its base name.
type Files struct {
	logger loggo.Logger
}

func NewFiles(ectx domain.ExecutionContext) *Files {
	return &Files{logger: ectx.Logger("files")}
}

func filePaths(section domain.Section) ([]string, error) {
	paths := section.List("paths")
	if len(paths) == 0 {
		return nil, errors.WithType(errors.Errorf("no files to archive: set %q", "paths"), domain.MissingField)
	}
	seen := map[string]string{}
	for _, p := range paths {
		if !filepath.IsAbs(p) {
			return nil, errors.WithType(errors.Errorf("%q is not an absolute path", p), domain.ConfigError)
		}
		base := filepath.Base(p)
		if other, ok := seen[base]; ok {
			return nil, errors.WithType(errors.Errorf("%s and %s share the archive name %q", other, p, base), domain.ConfigError)
		}
		seen[base] = p
	}
	return paths, nil
}

// Dump replaces destDir with a mirror of every configured path, by copy
// or by symbolic link depending on policy.
func (f *Files) Dump(ctx context.Context, section domain.Section, destDir string, policy domain.SymlinkPolicy) error {
	paths, err := filePaths(section)
	if err != nil {
		return err
	}
	if err := utils.ReplaceDir(destDir); err != nil {
		return errors.Annotatef(err, "unable to create the files backup directory")
	}

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := mirror(f.logger, p, filepath.Join(destDir, filepath.Base(p)), policy, nil); err != nil {
			return errors.Annotatef(err, "unable to backup %s", p)
		}
	}
	return nil
}

// Restore copies each archived tree back to its configured path, replacing
// what is there. A missing srcDir means the archive holds no files.
func (f *Files) Restore(ctx context.Context, section domain.Section, srcDir string) error {
	if !isDir(srcDir) {
		f.logger.Warningf("no files in archive ('%s' missing), skipping", srcDir)
		return nil
	}
	paths, err := filePaths(section)
	if err != nil {
		return err
	}

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		src := filepath.Join(srcDir, filepath.Base(p))
		if !fileExists(src) {
			f.logger.Warningf("'%s' not in archive, skipping", p)
			continue
		}
		if err := restoreTree(f.logger, src, p, nil); err != nil {
			return errors.Annotatef(err, "unable to restore %s", p)
		}
	}
	return nil
}

// mirror makes target a copy of, or a link to, src.
func mirror(logger loggo.Logger, src, target string, policy domain.SymlinkPolicy, exclude []string) error {
	if _, err := os.Stat(src); err != nil {
		return errors.Trace(err)
	}
	if _, err := utils.RemoveTreeSilent(target); err != nil {
		return err
	}

	if policy == domain.Symlink {
		abs, err := filepath.Abs(src)
		if err != nil {
			return errors.Trace(err)
		}
		logger.Debugf("linking '%s' -> '%s'", target, abs)
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(os.Symlink(abs, target))
	}

	logger.Debugf("copying '%s' to '%s'", src, target)
	return utils.CopyTree(src, target, utils.CopyOptions{Exclude: exclude})
}

// restoreTree replaces the content of target with the content of src.
// Top-level entries of target matching keep are left alone.
func restoreTree(logger loggo.Logger, src, target string, keep []string) error {
	// with a symlinked archive restored on the same host, src is target
	if utils.SamePath(src, target) {
		logger.Infof("'%s' already in place", target)
		return nil
	}

	info, err := os.Stat(src)
	if err != nil {
		return errors.Trace(err)
	}
	if !info.IsDir() {
		logger.Infof("restoring '%s'", target)
		return utils.CopyTree(src, target, utils.CopyOptions{Dereference: true})
	}

	if err := clearDir(target, keep); err != nil {
		return err
	}
	logger.Infof("restoring '%s'", target)
	return utils.CopyTree(src, target, utils.CopyOptions{Dereference: true, Exclude: keep})
}

// clearDir empties dir except for the entries matching keep.
func clearDir(dir string, keep []string) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return errors.Trace(err)
	}
	if !info.IsDir() {
		return errors.Trace(os.Remove(dir))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.Trace(err)
	}

	opts := utils.CopyOptions{Exclude: keep}
	for _, entry := range entries {
		if opts.Excluded(entry.Name()) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}
