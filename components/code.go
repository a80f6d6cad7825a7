package components

import (
	"context"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"webup/deploy/domain"
)

// Code mirrors the source checkout of a project. The section key "dir"
// names the checkout root; "exclude" lists base name patterns (".git",
// "node_modules") that are neither archived nor touched on restore.
type Code struct {
	logger loggo.Logger
}

func NewCode(ectx domain.ExecutionContext) *Code {
	return &Code{logger: ectx.Logger("code")}
}

func codeDir(section domain.Section) (string, error) {
	dir, err := section.Required("dir")
	if err != nil {
		return "", errors.Annotatef(err, "section code")
	}
	if !filepath.IsAbs(dir) {
		return "", errors.WithType(errors.Errorf("%q is not an absolute path", dir), domain.ConfigError)
	}
	return dir, nil
}

// Dump makes destDir a copy of, or a link to, the checkout. Exclusions only
// apply to copies.
func (c *Code) Dump(ctx context.Context, section domain.Section, destDir string, policy domain.SymlinkPolicy) error {
	dir, err := codeDir(section)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	exclude := section.List("exclude")
	if policy == domain.Symlink && len(exclude) > 0 {
		c.logger.Debugf("exclusions ignored for a symlinked checkout")
	}
	if err := mirror(c.logger, dir, destDir, policy, exclude); err != nil {
		return errors.Annotatef(err, "unable to backup the code")
	}
	return nil
}

// Restore replaces the checkout with the archived code. A missing srcDir
// means the archive holds no code.
func (c *Code) Restore(ctx context.Context, section domain.Section, srcDir string) error {
	if !isDir(srcDir) {
		c.logger.Warningf("no code in archive ('%s' missing), skipping", srcDir)
		return nil
	}
	dir, err := codeDir(section)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := restoreTree(c.logger, srcDir, dir, section.List("exclude")); err != nil {
		return errors.Annotatef(err, "unable to restore the code")
	}
	return nil
}
