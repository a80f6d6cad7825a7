// Package archive prepares archive directories and exposes packed or
// encrypted archives as plain directories.
package archive

import (
	"context"
	"os"
	"path/filepath"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"webup/deploy/domain"
	"webup/deploy/hooks"
	"webup/deploy/utils"
)

// Initializer prepares the archive root before the components are dumped.
type Initializer struct {
	clock    clock.Clock
	logger   loggo.Logger
	hostname func() (string, error)
}

func NewInitializer(ectx domain.ExecutionContext) *Initializer {
	return &Initializer{
		clock:    ectx.Clock,
		logger:   ectx.Logger("archive"),
		hostname: os.Hostname,
	}
}

// Initialize creates archiveDir if needed, refreshes the configuration copy
// and the hooks, and rewrites the manifest. Running it again on the same
// archive is safe.
func (i *Initializer) Initialize(ctx context.Context, archiveDir string, cfg domain.Config) error {
	configPath := cfg.Path
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return errors.Annotatef(err, "unable to create the archive directory")
	}

	// drop copies left by a configuration of another format
	copyName := domain.ConfigCopyName(configPath)
	for _, ext := range domain.ConfigCopyExtensions {
		if name := domain.ConfigCopyBase + ext; name != copyName {
			if _, err := utils.RemoveTreeSilent(filepath.Join(archiveDir, name)); err != nil {
				return errors.Trace(err)
			}
		}
	}

	in, err := os.Open(configPath)
	if err != nil {
		return errors.Annotatef(err, "unable to copy the config file")
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return errors.Trace(err)
	}
	if err := utils.CopyFile(filepath.Join(archiveDir, copyName), in, info); err != nil {
		return errors.Annotatef(err, "unable to copy the config file")
	}

	hostname, err := i.hostname()
	if err != nil {
		i.logger.Warningf("unable to get the hostname: %v", err)
	}
	abs, err := filepath.Abs(configPath)
	if err != nil {
		abs = configPath
	}
	m := domain.Manifest{
		Project:      filepath.Base(archiveDir),
		Created:      i.clock.Now().UTC(),
		Hostname:     hostname,
		SourceConfig: abs,
	}
	if err := WriteManifest(archiveDir, m); err != nil {
		return errors.Annotatef(err, "unable to write the archive manifest")
	}

	if err := i.copyHooks(archiveDir, cfg); err != nil {
		return errors.Annotatef(err, "unable to copy the hooks")
	}

	i.logger.Debugf("archive '%s' initialized", archiveDir)
	return nil
}

// copyHooks mirrors the hooks directory of the configuration into the
// archive, where extraction looks for them. A hooks directory given as an
// absolute path is shared by both sides and left alone.
func (i *Initializer) copyHooks(archiveDir string, cfg domain.Config) error {
	src := hooks.Dir(cfg, cfg.Dir())
	dst := hooks.Dir(cfg, archiveDir)
	if src == dst || utils.SamePath(src, dst) {
		return nil
	}
	if !isInside(archiveDir, dst) {
		i.logger.Debugf("hooks directory '%s' is outside the archive, not copied", dst)
		return nil
	}

	info, err := os.Stat(src)
	if os.IsNotExist(err) || (err == nil && !info.IsDir()) {
		_, err := utils.RemoveTreeSilent(dst)
		return errors.Trace(err)
	} else if err != nil {
		return errors.Trace(err)
	}

	if err := os.RemoveAll(dst); err != nil {
		return errors.Trace(err)
	}
	i.logger.Debugf("copying hooks from '%s'", src)
	return errors.Trace(utils.CopyTree(src, dst, utils.CopyOptions{Dereference: true}))
}
