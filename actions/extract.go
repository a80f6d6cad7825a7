package actions

import (
	"context"

	"github.com/juju/errors"

	"webup/deploy/domain"
	"webup/deploy/hooks"
)

// webServerSection is the configuration section of the web server.
const webServerSection = "apache"

// Extract restores every component from the archive at archivePath, then
// regenerates the web server configuration. There is no selection: each
// restore is called with its archive subdirectory whether it exists or
// not, and decides itself what an absent one means.
func (a *Archiver) Extract(ctx context.Context, archivePath string) error {
	cfg, err := a.deps.Config.ParseArchive(archivePath)
	if err != nil {
		return errors.Trace(err)
	}

	// fetch every section before anything is unpacked or restored
	sections := map[domain.Component]domain.Section{}
	for _, c := range domain.AllComponents {
		if sections[c], err = cfg.Section(c.String()); err != nil {
			return errors.Trace(err)
		}
	}
	webServer, err := cfg.Section(webServerSection)
	if err != nil {
		return errors.Trace(err)
	}

	src, err := a.deps.Resolver.ResolveSourceDir(ctx, archivePath)
	if err != nil {
		return errors.Trace(err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			a.logger.Warningf("cleaning up '%s': %v", src.Dir, err)
		}
	}()

	a.logger.Infof("restoring archive from '%s'", src.Dir)
	if m := src.Manifest; m != nil {
		a.logger.Infof("archive of '%s' created %s on '%s'", m.Project, m.Created.Format("2006-01-02 15:04:05 MST"), m.Hostname)
	}

	a.runHook(ctx, cfg, src.Dir, hooks.PreRestore)

	for _, c := range domain.AllComponents {
		a.logger.Infof("restoring %s", c)
		if err := a.restore(ctx, c, sections[c], domain.ComponentDir(src.Dir, c)); err != nil {
			return errors.WithType(errors.Annotatef(err, "restoring %s", c), domain.ComponentOperationError)
		}
	}

	a.logger.Infof("restoring %s configuration", webServerSection)
	if err := a.deps.Apache.Restore(ctx, webServer); err != nil {
		return errors.WithType(errors.Annotatef(err, "restoring %s configuration", webServerSection), domain.ComponentOperationError)
	}

	a.runHook(ctx, cfg, src.Dir, hooks.PostRestore)

	a.logger.Infof("done restoring")
	return nil
}

func (a *Archiver) restore(ctx context.Context, c domain.Component, section domain.Section, path string) error {
	switch c {
	case domain.Databases:
		return a.deps.Databases.Restore(ctx, section, path)
	case domain.Files:
		return a.deps.Files.Restore(ctx, section, path)
	case domain.Code:
		return a.deps.Code.Restore(ctx, section, path)
	}
	return errors.NotSupportedf("component %s", c)
}
