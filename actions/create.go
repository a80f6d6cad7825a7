package actions

import (
	"context"

	"github.com/juju/errors"

	"webup/deploy/domain"
	"webup/deploy/hooks"
	"webup/deploy/utils"
)

// CreateRequest describes one archive creation.
type CreateRequest struct {
	ConfigPath string
	// DestRoot is the directory the archive directory <project> goes into.
	DestRoot  string
	Selection domain.Selection
	Symlinks  domain.SymlinkPolicy
}

// Create dumps the selected components into <DestRoot>/<project> and
// removes the directories of the components left out, so that the archive
// holds exactly the selection.
//
// A failing dump stops the sequence; components already processed are not
// rolled back and the post-create hook does not run.
func (a *Archiver) Create(ctx context.Context, req CreateRequest) error {
	if req.Selection.IsEmpty() {
		return errors.WithType(errors.New("no component selected"), domain.UsageError)
	}

	cfg, err := a.deps.Config.Parse(req.ConfigPath)
	if err != nil {
		return errors.Trace(err)
	}
	project, err := cfg.Project()
	if err != nil {
		return errors.Trace(err)
	}

	// fetch every selected section before anything touches the disk
	sections := map[domain.Component]domain.Section{}
	for _, c := range req.Selection.Components() {
		section, err := cfg.Section(c.String())
		if err != nil {
			return errors.Trace(err)
		}
		sections[c] = section
	}

	ar := domain.NewArchive(req.DestRoot, project)
	a.logger.Infof("creating archive '%s' (%s, %s)", ar.Dir(), req.Selection, req.Symlinks)

	a.runHook(ctx, cfg, cfg.Dir(), hooks.PreCreate)

	if err := a.deps.Initializer.Initialize(ctx, ar.Dir(), cfg); err != nil {
		return errors.WithType(errors.Annotatef(err, "initializing %s", ar.Dir()), domain.ComponentOperationError)
	}

	for _, c := range domain.AllComponents {
		path := ar.ComponentDir(c)

		if !req.Selection.Has(c) {
			a.logger.Debugf("removing '%s'", path)
			if _, err := utils.RemoveTreeSilent(path); err != nil {
				return errors.WithType(errors.Annotatef(err, "removing %s", path), domain.ComponentOperationError)
			}
			continue
		}

		a.logger.Infof("dumping %s", c)
		if err := a.dump(ctx, c, sections[c], path, req.Symlinks); err != nil {
			return errors.WithType(errors.Annotatef(err, "dumping %s", c), domain.ComponentOperationError)
		}
	}

	a.runHook(ctx, cfg, cfg.Dir(), hooks.PostCreate)

	a.logger.Infof("done creating archive")
	return nil
}

func (a *Archiver) dump(ctx context.Context, c domain.Component, section domain.Section, path string, policy domain.SymlinkPolicy) error {
	switch c {
	case domain.Databases:
		return a.deps.Databases.Dump(ctx, section, path)
	case domain.Files:
		return a.deps.Files.Dump(ctx, section, path, policy)
	case domain.Code:
		return a.deps.Code.Dump(ctx, section, path, policy)
	}
	return errors.NotSupportedf("component %s", c)
}
