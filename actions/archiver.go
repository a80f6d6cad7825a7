// Package actions sequences the creation and the extraction of archives.
//
// An Archiver runs one operation at a time and every step runs to
// completion before the next one starts. Nothing prevents two deploy
// processes from working on the same archive directory at once: keeping
// to one invocation per archive is left to the operator.
package actions

import (
	"context"

	"github.com/juju/loggo/v2"

	"webup/deploy/domain"
	"webup/deploy/hooks"
)

// ConfigLoader reads project configurations.
type ConfigLoader interface {
	// Parse reads the configuration file at path.
	Parse(path string) (domain.Config, error)
	// ParseArchive reads the configuration copy stored in an archive.
	ParseArchive(path string) (domain.Config, error)
}

// Initializer prepares the archive directory before dumping: the
// configuration copy, the manifest and the hooks used on extraction.
type Initializer interface {
	Initialize(ctx context.Context, archiveDir string, cfg domain.Config) error
}

// Resolver exposes an archive as a plain directory.
type Resolver interface {
	ResolveSourceDir(ctx context.Context, archivePath string) (domain.Source, error)
}

// HookRunner runs lifecycle hooks. Failures are reported in the Status,
// never as an error.
type HookRunner interface {
	Run(ctx context.Context, dir string, name hooks.Name) hooks.Status
}

// DatabaseComponent dumps and restores generated content.
type DatabaseComponent interface {
	Dump(ctx context.Context, section domain.Section, destDir string) error
	Restore(ctx context.Context, section domain.Section, srcDir string) error
}

// MirrorComponent dumps filesystem content, by copy or by link.
type MirrorComponent interface {
	Dump(ctx context.Context, section domain.Section, destDir string, policy domain.SymlinkPolicy) error
	Restore(ctx context.Context, section domain.Section, srcDir string) error
}

// WebServerComponent regenerates the web server configuration on restore.
type WebServerComponent interface {
	Restore(ctx context.Context, section domain.Section) error
}

// Collaborators are the parts an Archiver drives.
type Collaborators struct {
	Config      ConfigLoader
	Initializer Initializer
	Resolver    Resolver
	Hooks       HookRunner
	Databases   DatabaseComponent
	Files       MirrorComponent
	Code        MirrorComponent
	Apache      WebServerComponent
}

// Archiver creates and extracts archives.
type Archiver struct {
	deps   Collaborators
	logger loggo.Logger
}

func NewArchiver(ectx domain.ExecutionContext, deps Collaborators) *Archiver {
	return &Archiver{
		deps:   deps,
		logger: ectx.Logger("actions"),
	}
}

// runHook runs a hook and logs its status. The status is then dropped:
// hooks never change the outcome of an operation.
func (a *Archiver) runHook(ctx context.Context, cfg domain.Config, baseDir string, name hooks.Name) {
	status := a.deps.Hooks.Run(ctx, hooks.Dir(cfg, baseDir), name)
	switch status.Outcome {
	case hooks.Failed:
		a.logger.Warningf("%v (ignored)", status.Err)
	case hooks.Succeeded:
		a.logger.Debugf("hook '%s' succeeded", name)
	}
}
