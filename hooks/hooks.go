// Package hooks runs the operator scripts called around archive creation
// and restoration. Hooks are advisory: their outcome is reported as a
// Status and never aborts the surrounding operation.
package hooks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"webup/deploy/domain"
)

// Name is the conventional script name of a hook.
type Name string

const (
	PreCreate   Name = "pre-create"
	PostCreate  Name = "post-create"
	PreRestore  Name = "pre-restore"
	PostRestore Name = "post-restore"
)

// Outcome is what happened when a hook was run.
type Outcome int

const (
	Skipped Outcome = iota
	Succeeded
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Skipped:
		return "skipped"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Status reports the run of one hook. Err is set for Failed only and
// carries the domain.HookFailure kind.
type Status struct {
	Hook    Name
	Script  string
	Outcome Outcome
	Err     error
}

// DirKey is the DEFAULT key naming the hooks directory.
const DirKey = "hooks"

// Dir returns the directory holding the hook scripts: DEFAULT.hooks if
// set, otherwise the "hooks" directory next to baseDir.
func Dir(cfg domain.Config, baseDir string) string {
	if dir := cfg.Defaults().String(DirKey, ""); dir != "" {
		if filepath.IsAbs(dir) {
			return dir
		}
		return filepath.Join(baseDir, dir)
	}
	return filepath.Join(baseDir, "hooks")
}

// ExecutionCheck decides whether a hook script should run.
type ExecutionCheck interface {
	CanExecute() bool
}

// ScriptExecutionCheck passes when Script is an executable regular file.
type ScriptExecutionCheck struct {
	Script string
}

func (chk ScriptExecutionCheck) CanExecute() bool {
	info, err := os.Stat(chk.Script)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode().Perm()&0111 != 0
}

// Hook is a script run at one point of the archive lifecycle.
type Hook struct {
	Name           Name
	Script         string
	ExecutionCheck ExecutionCheck
}

// New returns the hook called name in dir.
func New(dir string, name Name) Hook {
	script := filepath.Join(dir, string(name))
	return Hook{
		Name:           name,
		Script:         script,
		ExecutionCheck: ScriptExecutionCheck{Script: script},
	}
}

// Runner runs hooks through a command runner.
type Runner struct {
	runner domain.Runner
	logger loggo.Logger
}

func NewRunner(ectx domain.ExecutionContext) *Runner {
	return &Runner{
		runner: ectx.Runner,
		logger: ectx.Logger("hooks"),
	}
}

// Run executes the hook name from dir if it is present.
func (r *Runner) Run(ctx context.Context, dir string, name Name) Status {
	return r.Execute(ctx, New(dir, name))
}

// Execute runs h. The script's output goes to the process's standard
// streams.
func (r *Runner) Execute(ctx context.Context, h Hook) Status {
	status := Status{Hook: h.Name, Script: h.Script}

	if h.ExecutionCheck != nil && !h.ExecutionCheck.CanExecute() {
		r.logger.Debugf("no '%s' hook at '%s'", h.Name, h.Script)
		status.Outcome = Skipped
		return status
	}

	cmd := domain.NewCommand([]string{h.Script, string(h.Name)})
	cmd.Dir = filepath.Dir(h.Script)
	r.logger.Infof("running hook '%s'", h.Name)

	if err := r.runner.Run(ctx, cmd, domain.Streams{Stdout: os.Stdout, Stderr: os.Stderr}); err != nil {
		status.Outcome = Failed
		status.Err = errors.WithType(errors.Annotatef(err, "hook %q", h.Name), domain.HookFailure)
		return status
	}

	status.Outcome = Succeeded
	return status
}
