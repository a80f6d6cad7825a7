package domain

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/juju/errors"
	"github.com/kballard/go-shellquote"
)

// Command is a program invocation.
type Command struct {
	Name string
	Args []string
	// Env is appended to the environment of the current process.
	Env []string
	Dir string
}

func (c Command) String() string {
	return shellquote.Join(append([]string{c.Name}, c.Args...)...)
}

func NewCommand(list []string) Command {
	var name string
	var args []string

	if len(list) > 1 {
		name = list[0]
		args = list[1:]
	} else {
		name = list[0]
		args = []string{}
	}

	return Command{Name: name, Args: args}
}

// NewContainerCommand returns a command running list inside the running
// container containerID. Env entries are passed to the container with -e.
func NewContainerCommand(containerID string, list []string, env []string) Command {
	args := []string{"exec", "-i"}
	for _, e := range env {
		args = append(args, "-e", e)
	}
	args = append(args, containerID)
	args = append(args, list...)

	return Command{Name: "docker", Args: args}
}

// NewComposeCommand returns a docker-compose command.
func NewComposeCommand(list []string) Command {
	return Command{Name: "docker-compose", Args: list}
}

// Streams are the standard streams attached to a command. Nil streams are
// discarded (or empty, for Stdin).
type Streams struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Runner runs commands to completion.
type Runner interface {
	Run(ctx context.Context, cmd Command, streams Streams) error
}

// ExecRunner runs commands as child processes.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, c Command, streams Streams) error {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Stdin = streams.Stdin
	cmd.Stdout = streams.Stdout
	cmd.Stderr = streams.Stderr
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	if err := cmd.Run(); err != nil {
		return errors.Annotatef(err, "running %q", c.Name)
	}
	return nil
}

// Output runs cmd and returns its trimmed standard output.
func Output(ctx context.Context, runner Runner, cmd Command) (string, error) {
	var stdout, stderr bytes.Buffer
	if err := runner.Run(ctx, cmd, Streams{Stdout: &stdout, Stderr: &stderr}); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", errors.Annotate(err, msg)
		}
		return "", err
	}
	return strings.TrimSpace(stdout.String()), nil
}

// WriteResultToFile runs cmd with its standard output written to file.
func WriteResultToFile(ctx context.Context, runner Runner, cmd Command, file io.Writer, stderr io.Writer) error {
	return runner.Run(ctx, cmd, Streams{Stdout: file, Stderr: stderr})
}
