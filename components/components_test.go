package components

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/stretchr/testify/require"

	"webup/deploy/domain"
)

// fakeRunner answers commands by program name.
type fakeRunner struct {
	commands []domain.Command
	stdin    map[string]string
	stdout   map[string]string
	fail     map[string]error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		stdin:  map[string]string{},
		stdout: map[string]string{},
		fail:   map[string]error{},
	}
}

// program returns the client tool of cmd, looking through docker exec.
func program(cmd domain.Command) string {
	if cmd.Name != "docker" || len(cmd.Args) == 0 || cmd.Args[0] != "exec" {
		return cmd.Name
	}
	args := cmd.Args[1:]
	for len(args) > 0 && strings.HasPrefix(args[0], "-") {
		if args[0] == "-e" {
			args = args[1:]
		}
		args = args[1:]
	}
	if len(args) < 2 {
		return cmd.Name
	}
	return args[1]
}

func (r *fakeRunner) Run(_ context.Context, cmd domain.Command, streams domain.Streams) error {
	r.commands = append(r.commands, cmd)
	name := program(cmd)
	if cmd.Name == "docker-compose" || (cmd.Name == "docker" && cmd.Args[0] == "inspect") {
		name = cmd.Name + " " + cmd.Args[0]
	}

	if err := r.fail[name]; err != nil {
		return err
	}
	if streams.Stdin != nil {
		data, err := io.ReadAll(streams.Stdin)
		if err != nil {
			return err
		}
		r.stdin[name] += string(data)
	}
	if out, ok := r.stdout[name]; ok && streams.Stdout != nil {
		_, err := io.WriteString(streams.Stdout, out)
		return err
	}
	return nil
}

func (r *fakeRunner) named(name string) []domain.Command {
	var found []domain.Command
	for _, cmd := range r.commands {
		if program(cmd) == name {
			found = append(found, cmd)
		}
	}
	return found
}

func newExecutionContext(runner domain.Runner) domain.ExecutionContext {
	ectx := domain.NewExecutionContext(loggo.NewContext(loggo.DEBUG))
	ectx.Runner = runner
	return ectx
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

var errExit = errors.New("exit status 1")
