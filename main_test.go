package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webup/deploy/actions"
	"webup/deploy/domain"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		create     bool
		extract    bool
		args       []string
		components string
		want       domain.Selection
		err        string
	}{
		{name: "both actions", create: true, extract: true, args: []string{"a", "b"}, components: "all", err: "options -c and -x are mutually exclusive"},
		{name: "no action", args: []string{"a"}, components: "all", err: "missing action"},
		{name: "create without destination", create: true, args: []string{"deploy.cfg"}, components: "all", err: "missing config and/or archive destination"},
		{name: "extract without archive", extract: true, components: "all", err: "missing archive path"},
		{name: "unknown component", create: true, args: []string{"a", "b"}, components: "files,logs", err: `unknown component "logs"`},
		{name: "create all", create: true, args: []string{"a", "b"}, components: "all", want: domain.AllSelection()},
		{name: "create some", create: true, args: []string{"a", "b", "extra"}, components: "files,code", want: domain.NewSelection(domain.Files, domain.Code)},
		{name: "extract", extract: true, args: []string{"a"}, components: "all", want: domain.AllSelection()},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := validate(test.create, test.extract, test.args, test.components)
			if test.err != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), test.err)
				assert.True(t, errors.Is(err, domain.UsageError))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.want, got)
		})
	}
}

func TestLastSwitch(t *testing.T) {
	on, off := []string{"--verbose", "-v"}, []string{"--quiet", "-q"}
	tests := []struct {
		args []string
		want bool
	}{
		{nil, true},
		{[]string{"-q"}, false},
		{[]string{"-q", "-v"}, true},
		{[]string{"--verbose", "--quiet"}, false},
		{[]string{"-cq", "deploy.cfg"}, false},
		{[]string{"-qv"}, true},
		{[]string{"--", "-q"}, true},
		{[]string{"--components=all", "quiet"}, true},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, lastSwitch(test.args, on, off, true), "%v", test.args)
	}

	symlink := func(args ...string) bool {
		return lastSwitch(args, []string{"--symlink"}, []string{"--no-symlink"}, false)
	}
	assert.False(t, symlink())
	assert.True(t, symlink("--symlink"))
	assert.False(t, symlink("--symlink", "--no-symlink"))
	assert.True(t, symlink("--no-symlink", "--symlink"))
}

func TestRunUsageErrorsCallNothing(t *testing.T) {
	tests := [][]string{
		{"deploy"},
		{"deploy", "-c", "-x", "deploy.cfg", "/tmp/out"},
		{"deploy", "-c", "deploy.cfg"},
		{"deploy", "-x"},
		{"deploy", "-c", "--components=logs", "deploy.cfg", "/tmp/out"},
	}
	for _, args := range tests {
		var console bytes.Buffer
		built := false
		code := run(context.Background(), args, &console, false, func(ectx domain.ExecutionContext) actions.Collaborators {
			built = true
			return wire(ectx)
		})
		assert.Equal(t, exitUsage, code, "%v", args)
		assert.False(t, built, "%v", args)
		assert.Contains(t, console.String(), "deploy: error:", "%v", args)
	}
}

func TestRunCreate(t *testing.T) {
	root := t.TempDir()
	uploads := filepath.Join(root, "uploads")
	require.NoError(t, os.MkdirAll(uploads, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(uploads, "logo.png"), []byte("png"), 0644))
	checkout := filepath.Join(root, "www")
	require.NoError(t, os.MkdirAll(checkout, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(checkout, "index.php"), []byte("<?php"), 0644))

	cfg := filepath.Join(root, "deploy.cfg")
	require.NoError(t, os.WriteFile(cfg, []byte(`[DEFAULT]
project = demo

[databases]
type = sqlite

[files]
paths = `+uploads+`

[code]
dir = `+checkout+`
`), 0644))

	out := filepath.Join(root, "out")
	var console bytes.Buffer
	code := run(context.Background(), []string{"deploy", "-c", "--components=files,code", "--symlink", "--no-symlink", cfg, out}, &console, false, wire)
	require.Equal(t, exitOK, code, console.String())

	info, err := os.Lstat(filepath.Join(out, "demo", "files", "uploads"))
	require.NoError(t, err)
	assert.True(t, info.IsDir(), "--no-symlink given last")
	assert.FileExists(t, filepath.Join(out, "demo", "code", "index.php"))
	assert.NoDirExists(t, filepath.Join(out, "demo", "databases"))
	assert.Contains(t, console.String(), "done creating archive")
}

func TestRunQuietHidesProgress(t *testing.T) {
	root := t.TempDir()
	checkout := filepath.Join(root, "www")
	require.NoError(t, os.MkdirAll(checkout, 0755))
	cfg := filepath.Join(root, "deploy.cfg")
	require.NoError(t, os.WriteFile(cfg, []byte("[DEFAULT]\nproject = demo\n[code]\ndir = "+checkout+"\n"), 0644))

	var console bytes.Buffer
	code := run(context.Background(), []string{"deploy", "-cq", "--components=code", cfg, filepath.Join(root, "out")}, &console, false, wire)
	require.Equal(t, exitOK, code)
	assert.Empty(t, console.String())
}

func TestRunFatalError(t *testing.T) {
	var console bytes.Buffer
	code := run(context.Background(), []string{"deploy", "-x", filepath.Join(t.TempDir(), "missing")}, &console, false, wire)
	assert.Equal(t, exitFatal, code)
	assert.Contains(t, console.String(), "unable to open archive")
}

func TestHoistOptions(t *testing.T) {
	tests := []struct {
		args []string
		want []string
	}{
		{[]string{"deploy"}, []string{"deploy"}},
		{
			[]string{"deploy", "-c", "deploy.cfg", "/tmp/out", "--components=code"},
			[]string{"deploy", "-c", "--components=code", "deploy.cfg", "/tmp/out"},
		},
		{
			[]string{"deploy", "deploy.cfg", "-c", "/tmp/out", "--components", "files", "-q"},
			[]string{"deploy", "-c", "--components", "files", "-q", "deploy.cfg", "/tmp/out"},
		},
		{
			[]string{"deploy", "-x", "--", "-archive"},
			[]string{"deploy", "-x", "--", "-archive"},
		},
		{
			[]string{"deploy", "-x", "-"},
			[]string{"deploy", "-x", "-"},
		},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, hoistOptions(test.args), "%v", test.args)
	}
}

func TestRunOptionsAfterArguments(t *testing.T) {
	root := t.TempDir()
	checkout := filepath.Join(root, "www")
	require.NoError(t, os.MkdirAll(checkout, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(checkout, "index.php"), []byte("<?php"), 0644))
	cfg := filepath.Join(root, "deploy.cfg")
	require.NoError(t, os.WriteFile(cfg, []byte("[DEFAULT]\nproject = demo\n[code]\ndir = "+checkout+"\n"), 0644))

	out := filepath.Join(root, "out")
	var console bytes.Buffer
	code := run(context.Background(), []string{"deploy", "-c", cfg, out, "--components=code", "-q"}, &console, false, wire)
	require.Equal(t, exitOK, code, console.String())
	assert.FileExists(t, filepath.Join(out, "demo", "code", "index.php"))
	assert.Empty(t, console.String(), "-q given last")
}
