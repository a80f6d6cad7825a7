// Command deploy-remote ships an archive to another host and restores it
// there with "deploy -x".
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/Songmu/prompter"
	"github.com/fatih/color"
	"github.com/jawher/mow.cli"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/mattn/go-isatty"

	"webup/deploy/archive"
	"webup/deploy/domain"
	"webup/deploy/logging"
	"webup/deploy/remote"
	"webup/deploy/utils"
)

const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

// envVar set to "prod" makes the confirmation mandatory.
const envVar = "DEPLOY_ENV"

// host is what the workflow needs from the machine it runs on.
type host struct {
	console  io.Writer
	runner   domain.Runner
	getenv   func(string) string
	terminal func() bool
	confirm  func(question string) bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args, host{
		console: os.Stderr,
		runner:  domain.ExecRunner{},
		getenv:  os.Getenv,
		terminal: func() bool {
			return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
		},
		confirm: func(question string) bool {
			return prompter.YN(question, false)
		},
	})
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, h host) int {
	app := cli.App("deploy-remote", "Copy an archive to a host and restore it there")
	app.Spec = "[OPTIONS] ARCHIVE DESTINATION"
	app.ErrorHandling = flag.ContinueOnError

	var (
		strict  = app.BoolOpt("strict", false, "Fail when rsync or ssh fail")
		pack    = app.BoolOpt("pack", false, "Pack an archive directory into a .tar.gz before copying it")
		encrypt = app.BoolOpt("encrypt", false, "Encrypt the packed archive with the key in "+archive.KeyEnvVar)
		yes     = app.BoolOpt("y yes", false, "Do not ask for confirmation before the remote extraction")
		quiet   = app.BoolOpt("q quiet", false, "Only show warnings and errors")

		archivePath = app.StringArg("ARCHIVE", "", "Archive directory or packed archive")
		destination = app.StringArg("DESTINATION", "", "Remote host, optionally followed by ':' and a directory")
	)

	code := exitOK
	app.Action = func() {
		logCtx, closeLogs := logging.New(logging.Options{Verbose: !*quiet, Console: h.console})
		defer closeLogs()

		ectx := domain.NewExecutionContext(logCtx)
		ectx.Runner = h.runner
		logger := ectx.Logger("main")

		w := workflow{
			host:    h,
			logger:  logger,
			client:  remote.NewClient(ectx),
			pack:    *pack,
			encrypt: *encrypt,
			yes:     *yes,
		}
		w.client.Strict = *strict

		if err := w.run(ctx, *archivePath, *destination); err != nil {
			logger.Errorf("%v", err)
			if errors.Is(err, domain.UsageError) {
				code = exitUsage
			} else {
				code = exitFatal
			}
			return
		}
		if !*quiet {
			color.New(color.FgGreen).Fprintf(h.console, " ✓ %s deployed to %s\n", filepath.Base(*archivePath), *destination)
		}
	}

	if err := app.Run(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	return code
}

type workflow struct {
	host
	logger loggo.Logger
	client *remote.Client

	pack    bool
	encrypt bool
	yes     bool
}

func (w workflow) run(ctx context.Context, archivePath, destination string) error {
	info, err := os.Stat(archivePath)
	if err != nil {
		return errors.WithType(errors.Annotatef(err, "unable to open archive"), domain.UsageError)
	}

	shipped := archivePath
	if w.pack || w.encrypt {
		tmp, err := os.MkdirTemp("", "deploy-remote-")
		if err != nil {
			return errors.Trace(err)
		}
		defer os.RemoveAll(tmp)

		if shipped, err = w.prepare(archivePath, info, tmp); err != nil {
			return err
		}
	}

	if err := w.client.CopyToHost(ctx, shipped, destination); err != nil {
		return errors.Trace(err)
	}

	remotePath := remote.RemotePath(shipped, destination)
	if !w.confirmed(remotePath, destination) {
		w.logger.Warningf("remote extraction of '%s' cancelled", remotePath)
		return nil
	}
	return errors.Trace(w.client.TriggerRemoteExtract(ctx, remotePath, destination))
}

// prepare packs and encrypts the archive into tmp as requested, and
// returns the file to ship.
func (w workflow) prepare(archivePath string, info os.FileInfo, tmp string) (string, error) {
	shipped := archivePath
	if info.IsDir() {
		if !w.pack {
			return "", errors.WithType(errors.New("--encrypt needs --pack for an archive directory"), domain.UsageError)
		}
		shipped = filepath.Join(tmp, filepath.Base(filepath.Clean(archivePath))+".tar.gz")
		w.logger.Infof("packing '%s'", archivePath)
		if err := archive.Pack(archivePath, shipped); err != nil {
			return "", errors.Trace(err)
		}
	} else if !archive.IsPacked(archivePath) {
		return "", errors.WithType(errors.Errorf("%s is neither a directory nor a packed archive", archivePath), domain.UsageError)
	}

	if !w.encrypt {
		return shipped, nil
	}
	key := []byte(w.getenv(archive.KeyEnvVar))
	if len(key) == 0 {
		return "", errors.WithType(errors.Errorf("%s is not set", archive.KeyEnvVar), domain.UsageError)
	}
	if shipped == archivePath {
		// keep the encrypted copy out of the operator's directory
		copied := filepath.Join(tmp, filepath.Base(archivePath))
		if err := linkOrCopy(archivePath, copied, info); err != nil {
			return "", errors.Trace(err)
		}
		shipped = copied
	}
	w.logger.Infof("encrypting '%s'", shipped)
	return archive.Encrypt(shipped, key)
}

func linkOrCopy(src, dst string, info os.FileInfo) error {
	if err := os.Link(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return errors.Trace(err)
	}
	defer in.Close()
	return utils.CopyFile(dst, in, info)
}

// confirmed asks before the remote extraction. Without a terminal the
// extraction goes ahead, except in production where it needs -y.
func (w workflow) confirmed(remotePath, destination string) bool {
	if w.yes {
		return true
	}
	prod := strings.EqualFold(w.getenv(envVar), "prod")
	if !w.terminal() {
		if prod {
			w.logger.Warningf("%s=prod and no terminal to confirm: use -y", envVar)
			return false
		}
		return true
	}
	question := fmt.Sprintf("Restore '%s' on %s?", remotePath, destination)
	if prod {
		question = "You're in production. " + question
	}
	return w.confirm(question)
}
