package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/jawher/mow.cli"
	"github.com/juju/errors"

	"webup/deploy/actions"
	"webup/deploy/archive"
	"webup/deploy/components"
	"webup/deploy/config"
	"webup/deploy/domain"
	"webup/deploy/hooks"
	"webup/deploy/logging"
)

const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args, os.Stderr, true, wire)
	stop()
	os.Exit(code)
}

// wiring builds the collaborators of the archiver.
type wiring func(ectx domain.ExecutionContext) actions.Collaborators

func wire(ectx domain.ExecutionContext) actions.Collaborators {
	return actions.Collaborators{
		Config:      config.Parser{},
		Initializer: archive.NewInitializer(ectx),
		Resolver:    archive.NewResolver(ectx),
		Hooks:       hooks.NewRunner(ectx),
		Databases:   components.NewDatabase(ectx),
		Files:       components.NewFiles(ectx),
		Code:        components.NewCode(ectx),
		Apache:      components.NewApache(ectx),
	}
}

func run(ctx context.Context, args []string, console io.Writer, syslog bool, build wiring) int {
	app := cli.App("deploy", "Create or extract a deployment archive")
	app.Spec = "[OPTIONS] [ARGS...]"
	app.LongDesc = `Create:  deploy -c [--components=LIST] [--symlink] FILE DIRECTORY
Extract: deploy -x DIRECTORY`
	app.ErrorHandling = flag.ContinueOnError

	var (
		create     = app.BoolOpt("c create", false, "Create an archive of the project configured in FILE into DIRECTORY")
		extract    = app.BoolOpt("x extract", false, "Restore the archive DIRECTORY")
		selected   = app.StringOpt("components", "all", "Comma separated components to archive (databases, files, code) or 'all'")
		positional = app.StringsArg("ARGS", nil, "FILE DIRECTORY to create, DIRECTORY to extract")
	)
	app.BoolOpt("symlink", false, "Link files and code into the archive instead of copying them")
	app.BoolOpt("no-symlink", false, "Copy files and code into the archive (default)")
	app.BoolOpt("v verbose", false, "Show every step (default)")
	app.BoolOpt("q quiet", false, "Only show warnings and errors")

	code := exitOK
	app.Action = func() {
		selection, err := validate(*create, *extract, *positional, *selected)
		if err != nil {
			fmt.Fprintf(console, "deploy: error: %s\n", err)
			app.PrintHelp()
			code = exitUsage
			return
		}

		verbose := lastSwitch(args[1:], []string{"--verbose", "-v"}, []string{"--quiet", "-q"}, true)
		symlinks := domain.SymlinkPolicy(lastSwitch(args[1:], []string{"--symlink"}, []string{"--no-symlink"}, bool(domain.Copy)))

		logCtx, closeLogs := logging.New(logging.Options{
			Verbose: verbose,
			Console: console,
			Syslog:  syslog,
		})
		defer closeLogs()

		ectx := domain.NewExecutionContext(logCtx)
		logger := ectx.Logger("main")
		archiver := actions.NewArchiver(ectx, build(ectx))

		var done string
		if *create {
			done = "archive created"
			err = archiver.Create(ctx, actions.CreateRequest{
				ConfigPath: (*positional)[0],
				DestRoot:   (*positional)[1],
				Selection:  selection,
				Symlinks:   symlinks,
			})
		} else {
			done = "archive restored"
			err = archiver.Extract(ctx, (*positional)[0])
		}

		if err != nil {
			logger.Errorf("%v", err)
			logger.Debugf("%s", errors.ErrorStack(err))
			if errors.Is(err, domain.UsageError) {
				code = exitUsage
			} else {
				code = exitFatal
			}
			return
		}
		if verbose {
			color.New(color.FgGreen).Fprintf(console, " ✓ %s\n", done)
		}
	}

	if err := app.Run(hoistOptions(args)); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	return code
}

// validate checks the command line before anything else runs and parses
// the component selection.
func validate(create, extract bool, args []string, components string) (domain.Selection, error) {
	switch {
	case create && extract:
		return 0, errors.WithType(errors.New("options -c and -x are mutually exclusive"), domain.UsageError)
	case !create && !extract:
		return 0, errors.WithType(errors.New("missing action"), domain.UsageError)
	case create && len(args) < 2:
		return 0, errors.WithType(errors.New("missing config and/or archive destination"), domain.UsageError)
	case extract && len(args) < 1:
		return 0, errors.WithType(errors.New("missing archive path"), domain.UsageError)
	}
	return domain.ParseSelection(components)
}

// valueOptions are the long options whose value may be the next argument.
var valueOptions = map[string]bool{"--components": true}

// hoistOptions moves the options found after positional arguments in front
// of them, so that "deploy -c FILE DIRECTORY --components=code" parses like
// "deploy -c --components=code FILE DIRECTORY". Everything after "--" stays
// positional.
func hoistOptions(args []string) []string {
	if len(args) == 0 {
		return args
	}
	var options, positionals []string
	rest := args[1:]
	for i := 0; i < len(rest); i++ {
		arg := rest[i]
		switch {
		case arg == "--":
			positionals = append(positionals, rest[i:]...)
			i = len(rest)
		case len(arg) > 1 && strings.HasPrefix(arg, "-"):
			options = append(options, arg)
			if valueOptions[arg] && i+1 < len(rest) {
				i++
				options = append(options, rest[i])
			}
		default:
			positionals = append(positionals, arg)
		}
	}
	hoisted := append([]string{args[0]}, options...)
	return append(hoisted, positionals...)
}

// lastSwitch returns the state set by the last of the on or off flags
// found in args, or def when neither is present. Short flags are also
// found inside clusters such as -cv.
func lastSwitch(args []string, on, off []string, def bool) bool {
	state := def
	for _, arg := range args {
		if arg == "--" {
			break
		}
		if value, ok := switchState(arg, on, off); ok {
			state = value
		}
	}
	return state
}

func switchState(arg string, on, off []string) (value, found bool) {
	if strings.HasPrefix(arg, "--") {
		for _, name := range on {
			if arg == name {
				return true, true
			}
		}
		for _, name := range off {
			if arg == name {
				return false, true
			}
		}
		return false, false
	}
	if !strings.HasPrefix(arg, "-") || len(arg) < 2 {
		return false, false
	}
	// the last short flag of a cluster wins
	for _, r := range arg[1:] {
		for _, name := range on {
			if name == "-"+string(r) {
				value, found = true, true
			}
		}
		for _, name := range off {
			if name == "-"+string(r) {
				value, found = false, true
			}
		}
	}
	return value, found
}
