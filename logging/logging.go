// Package logging builds the logging context of one deploy invocation.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/juju/loggo/v2"
)

// Options selects the sinks of a logging context.
type Options struct {
	// Verbose lowers the console threshold from WARNING to DEBUG.
	Verbose bool
	// Console receives the human readable output. Defaults to os.Stderr.
	Console io.Writer
	// Syslog enables the syslog sink.
	Syslog bool
	// Tag is the syslog tag. Defaults to "deploy".
	Tag string
}

// New returns a logging context with a console writer and, if requested
// and reachable, a syslog writer. The returned function releases the sinks.
func New(opts Options) (*loggo.Context, func()) {
	ctx := loggo.NewContext(loggo.DEBUG)

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	threshold := loggo.WARNING
	if opts.Verbose {
		threshold = loggo.DEBUG
	}
	_ = ctx.AddWriter("console", loggo.NewMinimumLevelWriter(loggo.NewSimpleWriter(console, ConsoleFormatter), threshold))

	closeFn := func() {}
	if opts.Syslog {
		tag := opts.Tag
		if tag == "" {
			tag = "deploy"
		}
		w, err := newSyslogWriter(tag)
		if err != nil {
			ctx.GetLogger("deploy.main").Warningf("syslog unavailable: %v", err)
		} else {
			_ = ctx.AddWriter("syslog", w)
			closeFn = func() { _ = w.Close() }
		}
	}

	return ctx, closeFn
}

var levelColors = map[loggo.Level]*color.Color{
	loggo.WARNING:  color.New(color.FgYellow),
	loggo.ERROR:    color.New(color.FgRed),
	loggo.CRITICAL: color.New(color.FgRed, color.Bold),
}

// ConsoleFormatter renders "<module>: <message>", coloured by level.
func ConsoleFormatter(entry loggo.Entry) string {
	line := fmt.Sprintf("%s: %s", entry.Module, entry.Message)
	if c, ok := levelColors[entry.Level]; ok {
		return c.Sprint(line)
	}
	return line
}

// PlainFormatter renders "<module>: <message>".
func PlainFormatter(entry loggo.Entry) string {
	return fmt.Sprintf("%s: %s", entry.Module, entry.Message)
}
