package domain

import (
	"github.com/juju/clock"
	"github.com/juju/loggo/v2"
)

// ExecutionContext carries what every part of one invocation shares: the
// logging context, the clock and the command runner.
type ExecutionContext struct {
	Logging *loggo.Context
	Clock   clock.Clock
	Runner  Runner
}

// NewExecutionContext returns a context using the wall clock and running
// real processes.
func NewExecutionContext(logging *loggo.Context) ExecutionContext {
	return ExecutionContext{
		Logging: logging,
		Clock:   clock.WallClock,
		Runner:  ExecRunner{},
	}
}

// Logger returns the logger named deploy.<name>.
func (ctx ExecutionContext) Logger(name string) loggo.Logger {
	return ctx.Logging.GetLogger("deploy." + name)
}
