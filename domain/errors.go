package domain

import "github.com/juju/errors"

// Error kinds. Errors are tagged with errors.WithType and tested with errors.Is.
const (
	// UsageError is a bad combination of command line options or arguments.
	UsageError = errors.ConstError("usage error")

	// ConfigError is an unreadable or malformed configuration.
	ConfigError = errors.ConstError("config error")

	// MissingField is a required configuration key that is absent.
	MissingField = errors.ConstError("missing field")

	// ComponentOperationError is a failed dump, restore or archive preparation.
	ComponentOperationError = errors.ConstError("component operation failed")

	// HookFailure is a lifecycle hook that could not run or exited non-zero.
	// It is advisory only.
	HookFailure = errors.ConstError("hook failed")
)
