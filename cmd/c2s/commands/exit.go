package commands

import (
	"errors"

	"github.com/l3aro/cuda2sycl/internal/config"
	"github.com/l3aro/cuda2sycl/pkg/rules"
)

// Exit statuses.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitConfig   = 2
	ExitRuleFile = 3
)

// usageError marks a bad command line.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// ExitCode maps an error returned by a command to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var le *rules.LoadError
	if errors.As(err, &le) {
		return ExitRuleFile
	}
	var ue *usageError
	if errors.Is(err, config.ErrInvalid) || errors.As(err, &ue) {
		return ExitConfig
	}
	return ExitFailure
}
