package cli

import (
	"errors"
	"fmt"
)

// Exit codes returned by the vsds binary.
const (
	ExitOK      = 0
	ExitFailure = 1

	// ExitSkipped means the command finished but left components for
	// manual migration.
	ExitSkipped = 4
)

// ExitError carries the process exit code for an error. A nil Err exits
// silently with Code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitError returns an error that will cause the CLI to exit with the given code
func exitError(code int, err error) error {
	return &ExitError{Code: code, Err: err}
}

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}
