// Package cli implements the repoindexd subcommand tree.
package cli

import (
	"errors"

	"repoindex/internal/packer"
)

// Exit codes (spec §6).
const (
	ExitSuccess         = 0
	ExitInvalidArgument = 1
	ExitIOFailure       = 2
	ExitIndexCorruption = 3
	ExitUnexpected      = 4
)

// ExitCode maps a command error to the process exit code spec §6 defines.
// A nil error maps to success; an error that matches none of packer's
// sentinels maps to unexpected.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	switch {
	case errors.Is(err, packer.ErrInvalidArgument):
		return ExitInvalidArgument
	case errors.Is(err, packer.ErrIOFailure):
		return ExitIOFailure
	case errors.Is(err, packer.ErrIndexCorruption):
		return ExitIndexCorruption
	default:
		return ExitUnexpected
	}
}
