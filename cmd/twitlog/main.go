// Package main provides the twitlog CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/mesh-intelligence/twitlog/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "twitlog:", err)
		os.Exit(exitCode(err))
	}
	os.Exit(exitSuccess)
}

// exitCode maps an error to the process exit status: mistakes the user can
// fix exit 1, everything else 2.
func exitCode(err error) int {
	for _, userErr := range []error{
		types.ErrUsernameEmpty,
		types.ErrUsernameInvalid,
		types.ErrLogLevelUnknown,
		types.ErrLogFormatUnknown,
		types.ErrCredentialMissing,
		types.ErrInvalidArgument,
		types.ErrNotFound,
		types.ErrAlreadyExists,
	} {
		if errors.Is(err, userErr) {
			return exitUserError
		}
	}
	return exitSysError
}
