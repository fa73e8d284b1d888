package cmd

import (
	"fmt"
	"os"

	pkgerrors "ar-reconciliation-engine/pkg/errors"
)

// handleCommandError prints the error and exits with the category's
// exit code so callers can distinguish file, validation, configuration
// and processing failures.
func handleCommandError(err error) {
	if engineErr, ok := pkgerrors.AsEngineError(err); ok {
		fmt.Fprintf(os.Stderr, "Error: %s\n", engineErr.Error())
		if verbose && len(engineErr.Context) > 0 {
			for key, value := range engineErr.Context {
				fmt.Fprintf(os.Stderr, "  %s: %v\n", key, value)
			}
		}
		os.Exit(engineErr.GetExitCode())
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
