// Package cmd implements the modboot command line.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// Exit codes.
const (
	ExitBootstrapFailed = 1
	ExitUsage           = 2
)

// OsExit is swapped out in tests.
var OsExit = os.Exit

// processStart is the reference point of the startup summary.
var processStart = time.Now()

// Version information
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

func usageError(err error) error {
	return &ExitError{Code: ExitUsage, Err: err}
}

// NewRootCommand creates the root command for the modboot application
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modboot",
		Short: "Modboot - bootstrap an application from a module manifest",
		Long: `Modboot sets up and starts the modules declared in a manifest, in
declaration order, and reports the first module that fails.`,
		Version:       PrintVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewModulesCommand())

	return cmd
}

// PrintVersion returns the version line.
func PrintVersion() string {
	return fmt.Sprintf("Modboot v%s (commit: %s, built on: %s)", Version, Commit, Date)
}
