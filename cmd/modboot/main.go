package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/GoCodeAlone/modboot/cmd/modboot/cmd"
)

func main() {
	rootCmd := cmd.NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		var exitErr *cmd.ExitError
		if errors.As(err, &exitErr) {
			cmd.OsExit(exitErr.Code)
			return
		}
		cmd.OsExit(cmd.ExitUsage)
	}
}
