package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewModulesCommand creates the command listing the built-in module
// locations.
func NewModulesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "modules",
		Short: "List the module locations that can be declared in a manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, location := range DefaultCatalog().Locations() {
				fmt.Fprintln(cmd.OutOrStdout(), "./"+location)
			}
			return nil
		},
	}
}
