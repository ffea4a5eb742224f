package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the eggcms release version.
const Version = "0.1.0"

const modulePath = "github.com/lowercasename/eggcms"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the eggcms version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "eggcms v%s\nmodule: %s\n", Version, modulePath)
			return nil
		},
	}
}
