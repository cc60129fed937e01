package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"quote-alerts/internal/version"
)

var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print build information",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{"skipConfig": "true"},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", version.String())
	},
}
