package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harrison/filebatch/internal/ops"
)

// NewOpsCommand creates the 'filebatch ops' command
func NewOpsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ops",
		Short: "List the built-in operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDEFAULT FILES\tDESCRIPTION")
			for _, op := range ops.All() {
				include := "all"
				if defaults := op.DefaultInclude(); len(defaults) > 0 {
					include = strings.Join(defaults, ",")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", op.Name(), include, op.Description())
			}
			return w.Flush()
		},
	}
}
