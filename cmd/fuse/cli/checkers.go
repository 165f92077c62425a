package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Mindburn-Labs/fuse/pkg/checker"
)

func newCheckersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkers",
		Short: "List the checker kinds this build can prove",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, k := range checker.Kinds() {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
}
