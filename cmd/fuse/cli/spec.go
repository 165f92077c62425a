package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Mindburn-Labs/fuse/pkg/spec"
)

func newSpecCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spec",
		Short: "Inspect compliance specs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "hash FILE",
		Short: "Print the canonical hash of a spec",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := spec.LoadFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.Hash())
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "validate FILE",
		Short: "Check a spec against the schema and invariants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := spec.LoadFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "valid (expires %s)\n", spec.FormatExpiry(s.Expiry))
			return nil
		},
	})
	return cmd
}
