package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Mindburn-Labs/fuse/pkg/artifacts"
)

func newImageCmd(ro *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image",
		Short: "Manage guest images in the artifact store",
	}

	var wasmPath string
	push := &cobra.Command{
		Use:   "push --wasm FILE",
		Short: "Store a guest image and print its executor id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := os.ReadFile(wasmPath) //nolint:gosec // operator-supplied path
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}
			store, err := artifacts.NewStore(cmd.Context(), ro.cfg.Artifacts)
			if err != nil {
				return err
			}
			id, err := store.Put(cmd.Context(), data)
			if err != nil {
				return err
			}
			slog.InfoContext(cmd.Context(), "image stored", "image_id", id, "bytes", len(data), "store", string(ro.cfg.Artifacts.Type))
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	push.Flags().StringVar(&wasmPath, "wasm", "", "compiled guest (GOOS=wasip1 GOARCH=wasm)")
	_ = push.MarkFlagRequired("wasm")

	exists := &cobra.Command{
		Use:   "exists IMAGE_ID",
		Short: "Report whether an image is present",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := artifacts.NewStore(cmd.Context(), ro.cfg.Artifacts)
			if err != nil {
				return err
			}
			ok, err := store.Exists(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return &ExitError{Code: 1, Err: fmt.Errorf("image %s not found", args[0])}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "present")
			return nil
		},
	}

	cmd.AddCommand(push, exists)
	return cmd
}
