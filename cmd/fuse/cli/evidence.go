package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Mindburn-Labs/fuse/pkg/crypto"
	"github.com/Mindburn-Labs/fuse/pkg/evidence"
)

func newEvidenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evidence",
		Short: "Produce system data for the signature checker",
	}

	var out string
	mock := &cobra.Command{
		Use:   "mock",
		Short: "Write a deterministic valid signature triple",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeJSON(cmd, out, evidence.MockSignatureEvidence())
		},
	}
	mock.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")

	var seedHex, messagePath, signOut string
	sign := &cobra.Command{
		Use:   "sign --seed SEED --message FILE",
		Short: "Sign a file and write the resulting signature triple",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			signer, err := crypto.NewEd25519SignerFromHexSeed(seedHex, "evidence")
			if err != nil {
				return err
			}
			message, err := os.ReadFile(messagePath) //nolint:gosec // operator-supplied path
			if err != nil {
				return fmt.Errorf("read message: %w", err)
			}
			ev := evidence.NewSignatureEvidence(signer.PublicKeyBytes(), signer.SignBytes(message), message)
			return writeJSON(cmd, signOut, ev)
		},
	}
	sign.Flags().StringVar(&seedHex, "seed", "", "hex Ed25519 seed (see `fuse keygen`)")
	sign.Flags().StringVar(&messagePath, "message", "", "file whose bytes are signed")
	sign.Flags().StringVarP(&signOut, "out", "o", "", "output file (default stdout)")
	_ = sign.MarkFlagRequired("seed")
	_ = sign.MarkFlagRequired("message")

	cmd.AddCommand(mock, sign)
	return cmd
}

func writeJSON(cmd *cobra.Command, path string, v any) error {
	w, closeOut, err := openOutput(cmd, path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_ = closeOut()
		return err
	}
	return closeOut()
}
