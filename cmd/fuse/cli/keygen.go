package cli

import (
	"encoding/hex"

	"github.com/spf13/cobra"

	"github.com/Mindburn-Labs/fuse/pkg/crypto"
)

type keyPair struct {
	Seed      string `json:"seed"`
	PublicKey string `json:"public_key"`
}

func newKeygenCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an Ed25519 key for attestors or evidence signing",
		Long: `Generate an Ed25519 key pair.

The seed is the secret: set it as FUSE_ATTESTOR_SEED on the proving host.
The public key goes into verifier trust profiles as attestor_public_key.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			signer, err := crypto.NewEd25519Signer("keygen")
			if err != nil {
				return err
			}
			return writeJSON(cmd, out, keyPair{
				Seed:      hex.EncodeToString(signer.Seed()),
				PublicKey: signer.PublicKey(),
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}
