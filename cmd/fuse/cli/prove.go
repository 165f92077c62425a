package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Mindburn-Labs/fuse/pkg/artifacts"
	"github.com/Mindburn-Labs/fuse/pkg/checker"
	"github.com/Mindburn-Labs/fuse/pkg/config"
	"github.com/Mindburn-Labs/fuse/pkg/evidence"
	"github.com/Mindburn-Labs/fuse/pkg/observability"
	"github.com/Mindburn-Labs/fuse/pkg/prover"
	"github.com/Mindburn-Labs/fuse/pkg/runtime/sandbox"
	"github.com/Mindburn-Labs/fuse/pkg/spec"
)

type proveOptions struct {
	specPath string
	dataPath string
	checker  string
	mode     string
	out      string
}

func newProveCmd(ro *rootOptions) *cobra.Command {
	o := &proveOptions{}
	cmd := &cobra.Command{
		Use:   "prove --spec SPEC --data DATA --checker KIND",
		Short: "Run a checker and write a verifiable envelope",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProve(cmd, ro.cfg, o)
		},
	}
	cmd.Flags().StringVar(&o.specPath, "spec", "", "compliance spec (.json or .yaml)")
	cmd.Flags().StringVar(&o.dataPath, "data", "", "system data JSON")
	cmd.Flags().StringVar(&o.checker, "checker", "", "checker kind (see `fuse checkers`)")
	cmd.Flags().StringVar(&o.mode, "mode", "", "direct or attested (env: FUSE_PROVER_MODE)")
	cmd.Flags().StringVarP(&o.out, "out", "o", "", "write the envelope here instead of stdout")
	_ = cmd.MarkFlagRequired("spec")
	_ = cmd.MarkFlagRequired("data")
	_ = cmd.MarkFlagRequired("checker")
	return cmd
}

func runProve(cmd *cobra.Command, cfg *config.Config, o *proveOptions) error {
	ctx := cmd.Context()

	s, err := spec.LoadFile(o.specPath)
	if err != nil {
		return err
	}
	data, err := evidence.LoadSystemData(o.dataPath)
	if err != nil {
		return err
	}
	kind, err := checker.ParseKind(o.checker)
	if err != nil {
		return err
	}

	pc, err := cfg.ProverConfig()
	if err != nil {
		return err
	}
	if o.mode != "" {
		if pc.Mode, err = prover.ParseMode(o.mode); err != nil {
			return err
		}
	}

	obs, err := observability.New(ctx, cfg.ObservabilityConfig())
	if err != nil {
		return err
	}
	defer func() { _ = obs.Shutdown(context.WithoutCancel(ctx)) }()

	var backend prover.Backend
	if pc.Mode == prover.ModeAttested {
		rb, closeFn, err := newReceiptBackend(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeFn()
		backend = rb
		slog.InfoContext(ctx, "attested mode", "image_id", pc.ImageID, "attestor_public_key", fmt.Sprintf("%x", rb.PublicKey()))
	}

	host, err := prover.NewHost(pc, backend, prover.WithObservability(obs))
	if err != nil {
		return err
	}
	env, err := host.Envelope(ctx, kind, s, data)
	if err != nil {
		return &ExitError{Code: ExitUnverified, Err: err}
	}

	w, closeOut, err := openOutput(cmd, o.out)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		_ = closeOut()
		return err
	}
	return closeOut()
}

func newReceiptBackend(ctx context.Context, cfg *config.Config) (*prover.ReceiptBackend, func(), error) {
	attestor, ephemeral, err := cfg.Attestor()
	if err != nil {
		return nil, nil, err
	}
	if ephemeral {
		slog.WarnContext(ctx, "FUSE_ATTESTOR_SEED not set; receipts are signed with an ephemeral key")
	}

	var sb sandbox.Sandbox
	switch cfg.Sandbox {
	case config.SandboxWasm:
		store, err := artifacts.NewStore(ctx, cfg.Artifacts)
		if err != nil {
			return nil, nil, err
		}
		ws, err := sandbox.NewWasmSandbox(ctx, store, cfg.SandboxConfig())
		if err != nil {
			return nil, nil, err
		}
		sb = ws
	default:
		sb = sandbox.NewInProcessSandbox(cfg.SandboxConfig())
	}
	closeFn := func() { _ = sb.Close(context.WithoutCancel(ctx)) }
	return prover.NewReceiptBackend(sb, attestor), closeFn, nil
}
