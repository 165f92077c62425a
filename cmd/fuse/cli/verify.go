package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Mindburn-Labs/fuse/pkg/config"
	"github.com/Mindburn-Labs/fuse/pkg/envelope"
	"github.com/Mindburn-Labs/fuse/pkg/observability"
	"github.com/Mindburn-Labs/fuse/pkg/proof"
)

type verifyOptions struct {
	envelopePath    string
	trustPath       string
	requireAttested bool
	json            bool
}

type verifyReport struct {
	Compliant bool   `json:"compliant"`
	Result    string `json:"result,omitempty"`
	Assurance string `json:"assurance,omitempty"`
	SpecHash  string `json:"spec_hash,omitempty"`
	Error     string `json:"error,omitempty"`
	Code      string `json:"code,omitempty"`
	ExitCode  int    `json:"exit_code"`
}

func newVerifyCmd(ro *rootOptions) *cobra.Command {
	o := &verifyOptions{}
	cmd := &cobra.Command{
		Use:   "verify --envelope FILE",
		Short: "Verify an envelope",
		Long: `Verify an envelope and report whether it is compliant.

Exit status is 0 when the envelope verifies and its result is Pass, 1 when it
verifies and its result is Fail, and 2 when it cannot be verified.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runVerify(cmd, ro.cfg, o)
		},
	}
	cmd.Flags().StringVar(&o.envelopePath, "envelope", "", "envelope JSON")
	cmd.Flags().StringVar(&o.trustPath, "trust", "", "YAML trust profile pinning image and attestor")
	cmd.Flags().BoolVar(&o.requireAttested, "require-attested", false, "reject placeholder proofs")
	cmd.Flags().BoolVar(&o.json, "json", false, "print a JSON report")
	_ = cmd.MarkFlagRequired("envelope")
	return cmd
}

func runVerify(cmd *cobra.Command, cfg *config.Config, o *verifyOptions) error {
	ctx := cmd.Context()

	raw, err := os.ReadFile(o.envelopePath)
	if err != nil {
		return &ExitError{Code: ExitUnverified, Err: err}
	}

	verifier := envelope.NewVerifier()
	if o.trustPath != "" {
		profile, err := config.LoadTrustProfile(o.trustPath)
		if err != nil {
			return &ExitError{Code: ExitUnverified, Err: err}
		}
		if verifier, err = profile.Verifier(); err != nil {
			return &ExitError{Code: ExitUnverified, Err: err}
		}
	}
	if o.requireAttested {
		verifier.RequireAttested(true)
	}

	obs, err := observability.New(ctx, cfg.ObservabilityConfig())
	if err != nil {
		return err
	}
	defer func() { _ = obs.Shutdown(ctx) }()

	ctx, finish := obs.TrackOperation(ctx, "fuse.verify")
	report := verifyReport{}
	env, err := envelope.Parse(raw)
	if err == nil {
		var out envelope.Outcome
		if out, err = verifier.Evaluate(ctx, env); err == nil {
			report = verifyReport{
				Compliant: out.Compliant,
				Result:    string(out.Result),
				Assurance: string(out.Assurance),
				SpecHash:  out.SpecHash,
			}
		}
	}
	finish(err)

	switch {
	case err != nil:
		report.Error = err.Error()
		report.Code = observability.ErrorCode(err)
		report.ExitCode = ExitUnverified
	case report.Compliant:
		report.ExitCode = ExitCompliant
	default:
		report.ExitCode = ExitNonCompliant
	}

	w := cmd.OutOrStdout()
	if o.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		switch report.ExitCode {
		case ExitUnverified:
			fmt.Fprintf(w, "UNVERIFIED: %s\n", report.Error)
		case ExitCompliant:
			fmt.Fprintf(w, "COMPLIANT (%s, %s proof)\n", report.Result, report.Assurance)
		default:
			fmt.Fprintf(w, "NON-COMPLIANT (%s, %s proof)\n", report.Result, report.Assurance)
		}
		if report.Assurance == string(proof.AssurancePlaceholder) {
			fmt.Fprintln(w, "warning: placeholder proof carries no cryptographic guarantee")
		}
	}

	if report.ExitCode != ExitCompliant {
		return &ExitError{Code: report.ExitCode}
	}
	return nil
}
