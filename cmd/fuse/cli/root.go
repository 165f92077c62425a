// Package cli implements the fuse command-line interface using Cobra.
// It proves compliance checks into envelopes and verifies them.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Mindburn-Labs/fuse/pkg/config"
)

// Exit codes returned by verify.
const (
	ExitCompliant    = 0
	ExitNonCompliant = 1
	ExitUnverified   = 2
)

// ExitError carries a process exit code. An empty message means the command
// already reported the outcome.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

func (e *ExitError) ExitCode() int { return e.Code }

type rootOptions struct {
	logLevel string
	logJSON  bool

	cfg *config.Config
}

// New builds the fuse command tree.
func New() *cobra.Command {
	ro := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "fuse",
		Short: "Prove and verify compliance checks",
		Long: `fuse runs a compliance checker over system data and produces a
verifiable envelope binding the spec to the committed result.

In direct mode the checker runs in-process and the proof is a placeholder.
In attested mode it runs inside a sandboxed guest and the result is sealed
into a receipt that verifiers check against a pinned executor and attestor.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ro.cfg = cfg
			if ro.logLevel == "" {
				ro.logLevel = cfg.LogLevel
			}
			slog.SetDefault(newLogger(cmd.ErrOrStderr(), ro.logLevel, ro.logJSON))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&ro.logLevel, "log-level", "", "log level: debug, info, warn, error (env: LOG_LEVEL)")
	cmd.PersistentFlags().BoolVar(&ro.logJSON, "log-json", false, "emit logs as JSON")

	cmd.AddCommand(newProveCmd(ro))
	cmd.AddCommand(newVerifyCmd(ro))
	cmd.AddCommand(newSpecCmd())
	cmd.AddCommand(newEvidenceCmd())
	cmd.AddCommand(newKeygenCmd())
	cmd.AddCommand(newImageCmd(ro))
	cmd.AddCommand(newCheckersCmd())
	return cmd
}

func newLogger(w io.Writer, level string, asJSON bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if asJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// openOutput returns stdout or a created file.
func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, nil, fmt.Errorf("error creating output file %s: %w", path, err)
	}
	return f, f.Close, nil
}
