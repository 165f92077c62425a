package prover

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/Mindburn-Labs/fuse/pkg/checker"
	"github.com/Mindburn-Labs/fuse/pkg/envelope"
	"github.com/Mindburn-Labs/fuse/pkg/guest"
	"github.com/Mindburn-Labs/fuse/pkg/observability"
	"github.com/Mindburn-Labs/fuse/pkg/proof"
	"github.com/Mindburn-Labs/fuse/pkg/spec"
)

// Host drives checks across the execution boundary. Its mode is fixed at
// construction; an attested host never falls back to direct execution.
type Host struct {
	config  Config
	backend Backend
	limiter *rate.Limiter
	obs     *observability.Provider
	logger  *slog.Logger
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithObservability records prove operations on p.
func WithObservability(p *observability.Provider) HostOption {
	return func(h *Host) { h.obs = p }
}

// WithLogger overrides the default component logger.
func WithLogger(l *slog.Logger) HostOption {
	return func(h *Host) { h.logger = l }
}

// NewHost creates a host. backend may be nil in direct mode.
func NewHost(cfg Config, backend Backend, opts ...HostOption) (*Host, error) {
	mode, err := ParseMode(string(cfg.Mode))
	if err != nil {
		return nil, err
	}
	cfg.Mode = mode
	if cfg.ImageID == "" {
		cfg.ImageID = guest.NativeImageID
	}

	h := &Host{
		config:  cfg,
		backend: backend,
		obs:     observability.Disabled(),
		logger:  slog.Default().With("component", "prover"),
	}
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		h.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Mode reports the configured execution mode.
func (h *Host) Mode() Mode { return h.config.Mode }

// ImageID reports the executor identity attested proofs are bound to.
func (h *Host) ImageID() string { return h.config.ImageID }

// Prove runs the check and returns a proof bound to s.Hash().
//
// Direct mode returns a placeholder proof. Attested mode returns the
// backend's proof, or a *BackendError; backend failures are never reported
// as a Fail result.
func (h *Host) Prove(ctx context.Context, kind checker.Kind, s *spec.ComplianceSpec, data checker.SystemData) (p *proof.ComplianceProof, err error) {
	requestID := uuid.NewString()
	logger := h.logger.With("request_id", requestID, "checker", string(kind), "mode", string(h.config.Mode))

	ctx, finish := h.obs.TrackOperation(ctx, "fuse.prove",
		observability.ProveOperation(string(kind), string(h.config.Mode), h.config.ImageID, requestID)...)
	defer func() { finish(err) }()

	if s == nil {
		return nil, &BackendError{Code: CodeMalformedInput, Message: "nil spec"}
	}
	if err := s.Validate(); err != nil {
		return nil, &BackendError{Code: CodeMalformedInput, Message: "invalid spec", Err: err}
	}
	if kind, err = checker.ParseKind(string(kind)); err != nil {
		return nil, &BackendError{Code: CodeMalformedInput, Err: err}
	}

	switch h.config.Mode {
	case ModeAttested:
		p, err = h.proveAttested(ctx, logger, kind, s, data)
	default:
		p, err = proveDirect(kind, s, data)
		if err == nil {
			logger.WarnContext(ctx, "direct execution: proof is a placeholder", "result", string(p.Result()))
		}
	}
	if err != nil {
		logger.ErrorContext(ctx, "prove failed", "error", err, "code", observability.ErrorCode(err))
		return nil, err
	}
	logger.InfoContext(ctx, "proof produced",
		"spec_hash", p.SpecHash(),
		"result", string(p.Result()),
		"assurance", string(p.Assurance()),
	)
	return p, nil
}

// proveDirect runs the guest program in-process on the same encoded input an
// attested backend would receive, so both modes see identical system data.
func proveDirect(kind checker.Kind, s *spec.ComplianceSpec, data checker.SystemData) (*proof.ComplianceProof, error) {
	input, err := guest.EncodeInput(kind, s, data)
	if err != nil {
		return nil, &BackendError{Code: CodeMalformedInput, Err: err}
	}
	j, err := proof.DecodeJournal(guest.Run(input))
	if err != nil {
		return nil, &BackendError{Code: CodeJournalMismatch, Message: "undecodable journal", Err: err}
	}
	if want := s.Hash(); j.SpecHash != want {
		return nil, &BackendError{Code: CodeJournalMismatch, Message: "journal commits spec " + j.SpecHash + ", requested " + want}
	}
	return proof.Placeholder(j.SpecHash, j.Result), nil
}

func (h *Host) proveAttested(ctx context.Context, logger *slog.Logger, kind checker.Kind, s *spec.ComplianceSpec, data checker.SystemData) (*proof.ComplianceProof, error) {
	if h.backend == nil {
		return nil, &BackendError{Code: CodeExecutorNotFound, Message: "attested mode has no proving backend"}
	}
	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return nil, &BackendError{Code: CodeTimeout, Message: "rate limit wait abandoned", Err: err}
		}
	}

	input, err := guest.EncodeInput(kind, s, data)
	if err != nil {
		return nil, &BackendError{Code: CodeMalformedInput, Err: err}
	}

	callCtx := ctx
	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	logger.DebugContext(ctx, "calling proving backend", "image_id", h.config.ImageID, "input_bytes", len(input))
	receipt, err := h.backend.GenerateProof(callCtx, ProveRequest{ImageID: h.config.ImageID, Input: input})
	if err != nil {
		var be *BackendError
		if errors.As(err, &be) {
			return nil, err
		}
		if callCtx.Err() != nil {
			return nil, &BackendError{Code: CodeTimeout, Err: err}
		}
		return nil, &BackendError{Code: CodeComputeFailed, Err: err}
	}
	if receipt == nil {
		return nil, &BackendError{Code: CodeComputeFailed, Message: "backend returned no receipt"}
	}

	// Only the committed journal is trusted, never host-side state.
	j, err := proof.DecodeJournal(receipt.Journal)
	if err != nil {
		return nil, &BackendError{Code: CodeJournalMismatch, Message: "undecodable journal", Err: err}
	}
	if want := s.Hash(); j.SpecHash != want {
		return nil, &BackendError{Code: CodeJournalMismatch, Message: "journal commits spec " + j.SpecHash + ", requested " + want}
	}
	if len(receipt.ProofBytes) == 0 {
		return nil, &BackendError{Code: CodeVerifyMismatch, Message: "backend returned no attestation material"}
	}
	if err := h.backend.VerifyProof(callCtx, h.config.ImageID, receipt.ProofBytes, receipt.Journal); err != nil {
		return nil, &BackendError{Code: CodeVerifyMismatch, Message: "backend rejected its own receipt", Err: err}
	}

	return proof.New(j.SpecHash, j.Result, receipt.ProofBytes), nil
}

// Envelope proves the check and wraps the result with its spec.
func (h *Host) Envelope(ctx context.Context, kind checker.Kind, s *spec.ComplianceSpec, data checker.SystemData) (*envelope.VerifiableComplianceEnvelope, error) {
	p, err := h.Prove(ctx, kind, s, data)
	if err != nil {
		return nil, err
	}
	return envelope.New(s, p), nil
}

// TrustAnchor returns the anchor a verifier should pin for proofs from this
// host, or nil when the backend cannot verify.
func (h *Host) TrustAnchor() *proof.TrustAnchor {
	if h.backend == nil {
		return nil
	}
	return &proof.TrustAnchor{ImageID: h.config.ImageID, Verifier: h.backend}
}
