package envelope

import (
	"context"
	"fmt"
	"time"

	"github.com/Mindburn-Labs/fuse/pkg/checker"
	"github.com/Mindburn-Labs/fuse/pkg/proof"
)

// Verifier checks envelopes. It holds no mutable state after configuration
// and may be shared across goroutines.
type Verifier struct {
	clock           func() time.Time
	anchor          *proof.TrustAnchor
	requireAttested bool
	clockSkew       time.Duration
}

// NewVerifier creates a verifier that uses the system clock, has no trust
// anchor and accepts placeholder proofs.
func NewVerifier() *Verifier {
	return &Verifier{clock: time.Now}
}

// WithClock overrides the clock for deterministic testing.
func (v *Verifier) WithClock(clock func() time.Time) *Verifier {
	v.clock = clock
	return v
}

// WithTrustAnchor pins the executor identity and backend used for attested proofs.
func (v *Verifier) WithTrustAnchor(anchor *proof.TrustAnchor) *Verifier {
	v.anchor = anchor
	return v
}

// WithClockSkew tolerates verifier clocks running ahead of the claimant's.
func (v *Verifier) WithClockSkew(skew time.Duration) *Verifier {
	v.clockSkew = skew
	return v
}

// RequireAttested makes placeholder proofs a verification error.
func (v *Verifier) RequireAttested(required bool) *Verifier {
	v.requireAttested = required
	return v
}

// Verify checks, in order: that the envelope is well formed, that the proof
// is bound to the spec, that the spec has not expired, that the proof
// verifies, and finally the placeholder policy.
//
// Well formed includes spec.Validate: a spec with an empty claim,
// system_hash or version, or a zero expiry, is ErrMalformed even when its
// hash matches the proof. The host refuses to prove such specs, so no
// legitimate envelope carries one.
func (v *Verifier) Verify(ctx context.Context, env *VerifiableComplianceEnvelope) error {
	if env == nil || env.spec == nil || env.proof == nil {
		return &Error{Code: CodeMalformed, Message: "envelope requires spec and proof"}
	}
	if err := env.spec.Validate(); err != nil {
		return &Error{Code: CodeMalformed, Message: "invalid spec", Err: err}
	}
	expected := env.spec.Hash()
	if expected == "" {
		return &Error{Code: CodeMalformed, Message: "spec hash unavailable"}
	}

	if env.proof.SpecHash() != expected {
		return &Error{Code: CodeBindingMismatch, Message: fmt.Sprintf("proof is bound to %q, spec hashes to %q", env.proof.SpecHash(), expected)}
	}

	now := v.clock()
	if env.spec.IsExpired(now.Add(-v.clockSkew)) {
		return &Error{Code: CodeSpecExpired, Message: fmt.Sprintf("spec expired at %s", env.spec.Expiry.UTC().Format(time.RFC3339))}
	}

	if err := env.proof.Verify(ctx, expected, v.anchor); err != nil {
		return &Error{Code: CodeProofInvalid, Err: err}
	}

	if v.requireAttested && env.proof.IsPlaceholder() {
		return &Error{Code: CodePlaceholderRejected, Message: "placeholder proof carries no attestation"}
	}
	return nil
}

// IsCompliant verifies env and reports whether the committed result is Pass.
// A verification failure is returned as an error, never as false.
func (v *Verifier) IsCompliant(ctx context.Context, env *VerifiableComplianceEnvelope) (bool, error) {
	if err := v.Verify(ctx, env); err != nil {
		return false, err
	}
	return env.proof.Result() == checker.Pass, nil
}

// Evaluate verifies env and reports the result together with the assurance
// level behind it.
func (v *Verifier) Evaluate(ctx context.Context, env *VerifiableComplianceEnvelope) (Outcome, error) {
	if err := v.Verify(ctx, env); err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Compliant: env.proof.Result() == checker.Pass,
		Result:    env.proof.Result(),
		Assurance: env.proof.Assurance(),
		SpecHash:  env.proof.SpecHash(),
	}, nil
}
