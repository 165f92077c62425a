package envelope

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/fuse/pkg/checker"
	"github.com/Mindburn-Labs/fuse/pkg/proof"
	"github.com/Mindburn-Labs/fuse/pkg/spec"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type stubBackend struct{}

// VerifyProof accepts proof bytes equal to "sealed:" + imageID + journal.
func (stubBackend) VerifyProof(_ context.Context, imageID string, proofBytes, journal []byte) error {
	if !bytes.Equal(proofBytes, append([]byte("sealed:"+imageID), journal...)) {
		return errors.New("seal mismatch")
	}
	return nil
}

var anchor = &proof.TrustAnchor{ImageID: "sha256:guest", Verifier: stubBackend{}}

func testSpec(expiry time.Time) *spec.ComplianceSpec {
	return spec.New("Model provenance is intact", "model-7", map[string]string{}, "EU", "1.0", expiry)
}

func sealed(t *testing.T, s *spec.ComplianceSpec, result checker.Result) *proof.ComplianceProof {
	t.Helper()
	journal, err := proof.Journal{SpecHash: s.Hash(), Result: result}.Encode()
	require.NoError(t, err)
	return proof.New(s.Hash(), result, append([]byte("sealed:"+anchor.ImageID), journal...))
}

func TestEndToEnd_PlaceholderPass(t *testing.T) {
	s := testSpec(time.Now().AddDate(1, 0, 0))
	env := New(s, proof.Placeholder(s.Hash(), checker.Pass))

	ok, err := env.IsCompliant(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEndToEnd_ExpiredSpec(t *testing.T) {
	s := testSpec(time.Now().AddDate(-1, 0, 0))

	for name, p := range map[string]*proof.ComplianceProof{
		"placeholder":  proof.Placeholder(s.Hash(), checker.Pass),
		"garbage seal": proof.New(s.Hash(), checker.Pass, []byte("nonsense")),
	} {
		t.Run(name, func(t *testing.T) {
			err := New(s, p).Verify(context.Background())
			require.ErrorIs(t, err, ErrSpecExpired)

			_, err = New(s, p).IsCompliant(context.Background())
			require.ErrorIs(t, err, ErrSpecExpired)
		})
	}
}

func TestVerify_BindingMismatch(t *testing.T) {
	s := testSpec(fixedNow.Add(time.Hour))
	other := testSpec(fixedNow.Add(2 * time.Hour))

	// The proof is individually valid for other, but not for s.
	p := sealed(t, other, checker.Pass)
	require.NoError(t, NewVerifier().WithClock(clock).WithTrustAnchor(anchor).Verify(context.Background(), New(other, p)))

	err := NewVerifier().WithClock(clock).WithTrustAnchor(anchor).Verify(context.Background(), New(s, p))
	require.ErrorIs(t, err, ErrBindingMismatch)

	err = NewVerifier().WithClock(clock).Verify(context.Background(), New(s, proof.Placeholder(other.Hash(), checker.Pass)))
	require.ErrorIs(t, err, ErrBindingMismatch)
}

func TestVerify_Malformed(t *testing.T) {
	v := NewVerifier().WithClock(clock)
	s := testSpec(fixedNow.Add(time.Hour))

	require.ErrorIs(t, v.Verify(context.Background(), nil), ErrMalformed)
	require.ErrorIs(t, v.Verify(context.Background(), New(s, nil)), ErrMalformed)
	require.ErrorIs(t, v.Verify(context.Background(), New(nil, proof.Placeholder("h", checker.Pass))), ErrMalformed)

	invalid := s.Clone()
	invalid.Claim = ""
	require.ErrorIs(t, v.Verify(context.Background(), New(invalid, proof.Placeholder(invalid.Hash(), checker.Pass))), ErrMalformed)
}

func TestVerify_BoundButInvalidSpecIsMalformed(t *testing.T) {
	v := NewVerifier().WithClock(clock)

	for name, mutate := range map[string]func(*spec.ComplianceSpec){
		"empty version":     func(s *spec.ComplianceSpec) { s.Version = "" },
		"empty system hash": func(s *spec.ComplianceSpec) { s.SystemHash = "" },
	} {
		t.Run(name, func(t *testing.T) {
			s := testSpec(fixedNow.Add(time.Hour))
			mutate(s)
			env := New(s, proof.Placeholder(s.Hash(), checker.Pass))

			err := v.Verify(context.Background(), env)
			require.ErrorIs(t, err, ErrMalformed)
			require.ErrorIs(t, err, spec.ErrInvalid)
			assert.NotErrorIs(t, err, ErrBindingMismatch)
		})
	}
}

func TestVerify_ExpiryBoundaryAndSkew(t *testing.T) {
	s := testSpec(fixedNow)
	env := New(s, proof.Placeholder(s.Hash(), checker.Pass))

	require.NoError(t, NewVerifier().WithClock(clock).Verify(context.Background(), env))

	later := func() time.Time { return fixedNow.Add(time.Minute) }
	require.ErrorIs(t, NewVerifier().WithClock(later).Verify(context.Background(), env), ErrSpecExpired)
	require.NoError(t, NewVerifier().WithClock(later).WithClockSkew(2*time.Minute).Verify(context.Background(), env))
}

func TestVerify_AttestedOutcomes(t *testing.T) {
	s := testSpec(fixedNow.Add(time.Hour))
	v := NewVerifier().WithClock(clock).WithTrustAnchor(anchor)

	pass, err := v.Evaluate(context.Background(), New(s, sealed(t, s, checker.Pass)))
	require.NoError(t, err)
	assert.Equal(t, Outcome{Compliant: true, Result: checker.Pass, Assurance: proof.AssuranceAttested, SpecHash: s.Hash()}, pass)

	fail, err := v.Evaluate(context.Background(), New(s, sealed(t, s, checker.Fail)))
	require.NoError(t, err)
	assert.False(t, fail.Compliant)
	assert.Equal(t, proof.AssuranceAttested, fail.Assurance)

	// Could not attest: no anchor configured.
	_, err = NewVerifier().WithClock(clock).IsCompliant(context.Background(), New(s, sealed(t, s, checker.Pass)))
	require.ErrorIs(t, err, ErrProofInvalid)
	require.ErrorIs(t, err, proof.ErrNoTrustAnchor)

	// Could not attest: tampered seal.
	tampered := proof.New(s.Hash(), checker.Pass, []byte("sealed:sha256:guest{}"))
	_, err = v.IsCompliant(context.Background(), New(s, tampered))
	require.ErrorIs(t, err, ErrProofInvalid)
}

// Placeholder success must be distinguishable from attested success, and a
// policy requiring attestation must refuse it.
func TestPlaceholderPolicy(t *testing.T) {
	s := testSpec(fixedNow.Add(time.Hour))
	placeholder := New(s, proof.Placeholder(s.Hash(), checker.Pass))
	attested := New(s, sealed(t, s, checker.Pass))

	lenient := NewVerifier().WithClock(clock).WithTrustAnchor(anchor)
	p, err := lenient.Evaluate(context.Background(), placeholder)
	require.NoError(t, err)
	a, err := lenient.Evaluate(context.Background(), attested)
	require.NoError(t, err)

	assert.True(t, p.Compliant)
	assert.True(t, a.Compliant)
	assert.NotEqual(t, p.Assurance, a.Assurance, "placeholder and attested success must not look alike")

	strict := NewVerifier().WithClock(clock).WithTrustAnchor(anchor).RequireAttested(true)
	_, err = strict.IsCompliant(context.Background(), placeholder)
	require.ErrorIs(t, err, ErrPlaceholderRejected)
	ok, err := strict.IsCompliant(context.Background(), attested)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOwnership(t *testing.T) {
	s := testSpec(fixedNow.Add(time.Hour))
	env := New(s, proof.Placeholder(s.Hash(), checker.Pass))

	s.Claim = "mutated after wrapping"
	require.NoError(t, NewVerifier().WithClock(clock).Verify(context.Background(), env))

	view := env.Spec()
	view.Version = "2.0"
	assert.Equal(t, "1.0", env.Spec().Version)
}

func TestJSONRoundTrip(t *testing.T) {
	s := testSpec(fixedNow.Add(time.Hour))
	s.Metadata = map[string]any{"auditor": "ext"}
	env := New(s, sealed(t, s, checker.Pass))

	data, err := json.Marshal(env)
	require.NoError(t, err)

	parsed, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, s.Hash(), parsed.Spec().Hash())
	assert.Equal(t, env.Proof().ProofBytes(), parsed.Proof().ProofBytes())

	ok, err := NewVerifier().WithClock(clock).WithTrustAnchor(anchor).IsCompliant(context.Background(), parsed)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestParse_Malformed(t *testing.T) {
	s := testSpec(fixedNow.Add(time.Hour))
	specJSON, err := json.Marshal(s)
	require.NoError(t, err)
	proofJSON := `{"spec_hash":"h","result":"Pass","proof_bytes":""}`

	inputs := []string{
		`nope`,
		`{}`,
		`{"spec":` + string(specJSON) + `}`,
		`{"spec":` + string(specJSON) + `,"proof":` + proofJSON + `,"extra":true}`,
		`{"spec":{"claim":""},"proof":` + proofJSON + `}`,
		`{"spec":` + string(specJSON) + `,"proof":{"result":"Pass"}}`,
		`{"spec":` + string(specJSON) + `,"proof":` + proofJSON + `,"proof":` + proofJSON + `}`,
	}
	for _, in := range inputs {
		_, err := Parse([]byte(in))
		assert.ErrorIs(t, err, ErrMalformed, in)
	}

	_, err = json.Marshal(New(s, nil))
	require.Error(t, err)
}

func TestVerify_Concurrent(t *testing.T) {
	s := testSpec(fixedNow.Add(time.Hour))
	env := New(s, sealed(t, s, checker.Pass))
	v := NewVerifier().WithClock(clock).WithTrustAnchor(anchor).RequireAttested(true)

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := v.IsCompliant(context.Background(), env); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
