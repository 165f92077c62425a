package prover

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/Mindburn-Labs/fuse/pkg/artifacts"
	"github.com/Mindburn-Labs/fuse/pkg/canonicalize"
	"github.com/Mindburn-Labs/fuse/pkg/crypto"
	"github.com/Mindburn-Labs/fuse/pkg/proof"
	"github.com/Mindburn-Labs/fuse/pkg/runtime/sandbox"
)

// Receipt layout: version(1) || image digest(32) || Ed25519 signature(64).
const (
	receiptVersion byte = 0x01
	receiptDomain       = "fuse-receipt-v1"
	receiptLen          = 1 + sha256.Size + 64
)

// ImageDigest returns the 32-byte executor identity sealed into receipts.
// Content-addressed ids contribute their digest directly; any other id is
// hashed.
func ImageDigest(imageID string) []byte {
	if d, err := artifacts.Digest(imageID); err == nil {
		return d
	}
	sum := sha256.Sum256([]byte(imageID))
	return sum[:]
}

func receiptPayload(imageDigest, journal []byte) ([]byte, error) {
	body, err := canonicalize.JCS(map[string]string{
		"image_digest":   hex.EncodeToString(imageDigest),
		"journal_digest": canonicalize.HashBytes(journal),
	})
	if err != nil {
		return nil, err
	}
	return append([]byte(receiptDomain), body...), nil
}

// ReceiptBackend executes the guest in a sandbox and seals the journal with
// an attestor key. The attestor vouches that the named image produced the
// journal; verifiers need only its public key.
type ReceiptBackend struct {
	sandbox  sandbox.Sandbox
	attestor *crypto.Ed25519Signer
}

// NewReceiptBackend wires a sandbox to an attestor key.
func NewReceiptBackend(sb sandbox.Sandbox, attestor *crypto.Ed25519Signer) *ReceiptBackend {
	return &ReceiptBackend{sandbox: sb, attestor: attestor}
}

// PublicKey returns the attestor public key verifiers must pin.
func (b *ReceiptBackend) PublicKey() []byte {
	return b.attestor.PublicKeyBytes()
}

// Verifier returns a ReceiptVerifier for this backend's attestor.
func (b *ReceiptBackend) Verifier() *ReceiptVerifier {
	return &ReceiptVerifier{publicKey: b.attestor.PublicKeyBytes()}
}

func (b *ReceiptBackend) GenerateProof(ctx context.Context, req ProveRequest) (*Receipt, error) {
	if req.ImageID == "" {
		return nil, &BackendError{Code: CodeExecutorNotFound, Message: "no executor image configured"}
	}
	if len(req.Input) == 0 {
		return nil, &BackendError{Code: CodeMalformedInput, Message: "empty guest input"}
	}

	journal, err := b.sandbox.Run(ctx, req.ImageID, req.Input)
	if err != nil {
		return nil, sandboxFailure(ctx, err)
	}
	if _, err := proof.DecodeJournal(journal); err != nil {
		return nil, &BackendError{Code: CodeComputeFailed, Message: "guest produced an invalid journal", Err: err}
	}

	digest := ImageDigest(req.ImageID)
	payload, err := receiptPayload(digest, journal)
	if err != nil {
		return nil, &BackendError{Code: CodeComputeFailed, Err: err}
	}

	sealed := make([]byte, 0, receiptLen)
	sealed = append(sealed, receiptVersion)
	sealed = append(sealed, digest...)
	sealed = append(sealed, b.attestor.SignBytes(payload)...)

	return &Receipt{ProofBytes: sealed, Journal: journal}, nil
}

func (b *ReceiptBackend) VerifyProof(ctx context.Context, imageID string, proofBytes, journal []byte) error {
	return b.Verifier().VerifyProof(ctx, imageID, proofBytes, journal)
}

func sandboxFailure(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, sandbox.ErrImageNotFound):
		return &BackendError{Code: CodeExecutorNotFound, Err: err}
	case errors.Is(err, sandbox.ErrTimeExhausted),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		ctx.Err() != nil:
		return &BackendError{Code: CodeTimeout, Err: err}
	default:
		return &BackendError{Code: CodeComputeFailed, Err: err}
	}
}

// ReceiptVerifier checks receipts sealed by a ReceiptBackend. It implements
// proof.BackendVerifier.
type ReceiptVerifier struct {
	publicKey []byte
}

// NewReceiptVerifier pins an attestor public key.
func NewReceiptVerifier(publicKey []byte) (*ReceiptVerifier, error) {
	if !crypto.IsStrictPublicKey(publicKey) {
		return nil, fmt.Errorf("invalid attestor public key")
	}
	return &ReceiptVerifier{publicKey: append([]byte(nil), publicKey...)}, nil
}

// NewReceiptVerifierHex pins a hex-encoded attestor public key.
func NewReceiptVerifierHex(publicKeyHex string) (*ReceiptVerifier, error) {
	pub, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid attestor public key hex: %w", err)
	}
	return NewReceiptVerifier(pub)
}

func (v *ReceiptVerifier) VerifyProof(ctx context.Context, imageID string, proofBytes, journal []byte) error {
	if len(proofBytes) != receiptLen || proofBytes[0] != receiptVersion {
		return &BackendError{Code: CodeMalformedInput, Message: "unrecognised receipt encoding", Err: proof.ErrMalformed}
	}
	sealedDigest := proofBytes[1 : 1+sha256.Size]
	sig := proofBytes[1+sha256.Size:]

	if subtle.ConstantTimeCompare(sealedDigest, ImageDigest(imageID)) != 1 {
		return &BackendError{
			Code:    CodeVerifyMismatch,
			Message: fmt.Sprintf("receipt was produced by executor %x, expected %s", sealedDigest, imageID),
			Err:     proof.ErrExecutorMismatch,
		}
	}

	payload, err := receiptPayload(sealedDigest, journal)
	if err != nil {
		return &BackendError{Code: CodeMalformedInput, Err: err}
	}
	if !crypto.VerifyStrict(v.publicKey, payload, sig) {
		return &BackendError{Code: CodeVerifyMismatch, Message: "receipt signature does not cover this journal"}
	}
	return nil
}
