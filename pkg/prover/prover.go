// Package prover is the host side of the execution boundary. It packages a
// check as guest input, hands it to a proving backend, and turns the
// committed journal into a ComplianceProof.
package prover

import (
	"context"
	"fmt"
	"time"

	"github.com/Mindburn-Labs/fuse/pkg/guest"
)

// Mode selects how the host executes checks.
type Mode string

const (
	// ModeDirect runs the checker in-process and yields placeholder proofs.
	// It is a development fallback, not a security boundary.
	ModeDirect Mode = "direct"
	// ModeAttested runs the checker inside a proving backend.
	ModeAttested Mode = "attested"
)

// ParseMode accepts "direct" or "attested".
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDirect, ModeAttested:
		return Mode(s), nil
	case "":
		return ModeDirect, nil
	default:
		return "", fmt.Errorf("unknown prover mode %q (want direct or attested)", s)
	}
}

// Config fixes the execution mode at construction time.
type Config struct {
	Mode    Mode
	ImageID string
	// Timeout bounds a single GenerateProof call. Zero disables the bound.
	Timeout time.Duration
	// RateLimit caps proving requests per second. Zero is unlimited.
	RateLimit float64
}

// DefaultConfig returns direct mode against the native guest.
func DefaultConfig() Config {
	return Config{
		Mode:    ModeDirect,
		ImageID: guest.NativeImageID,
		Timeout: 5 * time.Minute,
	}
}

// ProveRequest is the message sent across the execution boundary.
type ProveRequest struct {
	// ImageID names the executor that must run the guest.
	ImageID string
	// Input is the encoded guest input (see guest.EncodeInput).
	Input []byte
}

// Receipt is what a backend returns: attestation material plus the
// journal the guest committed.
type Receipt struct {
	ProofBytes []byte
	Journal    []byte
}

// Backend is the proving backend contract.
type Backend interface {
	GenerateProof(ctx context.Context, req ProveRequest) (*Receipt, error)
	VerifyProof(ctx context.Context, imageID string, proofBytes, journal []byte) error
}
