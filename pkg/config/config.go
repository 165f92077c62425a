// Package config loads runtime configuration from the environment and
// verifier trust profiles from YAML.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Mindburn-Labs/fuse/pkg/artifacts"
	"github.com/Mindburn-Labs/fuse/pkg/crypto"
	"github.com/Mindburn-Labs/fuse/pkg/observability"
	"github.com/Mindburn-Labs/fuse/pkg/prover"
	"github.com/Mindburn-Labs/fuse/pkg/runtime/sandbox"
)

// Sandbox kinds.
const (
	SandboxWasm      = "wasm"
	SandboxInProcess = "inprocess"
)

// Config holds host configuration.
type Config struct {
	LogLevel string

	ProverMode   string
	ImageID      string
	ProveTimeout time.Duration
	ProveRate    float64
	AttestorSeed string // hex, 32 bytes

	Sandbox         string
	SandboxMemoryMB int

	OTLPEndpoint string
	OTLPInsecure bool

	Artifacts artifacts.Config
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		LogLevel:     getenv("LOG_LEVEL", "INFO"),
		ProverMode:   getenv("FUSE_PROVER_MODE", string(prover.ModeDirect)),
		ImageID:      os.Getenv("FUSE_IMAGE_ID"),
		AttestorSeed: os.Getenv("FUSE_ATTESTOR_SEED"),
		Sandbox:      getenv("FUSE_SANDBOX", SandboxInProcess),
		OTLPEndpoint: os.Getenv("FUSE_OTLP_ENDPOINT"),
		OTLPInsecure: os.Getenv("FUSE_OTLP_INSECURE") == "true",
		Artifacts: artifacts.Config{
			Type:       artifacts.StoreType(getenv("ARTIFACT_STORAGE_TYPE", string(artifacts.StoreTypeFS))),
			DataDir:    getenv("DATA_DIR", "data"),
			S3Bucket:   os.Getenv("ARTIFACT_S3_BUCKET"),
			S3Region:   os.Getenv("ARTIFACT_S3_REGION"),
			S3Endpoint: os.Getenv("ARTIFACT_S3_ENDPOINT"),
			S3Prefix:   os.Getenv("ARTIFACT_S3_PREFIX"),
			GCSBucket:  os.Getenv("ARTIFACT_GCS_BUCKET"),
			GCSPrefix:  os.Getenv("ARTIFACT_GCS_PREFIX"),
		},
	}

	var err error
	if cfg.ProveTimeout, err = time.ParseDuration(getenv("FUSE_PROVE_TIMEOUT", "5m")); err != nil {
		return nil, fmt.Errorf("FUSE_PROVE_TIMEOUT: %w", err)
	}
	if cfg.ProveRate, err = strconv.ParseFloat(getenv("FUSE_PROVE_RATE", "0"), 64); err != nil || cfg.ProveRate < 0 {
		return nil, fmt.Errorf("FUSE_PROVE_RATE must be a non-negative number, got %q", os.Getenv("FUSE_PROVE_RATE"))
	}
	if cfg.SandboxMemoryMB, err = strconv.Atoi(getenv("FUSE_SANDBOX_MEMORY_MB", "256")); err != nil || cfg.SandboxMemoryMB < 0 {
		return nil, fmt.Errorf("FUSE_SANDBOX_MEMORY_MB must be a non-negative integer, got %q", os.Getenv("FUSE_SANDBOX_MEMORY_MB"))
	}

	switch cfg.Sandbox {
	case SandboxWasm, SandboxInProcess:
	default:
		return nil, fmt.Errorf("FUSE_SANDBOX must be %q or %q, got %q", SandboxWasm, SandboxInProcess, cfg.Sandbox)
	}
	if _, err := prover.ParseMode(cfg.ProverMode); err != nil {
		return nil, fmt.Errorf("FUSE_PROVER_MODE: %w", err)
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// ProverConfig returns the explicit execution-boundary configuration.
func (c *Config) ProverConfig() (prover.Config, error) {
	mode, err := prover.ParseMode(c.ProverMode)
	if err != nil {
		return prover.Config{}, err
	}
	out := prover.DefaultConfig()
	out.Mode = mode
	out.Timeout = c.ProveTimeout
	out.RateLimit = c.ProveRate
	if c.ImageID != "" {
		out.ImageID = c.ImageID
	}
	return out, nil
}

// SandboxConfig returns the guest resource limits.
func (c *Config) SandboxConfig() sandbox.Config {
	return sandbox.Config{
		MemoryLimitBytes: int64(c.SandboxMemoryMB) * 1024 * 1024,
		TimeLimit:        c.ProveTimeout,
	}
}

// ObservabilityConfig enables export only when an endpoint is set.
func (c *Config) ObservabilityConfig() *observability.Config {
	oc := observability.DefaultConfig()
	if c.OTLPEndpoint != "" {
		oc.Enabled = true
		oc.OTLPEndpoint = c.OTLPEndpoint
		oc.Insecure = c.OTLPInsecure
	}
	return oc
}

// Attestor returns the receipt signing key. Without a configured seed it
// generates an ephemeral key whose receipts only verify in-process.
func (c *Config) Attestor() (signer *crypto.Ed25519Signer, ephemeral bool, err error) {
	if c.AttestorSeed == "" {
		signer, err = crypto.NewEd25519Signer("ephemeral")
		return signer, true, err
	}
	signer, err = crypto.NewEd25519SignerFromHexSeed(c.AttestorSeed, "attestor")
	if err != nil {
		return nil, false, fmt.Errorf("FUSE_ATTESTOR_SEED: %w", err)
	}
	return signer, false, nil
}
