// Package sandbox executes guest images in isolation. The WebAssembly
// sandbox is the production executor; the in-process sandbox runs the
// native guest for development and tests.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Mindburn-Labs/fuse/pkg/guest"
)

// Sandbox defines the isolation environment for executing guest images.
// Must support strict resource limits and capability filtering.
type Sandbox interface {
	// Run executes the image with the given stdin and returns its stdout.
	Run(ctx context.Context, imageID string, input []byte) ([]byte, error)

	// Close cleans up sandbox resources.
	Close(ctx context.Context) error
}

// Config configures restrictions.
type Config struct {
	MemoryLimitBytes int64
	TimeLimit        time.Duration
	OutputLimitBytes int
}

// OutputMaxBytes is the default cap on stdout+stderr from one execution.
const OutputMaxBytes = 1024 * 1024 // 1MB

func (c Config) outputLimit() int {
	if c.OutputLimitBytes > 0 {
		return c.OutputLimitBytes
	}
	return OutputMaxBytes
}

// Deterministic error codes for sandbox violations.
const (
	CodeComputeTimeExhausted   = "ERR_COMPUTE_TIME_EXHAUSTED"
	CodeComputeMemoryExhausted = "ERR_COMPUTE_MEMORY_EXHAUSTED"
	CodeComputeOutputExhausted = "ERR_COMPUTE_OUTPUT_EXHAUSTED"
	CodeImageNotFound          = "ERR_IMAGE_NOT_FOUND"
	CodeExecutionFailed        = "ERR_EXECUTION_FAILED"
)

// Sentinels for errors.Is against a SandboxError code.
var (
	ErrTimeExhausted   = &SandboxError{Code: CodeComputeTimeExhausted}
	ErrMemoryExhausted = &SandboxError{Code: CodeComputeMemoryExhausted}
	ErrOutputExhausted = &SandboxError{Code: CodeComputeOutputExhausted}
	ErrImageNotFound   = &SandboxError{Code: CodeImageNotFound}
	ErrExecutionFailed = &SandboxError{Code: CodeExecutionFailed}
)

// SandboxError is a deterministic, typed error for sandbox limit violations.
type SandboxError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *SandboxError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *SandboxError) Unwrap() error { return e.Err }

func (e *SandboxError) ErrorCode() string { return e.Code }

// Is matches any SandboxError carrying the same code.
func (e *SandboxError) Is(target error) bool {
	var t *SandboxError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// InProcessSandbox runs the native guest in the host process.
// WARNING: provides no isolation. Use for development and tests.
type InProcessSandbox struct {
	config Config
}

func NewInProcessSandbox(config Config) *InProcessSandbox {
	return &InProcessSandbox{config: config}
}

func (s *InProcessSandbox) Run(ctx context.Context, imageID string, input []byte) ([]byte, error) {
	if imageID != guest.NativeImageID {
		return nil, &SandboxError{
			Code:    CodeImageNotFound,
			Message: fmt.Sprintf("in-process sandbox only serves %s, not %q", guest.NativeImageID, imageID),
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	execCtx := ctx
	if s.config.TimeLimit > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, s.config.TimeLimit)
		defer cancel()
	}

	// The guest is pure, so an abandoned run is simply discarded.
	done := make(chan []byte, 1)
	go func() { done <- guest.Run(input) }()

	select {
	case out := <-done:
		if len(out) > s.config.outputLimit() {
			return nil, &SandboxError{
				Code:    CodeComputeOutputExhausted,
				Message: fmt.Sprintf("output size %d exceeds limit %d", len(out), s.config.outputLimit()),
			}
		}
		return out, nil
	case <-execCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &SandboxError{
			Code:    CodeComputeTimeExhausted,
			Message: fmt.Sprintf("in-process execution exceeded time limit (%s)", s.config.TimeLimit),
			Err:     execCtx.Err(),
		}
	}
}

func (s *InProcessSandbox) Close(ctx context.Context) error {
	return nil
}
