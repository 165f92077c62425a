package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"

	"github.com/Mindburn-Labs/fuse/pkg/artifacts"
)

// WasmSandbox enforces strict confinement using WebAssembly (wazero).
// Deny-by-default: no filesystem, no network, no ambient authority.
//
// Every Run instantiates a fresh module, so no state survives between
// requests. Compiled code is cached per image.
type WasmSandbox struct {
	runtime wazero.Runtime
	store   artifacts.Store
	config  Config

	mu       sync.Mutex
	compiled map[string]wazero.CompiledModule
}

// NewWasmSandbox creates a WASI sandbox that loads images from store.
func NewWasmSandbox(ctx context.Context, store artifacts.Store, config Config) (*WasmSandbox, error) {
	rConfig := wazero.NewRuntimeConfig().
		WithCloseOnContextDone(true) // lets deadlines interrupt guest loops
	if config.MemoryLimitBytes > 0 {
		pages := uint32(config.MemoryLimitBytes / 65536) // 64KB per page
		if pages == 0 {
			pages = 1
		}
		rConfig = rConfig.WithMemoryLimitPages(pages)
	}
	r := wazero.NewRuntimeWithConfig(ctx, rConfig)

	// Only stdin/stdout/stderr are wired. No FS mounts, env vars or args.
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate WASI: %w", err)
	}
	return &WasmSandbox{
		runtime:  r,
		store:    store,
		config:   config,
		compiled: make(map[string]wazero.CompiledModule),
	}, nil
}

func (s *WasmSandbox) compile(ctx context.Context, imageID string) (wazero.CompiledModule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.compiled[imageID]; ok {
		return c, nil
	}

	wasmBytes, err := s.store.Get(ctx, imageID)
	if err != nil {
		if errors.Is(err, artifacts.ErrNotFound) {
			return nil, &SandboxError{Code: CodeImageNotFound, Message: imageID, Err: err}
		}
		return nil, fmt.Errorf("failed to load guest image %s: %w", imageID, err)
	}

	c, err := s.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		if isMemoryError(err) {
			return nil, &SandboxError{
				Code:    CodeComputeMemoryExhausted,
				Message: fmt.Sprintf("image declares memory above limit (%d bytes)", s.config.MemoryLimitBytes),
				Err:     err,
			}
		}
		return nil, fmt.Errorf("failed to compile guest image: %w", err)
	}
	s.compiled[imageID] = c
	return c, nil
}

func (s *WasmSandbox) Run(ctx context.Context, imageID string, input []byte) ([]byte, error) {
	compiled, err := s.compile(ctx, imageID)
	if err != nil {
		return nil, err
	}

	execCtx := ctx
	if s.config.TimeLimit > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, s.config.TimeLimit)
		defer cancel()
	}

	out := &cappedBuffer{limit: s.config.outputLimit()}
	moduleConfig := wazero.NewModuleConfig().
		WithStdin(bytes.NewReader(input)).
		WithStdout(out).
		WithStderr(out.stderr()).
		WithStartFunctions("_start").
		WithName("")
	// Deny-by-default: we do NOT call:
	// - WithFSConfig()       → no filesystem
	// - WithSysWalltime()    → guest sees a fixed clock
	// - WithRandSource()     → guest sees deterministic randomness

	mod, err := s.runtime.InstantiateModule(execCtx, compiled, moduleConfig)
	if mod != nil {
		defer func() { _ = mod.Close(context.Background()) }()
	}
	if out.overflow {
		return nil, &SandboxError{
			Code:    CodeComputeOutputExhausted,
			Message: fmt.Sprintf("output exceeds limit %d", out.limit),
		}
	}
	if err != nil {
		var exitErr *sys.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 0 {
			return out.stdout.Bytes(), nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if execCtx.Err() != nil {
			return nil, &SandboxError{
				Code:    CodeComputeTimeExhausted,
				Message: fmt.Sprintf("WASI execution exceeded time limit (%s)", s.config.TimeLimit),
				Err:     err,
			}
		}
		if isMemoryError(err) {
			return nil, &SandboxError{
				Code:    CodeComputeMemoryExhausted,
				Message: fmt.Sprintf("WASI execution exceeded memory limit (%d bytes)", s.config.MemoryLimitBytes),
				Err:     err,
			}
		}
		return nil, &SandboxError{
			Code:    CodeExecutionFailed,
			Message: strings.TrimSpace(out.stderrText()),
			Err:     err,
		}
	}

	return out.stdout.Bytes(), nil
}

func (s *WasmSandbox) Close(ctx context.Context) error {
	return s.runtime.Close(ctx)
}

// cappedBuffer collects stdout and stderr against one shared byte budget.
type cappedBuffer struct {
	mu       sync.Mutex
	limit    int
	used     int
	overflow bool
	stdout   bytes.Buffer
	errBuf   bytes.Buffer
}

func (b *cappedBuffer) write(dst *bytes.Buffer, p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.used+len(p) > b.limit {
		b.overflow = true
		return 0, errors.New("sandbox output limit reached")
	}
	b.used += len(p)
	return dst.Write(p)
}

func (b *cappedBuffer) Write(p []byte) (int, error) { return b.write(&b.stdout, p) }

func (b *cappedBuffer) stderr() stderrWriter { return stderrWriter{b} }

func (b *cappedBuffer) stderrText() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.errBuf.String()
}

type stderrWriter struct{ b *cappedBuffer }

func (w stderrWriter) Write(p []byte) (int, error) { return w.b.write(&w.b.errBuf, p) }

// isMemoryError checks if the error is a memory limit violation.
func isMemoryError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "memory") &&
		(strings.Contains(msg, "limit") || strings.Contains(msg, "grow") || strings.Contains(msg, "exceeded"))
}
