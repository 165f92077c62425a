package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/fuse/pkg/artifacts"
)

var (
	wasmHeader = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	typeVoid   = []byte{0x01, 0x04, 0x01, 0x60, 0x00, 0x00}
	funcOne    = []byte{0x03, 0x02, 0x01, 0x00}
	exportMain = []byte{0x07, 0x0a, 0x01, 0x06, '_', 's', 't', 'a', 'r', 't', 0x00, 0x00}
	// memory with a 100-page minimum
	memoryBig = []byte{0x05, 0x03, 0x01, 0x00, 0x64}
	bodyNoop  = []byte{0x0a, 0x04, 0x01, 0x02, 0x00, 0x0b}
	// loop br 0 end
	bodySpin = []byte{0x0a, 0x09, 0x01, 0x07, 0x00, 0x03, 0x40, 0x0c, 0x00, 0x0b, 0x0b}
)

func module(sections ...[]byte) []byte {
	out := append([]byte{}, wasmHeader...)
	for _, s := range sections {
		out = append(out, s...)
	}
	return out
}

func newWasmSandbox(t *testing.T, cfg Config, images ...[]byte) (*WasmSandbox, []string) {
	t.Helper()
	ctx := context.Background()
	store, err := artifacts.NewFileStore(t.TempDir())
	require.NoError(t, err)

	ids := make([]string, 0, len(images))
	for _, img := range images {
		id, err := store.Put(ctx, img)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	sb, err := NewWasmSandbox(ctx, store, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sb.Close(context.Background()) })
	return sb, ids
}

func TestWasmSandbox_NoopGuest(t *testing.T) {
	sb, ids := newWasmSandbox(t, Config{TimeLimit: 5 * time.Second}, module(typeVoid, funcOne, exportMain, bodyNoop))

	out, err := sb.Run(context.Background(), ids[0], []byte("ignored"))
	require.NoError(t, err)
	assert.Empty(t, out)

	// A second run instantiates a fresh module from the cached compilation.
	out, err = sb.Run(context.Background(), ids[0], nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestWasmSandbox_ImageNotFound(t *testing.T) {
	sb, _ := newWasmSandbox(t, Config{})

	_, err := sb.Run(context.Background(), artifacts.IDOf([]byte("never stored")), nil)
	require.ErrorIs(t, err, ErrImageNotFound)
}

func TestWasmSandbox_TimeLimit(t *testing.T) {
	sb, ids := newWasmSandbox(t, Config{TimeLimit: 50 * time.Millisecond}, module(typeVoid, funcOne, exportMain, bodySpin))

	start := time.Now()
	_, err := sb.Run(context.Background(), ids[0], nil)
	require.ErrorIs(t, err, ErrTimeExhausted)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestWasmSandbox_CallerCancellation(t *testing.T) {
	sb, ids := newWasmSandbox(t, Config{}, module(typeVoid, funcOne, exportMain, bodySpin))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := sb.Run(ctx, ids[0], nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWasmSandbox_MemoryLimit(t *testing.T) {
	sb, ids := newWasmSandbox(t, Config{MemoryLimitBytes: 1 << 20}, module(typeVoid, funcOne, memoryBig, exportMain, bodyNoop))

	_, err := sb.Run(context.Background(), ids[0], nil)
	require.ErrorIs(t, err, ErrMemoryExhausted)
}

func TestWasmSandbox_InvalidImage(t *testing.T) {
	sb, ids := newWasmSandbox(t, Config{}, []byte("not wasm"))

	_, err := sb.Run(context.Background(), ids[0], nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrImageNotFound)
}
