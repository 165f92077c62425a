//go:build wasip1

// Command fuse-guest is the checker program run inside the WASI sandbox.
//
//	GOOS=wasip1 GOARCH=wasm go build -o fuse-guest.wasm ./cmd/fuse-guest
//
// It reads one request from stdin and writes the journal to stdout.
package main

import (
	"io"
	"os"

	"github.com/Mindburn-Labs/fuse/pkg/guest"
)

func main() {
	input, err := io.ReadAll(os.Stdin)
	if err != nil {
		os.Exit(1)
	}
	if _, err := os.Stdout.Write(guest.Run(input)); err != nil {
		os.Exit(1)
	}
}
