// Package artifacts is the content-addressed store for guest images. An
// image is identified by "sha256:<hex>" of its bytes; that identifier is the
// executor identity pinned by verifiers.
package artifacts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const idPrefix = "sha256:"

// ErrNotFound is returned when no image exists for an identifier.
var ErrNotFound = errors.New("artifact not found")

// ErrIntegrity is returned when stored bytes no longer match their identifier.
var ErrIntegrity = errors.New("artifact content does not match its digest")

// Store defines the contract for content-addressed storage of guest images.
type Store interface {
	// Put persists data and returns its identifier.
	Put(ctx context.Context, data []byte) (string, error)
	// Get retrieves data by identifier and checks it still matches.
	Get(ctx context.Context, id string) ([]byte, error)
	// Exists checks if an image exists.
	Exists(ctx context.Context, id string) (bool, error)
	// Delete removes an image. Deleting a missing image is not an error.
	Delete(ctx context.Context, id string) error
}

// IDOf returns the identifier of data.
func IDOf(data []byte) string {
	sum := sha256.Sum256(data)
	return idPrefix + hex.EncodeToString(sum[:])
}

// ParseID validates id and returns its lowercase hex digest.
func ParseID(id string) (string, error) {
	raw, ok := strings.CutPrefix(id, idPrefix)
	if !ok {
		return "", fmt.Errorf("invalid image id format: %q", id)
	}
	if len(raw) != sha256.Size*2 {
		return "", fmt.Errorf("invalid image id length: %q", id)
	}
	if _, err := hex.DecodeString(raw); err != nil {
		return "", fmt.Errorf("invalid image id hex: %w", err)
	}
	return strings.ToLower(raw), nil
}

// Digest returns the raw 32-byte digest named by id.
func Digest(id string) ([]byte, error) {
	raw, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	return hex.DecodeString(raw)
}

func verifyContent(id string, data []byte) error {
	if IDOf(data) != idPrefix+strings.ToLower(strings.TrimPrefix(id, idPrefix)) {
		return fmt.Errorf("%w: %s", ErrIntegrity, id)
	}
	return nil
}

// FileStore is a filesystem-backed implementation of Store.
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFileStore creates an image store at the specified directory.
func NewFileStore(baseDir string) (*FileStore, error) {
	//nolint:gosec // G301: 0755 is intentional for shared artifact directory
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to ensure artifact dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) path(raw string) string {
	return filepath.Join(s.baseDir, raw+".wasm")
}

func (s *FileStore) Put(ctx context.Context, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := IDOf(data)
	path := s.path(strings.TrimPrefix(id, idPrefix))

	if _, err := os.Stat(path); err == nil {
		return id, nil
	}

	// Write to temp, then rename
	tmpPath := path + ".tmp"
	//nolint:gosec // G306: 0644 is intentional for readable image files
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return "", fmt.Errorf("failed to commit image: %w", err)
	}
	return id, nil
}

func (s *FileStore) Get(ctx context.Context, id string) ([]byte, error) {
	raw, err := ParseID(id)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(raw)) //nolint:gosec // id validated as hex
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to read image %s: %w", id, err)
	}
	if err := verifyContent(id, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *FileStore) Exists(ctx context.Context, id string) (bool, error) {
	raw, err := ParseID(id)
	if err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err = os.Stat(s.path(raw))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat image %s: %w", id, err)
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	raw, err := ParseID(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(raw)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}
