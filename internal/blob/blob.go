// Package blob stores opaque model weight blobs behind a small interface so
// the registry never touches storage mechanics directly.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound indicates the referenced blob does not exist.
var ErrNotFound = errors.New("blob: not found")

// Store persists opaque blobs under caller-chosen references.
type Store interface {
	// Put writes the blob and returns the number of bytes stored.
	Put(ctx context.Context, ref string, r io.Reader) (int64, error)
	// Open returns a reader for the blob, or ErrNotFound.
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	// Delete removes the blob. Deleting an absent blob is not an error.
	Delete(ctx context.Context, ref string) error
}

var _ Store = (*FS)(nil)

// FS implements Store on the local filesystem, rooted at a base directory.
// References are relative slash-separated paths; anything escaping the root
// is rejected.
type FS struct {
	root string
}

// NewFS creates the directory-backed store.
func NewFS(root string) (*FS, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("blob: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("blob: create root: %w", err)
	}
	return &FS{root: root}, nil
}

func (s *FS) resolve(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", errors.New("blob: empty reference")
	}
	clean := filepath.Clean(filepath.FromSlash(ref))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("blob: reference escapes store root: %q", ref)
	}
	return filepath.Join(s.root, clean), nil
}

func (s *FS) Put(ctx context.Context, ref string, r io.Reader) (int64, error) {
	path, err := s.resolve(ref)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	// Write to a temp file in the same directory, then rename, so readers
	// never observe a partially written blob.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return 0, err
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	n, err := io.Copy(tmp, r)
	if err != nil {
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *FS) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	path, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *FS) Delete(ctx context.Context, ref string) error {
	path, err := s.resolve(ref)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
