// Package qr renders and stores QR code images for patient identity tokens.
// Images live outside the relational store, so callers that write them inside
// a database transaction must remove them again if the transaction rolls
// back.
package qr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
)

// ErrImageNotFound is returned when an artifact path has no stored image.
var ErrImageNotFound = errors.New("qr image not found")

// ImageSize is the square pixel size of rendered QR PNGs.
const ImageSize = 256

// ImageStore persists rendered QR images keyed by artifact id.
type ImageStore interface {
	// Write renders payload as a QR PNG and stores it under a path derived
	// from artifactID. It returns the storage-relative path recorded in the
	// database.
	Write(ctx context.Context, artifactID uuid.UUID, payload string) (string, error)
	// Remove deletes a previously written image. Removing a missing image
	// returns ErrImageNotFound.
	Remove(ctx context.Context, path string) error
	// Open returns the PNG bytes at path.
	Open(ctx context.Context, path string) ([]byte, error)
}

// FSStore stores QR images as PNG files under a base directory.
type FSStore struct {
	dir string
}

// NewFSStore creates the base directory if needed and returns a store over it.
func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("qr store: create directory %s: %w", dir, err)
	}
	return &FSStore{dir: dir}, nil
}

func (s *FSStore) Write(_ context.Context, artifactID uuid.UUID, payload string) (string, error) {
	rel := fmt.Sprintf("qrcodes/%s.png", artifactID)
	abs := filepath.Join(s.dir, fmt.Sprintf("%s.png", artifactID))

	if err := qrcode.WriteFile(payload, qrcode.Medium, ImageSize, abs); err != nil {
		return "", fmt.Errorf("qr store: render %s: %w", rel, err)
	}
	return rel, nil
}

func (s *FSStore) Remove(_ context.Context, path string) error {
	abs := filepath.Join(s.dir, filepath.Base(path))
	if err := os.Remove(abs); err != nil {
		if os.IsNotExist(err) {
			return ErrImageNotFound
		}
		return fmt.Errorf("qr store: remove %s: %w", path, err)
	}
	return nil
}

func (s *FSStore) Open(_ context.Context, path string) ([]byte, error) {
	abs := filepath.Join(s.dir, filepath.Base(path))
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrImageNotFound
		}
		return nil, fmt.Errorf("qr store: read %s: %w", path, err)
	}
	return data, nil
}

// MemStore is a thread-safe in-memory ImageStore for tests.
type MemStore struct {
	mu     sync.Mutex
	images map[string][]byte

	// FailWrite forces the next Write to fail, for exercising compensation
	// paths.
	FailWrite bool
}

func NewMemStore() *MemStore {
	return &MemStore{images: make(map[string][]byte)}
}

func (s *MemStore) Write(_ context.Context, artifactID uuid.UUID, payload string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWrite {
		return "", errors.New("qr store: write failed")
	}

	png, err := qrcode.Encode(payload, qrcode.Medium, ImageSize)
	if err != nil {
		return "", fmt.Errorf("qr store: render: %w", err)
	}

	rel := fmt.Sprintf("qrcodes/%s.png", artifactID)
	s.images[rel] = png
	return rel, nil
}

func (s *MemStore) Remove(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.images[path]; !ok {
		return ErrImageNotFound
	}
	delete(s.images, path)
	return nil
}

func (s *MemStore) Open(_ context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	png, ok := s.images[path]
	if !ok {
		return nil, ErrImageNotFound
	}
	return png, nil
}

// Len reports how many images are currently stored.
func (s *MemStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.images)
}
