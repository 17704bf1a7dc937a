package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Storage persists image payloads and returns a URL clients can fetch.
type Storage interface {
	// StoreImage writes the image bytes and returns the stored-object URL.
	StoreImage(ctx context.Context, data []byte, mimeType string) (string, error)

	// Delete removes a previously stored image by its URL.
	Delete(ctx context.Context, url string) error
}

// LocalStorage implements Storage on the local filesystem. The directory is
// expected to be served (or synced to a bucket) under baseURL.
type LocalStorage struct {
	dir     string
	baseURL string
}

func NewLocalStorage(dir, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	return &LocalStorage{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalStorage) StoreImage(ctx context.Context, data []byte, mimeType string) (string, error) {
	name := uuid.NewString() + extensionFor(mimeType)
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	return s.baseURL + "/" + name, nil
}

func (s *LocalStorage) Delete(ctx context.Context, url string) error {
	name := filepath.Base(url)
	path := filepath.Join(s.dir, name)

	// Guard against escaping the image directory.
	if !filepath.HasPrefix(path, s.dir) || strings.Contains(name, "..") {
		return fmt.Errorf("invalid image path: must be within image directory")
	}
	return os.Remove(path)
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".bin"
	}
}
