package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aspoi/membership-payments/src/internal/domain"
)

// FilesystemStore writes receipts under a root directory, for local runs.
type FilesystemStore struct {
	root          string
	publicBaseURL string
}

func NewFilesystemStore(root string, publicBaseURL string) *FilesystemStore {
	return &FilesystemStore{
		root:          root,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

func (s *FilesystemStore) Put(_ context.Context, key string, body []byte, _ string) (string, error) {
	path, err := s.path(key)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create receipt directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", domain.ErrObjectExists
		}
		return "", fmt.Errorf("create receipt file: %w", err)
	}

	if _, err := f.Write(body); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write receipt file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close receipt file: %w", err)
	}

	return s.URL(key), nil
}

func (s *FilesystemStore) URL(key string) string {
	return s.publicBaseURL + "/" + strings.TrimLeft(key, "/")
}

// Root is the directory served for public receipt URLs.
func (s *FilesystemStore) Root() string {
	return s.root
}

func (s *FilesystemStore) path(key string) (string, error) {
	cleaned := filepath.Clean("/" + key)
	if cleaned == "/" {
		return "", fmt.Errorf("receipt key is required")
	}

	return filepath.Join(s.root, filepath.FromSlash(cleaned)), nil
}
