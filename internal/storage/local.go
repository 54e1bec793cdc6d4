package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const localScheme = "file://"

// LocalStore writes objects below a root directory.
type LocalStore struct {
	root string
}

// NewLocalStore creates root if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		return nil, errors.New("local store: empty root")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &LocalStore{root: root}, nil
}

// Store writes data to root/key and returns a file:// locator.
func (s *LocalStore) Store(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_ = contentType
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key = SanitizeKey(key)
	if key == "" {
		return "", ErrInvalidKey
	}
	path := filepath.Join(s.root, key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return localScheme + key, nil
}

// Delete removes the file behind a locator returned by Store.
func (s *LocalStore) Delete(ctx context.Context, locator string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, ok := s.keyOf(locator)
	if !ok {
		return nil
	}
	err := os.Remove(filepath.Join(s.root, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (s *LocalStore) keyOf(locator string) (string, bool) {
	if !strings.HasPrefix(locator, localScheme) {
		return "", false
	}
	key := SanitizeKey(strings.TrimPrefix(locator, localScheme))
	return key, key != ""
}

// Load reads the object behind a locator returned by Store.
func (s *LocalStore) Load(ctx context.Context, locator string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, ok := s.keyOf(locator)
	if !ok {
		return nil, ErrNotFound
	}
	data, err := os.ReadFile(filepath.Join(s.root, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}
