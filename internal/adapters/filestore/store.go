// Package filestore keeps uploaded ride media on the local filesystem.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/objectstore"
)

// Store writes objects below Root. Locators are BaseURL + "/" + path when BaseURL
// is set, otherwise the bare object path.
type Store struct {
	Root    string
	BaseURL string
}

func New(root, baseURL string) (*Store, error) {
	if root == "" {
		return nil, errors.New("filestore root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &Store{Root: root, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

var _ objectstore.Store = (*Store)(nil)

func (s *Store) Put(ctx context.Context, o objectstore.Object) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean := path.Clean("/" + o.Path)[1:]
	if clean == "" || clean != o.Path {
		return "", fmt.Errorf("invalid object path %q", o.Path)
	}
	full := filepath.Join(s.Root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", err
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !o.Upsert {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	f, err := os.OpenFile(full, flags, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", objectstore.ErrExists
		}
		return "", err
	}
	if _, err := f.Write(o.Body); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	if s.BaseURL == "" {
		return clean, nil
	}
	return s.BaseURL + "/" + clean, nil
}
