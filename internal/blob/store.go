// Package blob abstracts the external media store the profile service
// resolves images through. The core only needs put-returning-url; real
// deployments plug an object store behind the interface.
package blob

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

type Store interface {
	// Put writes the bytes under the given path and returns the public URL
	// the stored object is reachable at.
	Put(ctx context.Context, objectPath string, data []byte) (string, error)
}

// FSStore is the development implementation backed by a local directory.
type FSStore struct {
	dir     string
	baseURL string
}

func NewFSStore(dir, baseURL string) *FSStore {
	return &FSStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *FSStore) Put(ctx context.Context, objectPath string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	clean := path.Clean("/" + objectPath)[1:] // no escaping the store root
	full := filepath.Join(s.dir, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to create blob directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	return s.baseURL + "/" + clean, nil
}
