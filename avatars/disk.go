package avatars

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DiskStore writes objects below a root directory that is served over HTTP
// at PublicPrefix.
type DiskStore struct {
	root         string
	publicPrefix string
}

// NewDiskStore creates a DiskStore. publicPrefix is the URL path the root is
// served from, e.g. "/uploads".
func NewDiskStore(root, publicPrefix string) *DiskStore {
	return &DiskStore{root: root, publicPrefix: strings.TrimRight(publicPrefix, "/")}
}

// Root returns the directory objects are written to.
func (s *DiskStore) Root() string {
	return s.root
}

// Put writes body to root/key through a temporary file so readers never see
// a partial image.
func (s *DiskStore) Put(ctx context.Context, key, contentType string, body []byte) (string, error) {
	clean := path.Clean("/" + key)[1:]
	if clean == "" || clean != key {
		return "", fmt.Errorf("invalid object key %q", key)
	}

	dest := filepath.Join(s.root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close upload: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", fmt.Errorf("chmod upload: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("move upload: %w", err)
	}

	return s.publicPrefix + "/" + clean, nil
}
