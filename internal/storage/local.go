package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/tolet/service/internal/upload"
)

// PublicPrefix is the URL path under which locally stored files are served.
const PublicPrefix = "uploads"

// LocalStorage keeps uploads in a directory served at /uploads/. A file staged
// in that directory is already persisted; references are "uploads/<name>".
type LocalStorage struct {
	dir string
}

// NewLocalStorage returns a LocalStorage rooted at dir, creating it if needed.
func NewLocalStorage(dir string) (*LocalStorage, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStorage{dir: abs}, nil
}

// Dir returns the absolute directory files are kept in.
func (s *LocalStorage) Dir() string {
	return s.dir
}

// Save moves f into the upload directory when it was staged elsewhere.
func (s *LocalStorage) Save(_ context.Context, f upload.File) (string, error) {
	dest := filepath.Join(s.dir, f.Filename)
	if filepath.Clean(f.Path) != dest {
		if err := os.Rename(f.Path, dest); err != nil {
			return "", fmt.Errorf("move upload %s: %w", f.Filename, err)
		}
	}
	return path.Join(PublicPrefix, f.Filename), nil
}

// Delete unlinks the file behind ref. Missing files and refs outside
// "uploads/" (hosted URLs from another deployment) are skipped.
func (s *LocalStorage) Delete(_ context.Context, ref string) error {
	if !strings.HasPrefix(ref, PublicPrefix+"/") {
		return nil
	}
	name := path.Base(ref)
	if name == "." || name == ".." || name == "/" {
		return nil
	}

	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", ref, err)
	}
	return nil
}
