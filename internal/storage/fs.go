package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/zdbackup/internal/filex"
)

// FS stores objects under a root directory. Locations are absolute paths.
type FS struct {
	root string
}

func NewFS(root string) (*FS, error) {
	abs, err := filex.EnsureDir(root)
	if err != nil {
		return nil, err
	}
	return &FS{root: abs}, nil
}

func (s *FS) path(key string) (string, error) {
	p := filepath.Join(s.root, filepath.FromSlash(key))
	if p != s.root && !strings.HasPrefix(p, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("key %q escapes storage root", key)
	}
	return p, nil
}

func (s *FS) Lookup(_ context.Context, key string) (string, bool, error) {
	p, err := s.path(key)
	if err != nil {
		return "", false, err
	}
	return p, filex.NonEmpty(p), nil
}

func (s *FS) Put(_ context.Context, key string, r io.Reader) (string, int64, error) {
	p, err := s.path(key)
	if err != nil {
		return "", 0, err
	}
	n, err := filex.WriteAtomic(p, r)
	if err != nil {
		return "", n, err
	}
	return p, n, nil
}
