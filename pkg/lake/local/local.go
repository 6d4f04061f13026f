// Package local is a filesystem-backed ObjectStore. Object paths map
// directly to files under a root directory; Put is atomic via a temp file
// rename so a crashed run never leaves a half-written partition.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/chriscoveyduck/octopus2adls/pkg/lake"
)

// Store writes objects under Root.
type Store struct {
	root string
}

// New creates the root directory if needed and returns the store.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create lake root %q: %w", root, err)
	}
	return &Store{root: root}, nil
}

func (s *Store) fullPath(path string) string {
	return filepath.Join(s.root, filepath.FromSlash(path))
}

func (s *Store) Put(_ context.Context, path string, data []byte) error {
	full := s.fullPath(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func (s *Store) Get(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(s.fullPath(path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, lake.ErrNotFound
	}
	return data, err
}

func (s *Store) Delete(_ context.Context, path string) error {
	err := os.Remove(s.fullPath(path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (s *Store) List(_ context.Context, prefix string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(rel, prefix) {
			paths = append(paths, rel)
		}
		return nil
	})
	return paths, err
}

func (s *Store) Close() error { return nil }
