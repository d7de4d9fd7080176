package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/starford/mnemo/internal/apperr"
	"github.com/starford/mnemo/internal/checksum"
	"github.com/starford/mnemo/internal/models"
)

// FS implements Provider backed by a flat directory of Markdown files.
type FS struct {
	root string // absolute path to the store directory
}

// NewFS creates a new FS provider rooted at the given directory, creating it
// if it does not exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute store directory.
func (f *FS) Root() string { return f.root }

// notePath maps an id to its file and rejects ids that would leave the root.
func (f *FS) notePath(id string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("storage: empty note id: %w", apperr.ErrInvalidInput)
	}
	if strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") || filepath.IsAbs(id) {
		return "", fmt.Errorf("storage: invalid note id %q: %w", id, apperr.ErrInvalidInput)
	}
	abs := filepath.Join(f.root, id+Ext)
	// Ensure the resolved path is still directly under root.
	if filepath.Dir(abs) != f.root {
		return "", fmt.Errorf("storage: note id escapes store root: %q: %w", id, apperr.ErrInvalidInput)
	}
	return abs, nil
}

// Read returns the raw bytes of a note file.
func (f *FS) Read(id string) ([]byte, error) {
	p, err := f.notePath(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("storage: read %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", id, err)
	}
	return data, nil
}

// Write atomically replaces the note file: temp file in the same directory,
// fsync, rename.
func (f *FS) Write(id string, content []byte) error {
	p, err := f.notePath(id)
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(p, bytes.NewReader(content)); err != nil {
		return fmt.Errorf("storage: write %s: %w", id, err)
	}
	return nil
}

// Exists reports whether the note file is present.
func (f *FS) Exists(id string) (bool, error) {
	p, err := f.notePath(id)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(p)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("storage: stat %s: %w", id, err)
	}
	return info.Mode().IsRegular(), nil
}

// List returns metadata for every note file, sorted by id. Subdirectories
// and other files (including the index database) are ignored.
func (f *FS) List() ([]models.NoteMetadata, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	out := make([]models.NoteMetadata, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || !strings.HasSuffix(name, Ext) || strings.HasPrefix(name, ".") {
			continue
		}
		info, err := e.Info()
		if errors.Is(err, fs.ErrNotExist) {
			continue // removed since ReadDir
		}
		if err != nil {
			return nil, fmt.Errorf("storage: list: %w", err)
		}
		data, err := os.ReadFile(filepath.Join(f.root, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("storage: list: %w", err)
		}
		out = append(out, models.NoteMetadata{
			ID:        strings.TrimSuffix(name, Ext),
			Checksum:  checksum.Sum(data),
			UpdatedAt: info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// IDFromPath returns the note id for path p when it names a note file
// directly under root.
func IDFromPath(root, p string) (string, bool) {
	abs, err := filepath.Abs(p)
	if err != nil || filepath.Dir(abs) != root {
		return "", false
	}
	name := filepath.Base(abs)
	if !strings.HasSuffix(name, Ext) || strings.HasPrefix(name, ".") || name == Ext {
		return "", false
	}
	return strings.TrimSuffix(name, Ext), true
}
