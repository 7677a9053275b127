package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/starford/quire/internal/checksum"
	"github.com/starford/quire/internal/models"
)

// DefaultExtensions are the source extensions recognised by List.
var DefaultExtensions = []string{".md", ".markdown", ".mdx"}

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to content directory
	exts []string
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist. exts overrides DefaultExtensions.
func NewFS(root string, exts ...string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	return &FS{root: abs, exts: exts}, nil
}

// Root returns the absolute content root.
func (f *FS) Root() string { return f.root }

// safePath resolves a relative path against the content root and rejects
// any result that escapes it (directory traversal).
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, rel)
	}
	abs := filepath.Join(f.root, cleaned)
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, rel)
	}
	return abs, nil
}

func (f *FS) isSource(name string) bool {
	return slices.Contains(f.exts, strings.ToLower(filepath.Ext(name)))
}

// List walks dir and returns metadata for every source file.
func (f *FS) List(dir string) ([]models.SourceInfo, error) {
	var out []models.SourceInfo
	err := f.Walk(dir, func(rel string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !f.isSource(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		data, err := f.Read(rel)
		if err != nil {
			return err
		}
		out = append(out, models.SourceInfo{
			Path:      rel,
			Checksum:  checksum.Sum(data),
			UpdatedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	return out, nil
}

// Read returns the raw bytes of a content file.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Stat describes a content file.
func (f *FS) Stat(path string) (fs.FileInfo, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat %s: %w", path, err)
	}
	return info, nil
}

// Walk visits dir in lexical order. Paths handed to fn are slash-separated
// and relative to the root; hidden directories are skipped.
func (f *FS) Walk(dir string, fn fs.WalkDirFunc) error {
	base, err := f.safePath(dir)
	if err != nil {
		return err
	}
	return filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		rel, relErr := filepath.Rel(f.root, p)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if d != nil && d.IsDir() && p != base && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fn(rel, d, walkErr)
	})
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".quire-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}
