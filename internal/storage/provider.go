// Package storage defines the content file-system abstraction.
package storage

import (
	"errors"
	"io/fs"

	"github.com/starford/quire/internal/models"
)

// ErrPathEscapes is returned for paths that resolve outside the content root.
var ErrPathEscapes = errors.New("storage: path escapes content root")

// Provider is the interface for content file operations. All paths are
// slash-separated and relative to the content root.
type Provider interface {
	// Root returns the absolute content root.
	Root() string
	// List returns metadata for every source file under dir.
	List(dir string) ([]models.SourceInfo, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Stat describes the file at path.
	Stat(path string) (fs.FileInfo, error)
	// Walk visits dir recursively in lexical order, passing relative paths to fn.
	Walk(dir string, fn fs.WalkDirFunc) error
	// Write atomically writes content to path.
	Write(path string, content []byte) error
}
