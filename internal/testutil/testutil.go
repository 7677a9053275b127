// Package testutil provides shared test helpers for content trees and index databases.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/quire/internal/index"
	"github.com/starford/quire/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "quire-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestContent creates a temporary content root populated with files
// (slash-separated relative path → body) and returns it with a storage.Provider.
func TestContent(t *testing.T, files map[string]string) (string, storage.Provider) {
	t.Helper()
	root := t.TempDir()
	for rel, body := range files {
		WriteFile(t, root, rel, body)
	}
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return root, store
}

// WriteFile writes body to rel under root, creating parent directories.
func WriteFile(t *testing.T, root, rel, body string) {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}
