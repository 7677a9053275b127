package index

import (
	"context"

	"github.com/starford/quire/internal/models"
)

// DocumentIndex defines the interface for document indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type DocumentIndex interface {
	UpsertDocument(row DocumentRow, body string, links []models.Link) error
	DeleteDocument(path string) error
	GetChecksum(path string) (string, error)
	GetDocument(slug string) (*DocumentRow, error)
	ListDocuments(kind, tag string, limit, offset int) ([]DocumentRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	Backlinks(target string) ([]Backlink, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies DocumentIndex at compile time.
var _ DocumentIndex = (*DB)(nil)

// Loader is the part of the content loader the index drives: it resolves a
// reference into a rendered document and drops stale cache entries.
type Loader interface {
	Load(ctx context.Context, ref string) (*models.ResolvedDocument, error)
	Invalidate(ref string) []string
}
