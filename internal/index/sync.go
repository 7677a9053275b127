package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/doctree"
	"github.com/starford/quire/internal/storage"
)

// errShadowed marks a file whose slug resolves to a higher-priority file.
var errShadowed = errors.New("index: shadowed by another file")

// Sync walks the content root and brings the index up to date:
//   - new/changed files are loaded through the loader and upserted
//   - files removed from disk are deleted from the index
func Sync(ctx context.Context, db *DB, store storage.Provider, loader Loader, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		if err := ctx.Err(); err != nil {
			return err
		}
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		loader.Invalidate(m.Path)
		switch err := indexFile(ctx, db, loader, m.Path, m.UpdatedAt); {
		case errors.Is(err, errShadowed):
			logger.Debug("sync: shadowed", slog.String("path", m.Path))
		case err != nil:
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		default:
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			loader.Invalidate(p)
			if err := db.DeleteDocument(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// indexFile loads the document stored at rel and upserts it into the DB.
func indexFile(ctx context.Context, db *DB, loader Loader, rel string, updated time.Time) error {
	doc, err := loader.Load(ctx, rel)
	if err != nil {
		return err
	}
	if doc.Path != rel {
		return fmt.Errorf("%w: %s resolves to %s", errShadowed, rel, doc.Path)
	}
	if updated.IsZero() {
		updated = time.Now()
	}
	var body string
	if doc.Tree != nil {
		body = doctree.PlainText(doc.Tree)
	}
	row := DocumentRow{
		Path:      doc.Path,
		Slug:      doc.Slug,
		Kind:      string(doc.Metadata.Kind()),
		Title:     doc.Title(),
		Checksum:  doc.Checksum,
		Tags:      doc.Tags,
		UpdatedAt: updated,
	}
	return db.UpsertDocument(row, body, doc.Links)
}

// reindexSlugs refreshes the rows of documents whose cached rendering was
// evicted because something they embed changed.
func reindexSlugs(ctx context.Context, db *DB, loader Loader, slugs []string, logger *slog.Logger) {
	for _, s := range slugs {
		row, err := db.GetDocument(s)
		if err != nil {
			continue
		}
		if err := indexFile(ctx, db, loader, row.Path, time.Now()); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			logger.Warn("reindex failed", slog.String("slug", s), slog.String("error", err.Error()))
		}
	}
}

func isSource(name string) bool {
	return slices.Contains(storage.DefaultExtensions, strings.ToLower(path.Ext(name)))
}
