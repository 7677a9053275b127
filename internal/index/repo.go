package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/models"
)

// DocumentRow represents a row in the documents table.
type DocumentRow struct {
	Path      string    `json:"path"`
	Slug      string    `json:"slug"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Checksum  string    `json:"checksum"`
	Tags      []string  `json:"tags"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string `json:"path"`
	Slug    string `json:"slug"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Backlink is an incoming edge to a document.
type Backlink struct {
	Source string `json:"source"`
	Title  string `json:"title"`
	Type   string `json:"type"`
}

// UpsertDocument inserts or replaces a document, its FTS entry, and its
// outgoing links within a transaction.
func (db *DB) UpsertDocument(row DocumentRow, body string, links []models.Link) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if row.Tags == nil {
		row.Tags = []string{}
	}
	tagsJSON, _ := json.Marshal(row.Tags)
	if row.Kind == "" {
		row.Kind = string(models.KindTopic)
	}

	_, err = tx.Exec(`
		INSERT INTO documents (path, slug, kind, title, checksum, tags, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			slug       = excluded.slug,
			kind       = excluded.kind,
			title      = excluded.title,
			checksum   = excluded.checksum,
			tags       = excluded.tags,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, row.Path, row.Slug, row.Kind, row.Title, row.Checksum, string(tagsJSON), body, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert document: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, row.Path, row.Title, body, row.Tags); err != nil {
		return err
	}

	_, _ = tx.Exec(`DELETE FROM links WHERE source = ?`, row.Slug)
	if len(links) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (source, target, type) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, l := range links {
			if _, err := stmt.Exec(row.Slug, l.Target, l.Type); err != nil {
				return fmt.Errorf("index: insert link: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteDocument removes the document stored at path, its FTS entry, and its
// outgoing links.
func (db *DB) DeleteDocument(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var s string
	if err := tx.QueryRow(`SELECT slug FROM documents WHERE path = ?`, path).Scan(&s); err == nil {
		_, _ = tx.Exec(`DELETE FROM links WHERE source = ?`, s)
	}
	ftsDelete(tx, path)
	_, _ = tx.Exec(`DELETE FROM documents WHERE path = ?`, path)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a path, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM documents WHERE path = ?`, path).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// AllChecksums returns the stored checksum of every indexed path.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

const documentColumns = `path, slug, kind, title, checksum, tags, updated_at`

func scanDocument(scan func(dest ...any) error) (DocumentRow, error) {
	var (
		row  DocumentRow
		tags string
	)
	if err := scan(&row.Path, &row.Slug, &row.Kind, &row.Title, &row.Checksum, &tags, &row.UpdatedAt); err != nil {
		return row, err
	}
	_ = json.Unmarshal([]byte(tags), &row.Tags)
	return row, nil
}

// GetDocument returns the row for slug.
func (db *DB) GetDocument(slug string) (*DocumentRow, error) {
	row, err := scanDocument(db.conn.QueryRow(
		`SELECT `+documentColumns+` FROM documents WHERE slug = ? ORDER BY path LIMIT 1`, slug).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: get %s: %w", slug, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get %s: %w", slug, err)
	}
	return &row, nil
}

// ListDocuments returns one page of documents ordered by slug, optionally
// filtered by kind and tag, together with the total match count.
func (db *DB) ListDocuments(kind, tag string, limit, offset int) ([]DocumentRow, int, error) {
	if limit <= 0 {
		limit = 50
	}
	var (
		where []string
		args  []any
	)
	if kind != "" {
		where = append(where, "kind = ?")
		args = append(args, kind)
	}
	if tag != "" {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(documents.tags) WHERE json_each.value = ?)")
		args = append(args, tag)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM documents`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count documents: %w", err)
	}

	rows, err := db.conn.Query(`SELECT `+documentColumns+` FROM documents`+clause+` ORDER BY slug LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list documents: %w", err)
	}
	defer rows.Close()

	var out []DocumentRow
	for rows.Next() {
		row, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, row)
	}
	return out, total, rows.Err()
}

// Backlinks returns every document linking to or embedding target.
func (db *DB) Backlinks(target string) ([]Backlink, error) {
	rows, err := db.conn.Query(`
		SELECT l.source, COALESCE(d.title, ''), l.type
		FROM links l
		LEFT JOIN documents d ON d.slug = l.source
		WHERE l.target = ?
		GROUP BY l.source, l.type
		ORDER BY l.source, l.type
	`, target)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	defer rows.Close()

	var out []Backlink
	for rows.Next() {
		var b Backlink
		if err := rows.Scan(&b.Source, &b.Title, &b.Type); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
