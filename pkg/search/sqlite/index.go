// Package sqlite implements the search index as a SQLite FTS5 table.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	// SQLite driver registration, pure Go.
	_ "modernc.org/sqlite"

	"github.com/ryanlack616/howell-brain/pkg/search"
)

const schema = `
CREATE VIRTUAL TABLE IF NOT EXISTS documents USING fts5(
	id UNINDEXED,
	kind UNINDEXED,
	source UNINDEXED,
	tier UNINDEXED,
	title,
	body,
	tokenize = 'unicode61'
);`

// Index is a search.Index backed by a SQLite database file.
type Index struct {
	db *sql.DB
}

var _ search.Index = (*Index)(nil)

// Open opens or creates the index database at path. Use ":memory:" for a
// throwaway index.
func Open(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening search index: %w", err)
	}
	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("search index pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating search index schema: %w", err)
	}

	return &Index{db: db}, nil
}

// Rebuild replaces every document in one transaction.
func (i *Index) Rebuild(ctx context.Context, docs []search.Document) error {
	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning index rebuild: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		return fmt.Errorf("clearing search index: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO documents (id, kind, source, tier, title, body) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing index insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range docs {
		if _, err := stmt.ExecContext(ctx, d.ID, string(d.Kind), d.Source, d.Tier, d.Title, d.Body); err != nil {
			return fmt.Errorf("indexing %s %s: %w", d.Kind, d.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing index rebuild: %w", err)
	}
	return nil
}

// Search runs an FTS5 prefix query for every term, ranked by bm25.
func (i *Index) Search(ctx context.Context, query string, limit int) ([]search.Hit, error) {
	match := matchExpr(query)
	if match == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := i.db.QueryContext(ctx, `
		SELECT id, kind, source, tier, title, body, bm25(documents, 0, 0, 0, 0, 2.0, 1.0)
		FROM documents
		WHERE documents MATCH ?
		ORDER BY bm25(documents, 0, 0, 0, 0, 2.0, 1.0)
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}
	defer rows.Close()

	var hits []search.Hit
	for rows.Next() {
		var (
			h    search.Hit
			kind string
			rank float64
		)
		if err := rows.Scan(&h.ID, &kind, &h.Source, &h.Tier, &h.Title, &h.Body, &rank); err != nil {
			return nil, fmt.Errorf("reading search hit: %w", err)
		}
		h.Kind = search.Kind(kind)
		// bm25 is lower-is-better
		h.Score = -rank
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search hits: %w", err)
	}
	return hits, nil
}

// Close closes the database.
func (i *Index) Close() error {
	return i.db.Close()
}

// matchExpr quotes every term and makes it a prefix query so user input
// never reaches the FTS5 query parser as syntax.
// "glaze cone" → `"glaze"* "cone"*`
func matchExpr(query string) string {
	terms := search.Terms(query)
	for n, t := range terms {
		terms[n] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"*`
	}
	return strings.Join(terms, " ")
}
