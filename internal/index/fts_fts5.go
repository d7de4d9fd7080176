//go:build sqlite_fts5

package index

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
			id UNINDEXED,
			title,
			body,
			tags,
			observations,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(ctx context.Context, tx *sql.Tx, id, title, body string, tags, observations []string) error {
	if err := ftsDelete(ctx, tx, id); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO notes_fts (id, title, body, tags, observations) VALUES (?, ?, ?, ?, ?)`,
		id, title, body, strings.Join(tags, " "), strings.Join(observations, " "))
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(ctx context.Context, tx *sql.Tx, id string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM notes_fts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("index: delete fts: %w", err)
	}
	return nil
}

// Search performs an FTS5 full-text search, best matches first. A query with
// no searchable terms yields an empty result.
func (db *DB) Search(ctx context.Context, query string, opts SearchOptions) ([]Summary, error) {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return []Summary{}, nil
	}

	q := `
		SELECT n.id, n.title, n.type, n.tags, n.created, n.modified
		FROM notes_fts fts
		JOIN notes n ON n.id = fts.id
		WHERE notes_fts MATCH ?
	`
	args := []any{ftsQuery(terms)}
	if opts.Type != "" {
		q += ` AND n.type = ?`
		args = append(args, string(opts.Type))
	}
	q += ` ORDER BY fts.rank, n.id LIMIT ?`
	args = append(args, limitOrDefault(opts.Limit))

	rows, err := db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	return scanSummaries(rows)
}
