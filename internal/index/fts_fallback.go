//go:build !sqlite_fts5

package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/starford/mnemo/internal/models"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search scans the notes table.
	return nil
}

func ftsUpsert(_ context.Context, _ *sql.Tx, _, _, _ string, _, _ []string) error {
	// Title, body and tags already live in the notes table.
	return nil
}

func ftsDelete(_ context.Context, _ *sql.Tx, _ string) error { return nil }

// Search is the search used when FTS5 is not compiled in. LIKE narrows the
// candidates; every term must then occur as a whole token in the title, tags
// or body. Results are ranked by matchScore, then by modification time.
func (db *DB) Search(ctx context.Context, query string, opts SearchOptions) ([]Summary, error) {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return []Summary{}, nil
	}

	var (
		where []string
		args  []any
	)
	for _, t := range terms {
		if !isASCII(t) {
			continue
		}
		where = append(where, `(title LIKE ? ESCAPE '\' OR body LIKE ? ESCAPE '\' OR tags LIKE ? ESCAPE '\')`)
		p := likePattern(t)
		args = append(args, p, p, p)
	}
	if opts.Type != "" {
		where = append(where, `type = ?`)
		args = append(args, string(opts.Type))
	}
	q := `SELECT id, title, type, tags, created, modified, body FROM notes`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}

	rows, err := db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	type hit struct {
		Summary
		score float64
	}
	var hits []hit
	for rows.Next() {
		var h hit
		var noteType, tags, created, modified, body string
		if err := rows.Scan(&h.ID, &h.Title, &noteType, &tags, &created, &modified, &body); err != nil {
			return nil, fmt.Errorf("index: scan search hit: %w", err)
		}
		_ = json.Unmarshal([]byte(tags), &h.Tags)
		score, ok := matchScore(terms, h.Title, h.Tags, body)
		if !ok {
			continue
		}
		h.score = score
		h.Type = models.NoteType(noteType)
		h.Created, h.Modified = parseTime(created), parseTime(modified)
		h.Tags = nonNil(h.Tags)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}

	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if !a.Modified.Equal(b.Modified) {
			return a.Modified.After(b.Modified)
		}
		return a.ID < b.ID
	})

	limit := limitOrDefault(opts.Limit)
	out := make([]Summary, 0, min(limit, len(hits)))
	for _, h := range hits {
		if len(out) == limit {
			break
		}
		out = append(out, h.Summary)
	}
	return out, nil
}
