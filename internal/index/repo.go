package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/starford/mnemo/internal/apperr"
	"github.com/starford/mnemo/internal/models"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// NoteRow represents a row in the notes table.
type NoteRow struct {
	ID           string
	Title        string
	Type         models.NoteType
	Checksum     string
	Tags         []string
	Created      time.Time
	Modified     time.Time
	Observations []string // literal form, in order
	Relations    models.Relations
	Body         string // everything below the header
}

// Summary is the lightweight view returned by Search and List.
type Summary struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Type     models.NoteType `json:"type"`
	Tags     []string        `json:"tags"`
	Created  time.Time       `json:"created"`
	Modified time.Time       `json:"modified"`
}

// UpsertNote replaces the structured row, full-text entry and relation edges
// of a note within one transaction.
func (db *DB) UpsertNote(ctx context.Context, n NoteRow) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tags := nonNil(n.Tags)
	tagsJSON, _ := json.Marshal(tags)
	obsJSON, _ := json.Marshal(nonNil(n.Observations))
	relations := n.Relations
	if relations == nil {
		relations = models.Relations{}
	}
	relJSON, _ := json.Marshal(relations)
	noteType := n.Type
	if noteType == "" {
		noteType = models.TypeGeneral
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO notes (id, title, type, checksum, tags, created, modified, observations, relations, body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title        = excluded.title,
			type         = excluded.type,
			checksum     = excluded.checksum,
			tags         = excluded.tags,
			created      = excluded.created,
			modified     = excluded.modified,
			observations = excluded.observations,
			relations    = excluded.relations,
			body         = excluded.body
	`, n.ID, n.Title, string(noteType), n.Checksum, string(tagsJSON),
		formatTime(n.Created), formatTime(n.Modified), string(obsJSON), string(relJSON), n.Body)
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(ctx, tx, n.ID, n.Title, n.Body, tags, n.Observations); err != nil {
		return err
	}

	// Replace edges: delete old then bulk insert.
	if _, err := tx.ExecContext(ctx, `DELETE FROM relations WHERE source = ?`, n.ID); err != nil {
		return fmt.Errorf("index: clear relations: %w", err)
	}
	if len(relations) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO relations (source, target, type) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare relation insert: %w", err)
		}
		defer stmt.Close()
		for relType, targets := range relations {
			for _, target := range targets {
				if _, err := stmt.ExecContext(ctx, n.ID, target, relType); err != nil {
					return fmt.Errorf("index: insert relation: %w", err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index: commit: %w", err)
	}
	return nil
}

// DeleteNote removes a note, its FTS entry, and outgoing edges.
func (db *DB) DeleteNote(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := ftsDelete(ctx, tx, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM relations WHERE source = ?`, id); err != nil {
		return fmt.Errorf("index: delete relations: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("index: delete note: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index: commit: %w", err)
	}
	return nil
}

// GetNote returns the full indexed row for id. A missing row wraps
// apperr.ErrNotFound.
func (db *DB) GetNote(ctx context.Context, id string) (*NoteRow, error) {
	var r NoteRow
	var noteType, tags, created, modified, observations, relations string
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, title, type, checksum, tags, created, modified, observations, relations, body
		FROM notes WHERE id = ?
	`, id).Scan(&r.ID, &r.Title, &noteType, &r.Checksum, &tags, &created, &modified, &observations, &relations, &r.Body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: get note %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get note: %w", err)
	}
	r.Type = models.NoteType(noteType)
	r.Created, r.Modified = parseTime(created), parseTime(modified)
	_ = json.Unmarshal([]byte(tags), &r.Tags)
	_ = json.Unmarshal([]byte(observations), &r.Observations)
	_ = json.Unmarshal([]byte(relations), &r.Relations)
	r.Tags = nonNil(r.Tags)
	r.Observations = nonNil(r.Observations)
	if r.Relations == nil {
		r.Relations = models.Relations{}
	}
	return &r, nil
}

// List returns note summaries, most recently modified first.
func (db *DB) List(ctx context.Context, opts ListOptions) ([]Summary, error) {
	q := `SELECT id, title, type, tags, created, modified FROM notes`
	var args []any
	if opts.Type != "" {
		q += ` WHERE type = ?`
		args = append(args, string(opts.Type))
	}
	q += ` ORDER BY modified DESC, id LIMIT ?`
	args = append(args, limitOrDefault(opts.Limit))

	rows, err := db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("index: list: %w", err)
	}
	return scanSummaries(rows)
}

// Related returns every edge that starts or ends at id.
func (db *DB) Related(ctx context.Context, id string) ([]models.Edge, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT source, target, type FROM relations
		WHERE source = ? OR target = ?
		ORDER BY source, type, target
	`, id, id)
	if err != nil {
		return nil, fmt.Errorf("index: related: %w", err)
	}
	defer rows.Close()

	out := []models.Edge{}
	for rows.Next() {
		var e models.Edge
		if err := rows.Scan(&e.Source, &e.Target, &e.Type); err != nil {
			return nil, fmt.Errorf("index: related: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// AllChecksums returns the stored checksum of every indexed note by id.
func (db *DB) AllChecksums(ctx context.Context) (map[string]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, fmt.Errorf("index: all checksums: %w", err)
		}
		out[id] = cs
	}
	return out, rows.Err()
}

// Count returns the number of indexed notes.
func (db *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM notes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("index: count: %w", err)
	}
	return n, nil
}

// scanSummaries reads id, title, type, tags, created, modified rows and
// closes rows. The result is never nil.
func scanSummaries(rows *sql.Rows) ([]Summary, error) {
	defer rows.Close()
	out := []Summary{}
	for rows.Next() {
		var s Summary
		var noteType, tags, created, modified string
		if err := rows.Scan(&s.ID, &s.Title, &noteType, &tags, &created, &modified); err != nil {
			return nil, fmt.Errorf("index: scan summary: %w", err)
		}
		s.Type = models.NoteType(noteType)
		s.Created, s.Modified = parseTime(created), parseTime(modified)
		_ = json.Unmarshal([]byte(tags), &s.Tags)
		s.Tags = nonNil(s.Tags)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Edges flattens a relations map into sorted edges originating at source.
func Edges(source string, r models.Relations) []models.Edge {
	var out []models.Edge
	for relType, targets := range r {
		for _, t := range targets {
			out = append(out, models.Edge{Source: source, Target: t, Type: relType})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Target < out[j].Target
	})
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
