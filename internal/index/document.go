package index

import (
	"context"

	"github.com/starford/mnemo/internal/checksum"
	"github.com/starford/mnemo/internal/models"
	"github.com/starford/mnemo/internal/parser"
)

// IndexDocument parses a note file and upserts every projection of it.
// Parse failures are returned unchanged so callers can tell malformed files
// (apperr.ErrMalformedDocument, apperr.ErrMalformedHeader) from I/O errors.
func IndexDocument(ctx context.Context, idx NoteIndex, id string, data []byte) error {
	n, err := parser.Parse(data)
	if err != nil {
		return err
	}
	n.ID = id
	return idx.UpsertNote(ctx, RowFromNote(n, checksum.Sum(data)))
}

// RowFromNote builds the index row for a parsed note.
func RowFromNote(n *models.Note, sum string) NoteRow {
	return NoteRow{
		ID:           n.ID,
		Title:        n.Header.Title,
		Type:         n.Header.Type,
		Checksum:     sum,
		Tags:         n.Header.Tags,
		Created:      n.Header.Created,
		Modified:     n.Header.Modified,
		Observations: n.ObservationStrings(),
		Relations:    n.Header.Relations,
		Body:         parser.BodyText(n),
	}
}
