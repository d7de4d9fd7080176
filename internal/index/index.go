package index

import (
	"context"

	"github.com/starford/mnemo/internal/models"
)

// NoteIndex defines the interface for note indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with fakes.
type NoteIndex interface {
	UpsertNote(ctx context.Context, row NoteRow) error
	DeleteNote(ctx context.Context, id string) error
	GetNote(ctx context.Context, id string) (*NoteRow, error)
	Search(ctx context.Context, query string, opts SearchOptions) ([]Summary, error)
	List(ctx context.Context, opts ListOptions) ([]Summary, error)
	Related(ctx context.Context, id string) ([]models.Edge, error)
	AllChecksums(ctx context.Context) (map[string]string, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// Verify *DB satisfies NoteIndex at compile time.
var _ NoteIndex = (*DB)(nil)

// SearchOptions narrows a full-text search.
type SearchOptions struct {
	Type  models.NoteType // empty means any type
	Limit int             // <= 0 means DefaultLimit
}

// ListOptions narrows a listing.
type ListOptions struct {
	Type  models.NoteType
	Limit int
}

// DefaultLimit applies when a caller passes no limit.
const DefaultLimit = 20

func limitOrDefault(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	return n
}
