// Package noteservice implements the note operations on top of the store and
// the search index. Every mutation is validated, serialized, written to the
// store and then reindexed from the written bytes before it returns.
package noteservice

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/mnemo/internal/apperr"
	"github.com/starford/mnemo/internal/index"
	"github.com/starford/mnemo/internal/models"
	"github.com/starford/mnemo/internal/parser"
	"github.com/starford/mnemo/internal/storage"
)

// Limits applied when a caller does not pass one.
const (
	DefaultSearchLimit = 10
	DefaultListLimit   = 20
	MaxLimit           = 1000
)

// CollisionPolicy decides what Create does when the derived id is taken.
type CollisionPolicy string

const (
	// CollisionReject fails with apperr.ErrIDCollision.
	CollisionReject CollisionPolicy = "reject"
	// CollisionSuffix picks the first free id-2, id-3, ...
	CollisionSuffix CollisionPolicy = "suffix"
)

// Service coordinates storage and index operations. It serializes its
// operations; the store and index it wraps are not safe for concurrent
// mutation.
type Service struct {
	mu sync.Mutex

	store     storage.Provider
	idx       index.NoteIndex
	relations *RelationManager
	logger    *slog.Logger
	now       func() time.Time

	onCollision CollisionPolicy
	searchLimit int
	listLimit   int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithCollisionPolicy sets the id collision policy. The default is CollisionReject.
func WithCollisionPolicy(p CollisionPolicy) Option {
	return func(s *Service) { s.onCollision = p }
}

// WithLimits overrides the default search and list limits. Non-positive
// values keep the defaults.
func WithLimits(search, list int) Option {
	return func(s *Service) {
		if search > 0 {
			s.searchLimit = search
		}
		if list > 0 {
			s.listLimit = list
		}
	}
}

// New creates a note service over store and idx.
func New(store storage.Provider, idx index.NoteIndex, opts ...Option) *Service {
	s := &Service{
		store:       store,
		idx:         idx,
		logger:      slog.New(slog.NewJSONHandler(io.Discard, nil)),
		now:         time.Now,
		onCollision: CollisionReject,
		searchLimit: DefaultSearchLimit,
		listLimit:   DefaultListLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.relations = NewRelationManager(store, idx, s.logger, s.now)
	return s
}

// Relate links two existing notes in both directions. See RelationManager.Relate.
func (s *Service) Relate(ctx context.Context, from, to, relType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.relations.Relate(ctx, from, to, relType)
}

// Search runs a full-text query. A query with no searchable words, an
// unknown type or no match yields an empty slice.
func (s *Service) Search(ctx context.Context, query string, opts index.SearchOptions) ([]index.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	opts.Limit = clampLimit(opts.Limit, s.searchLimit)
	return s.idx.Search(ctx, query, opts)
}

// List returns note summaries, most recently modified first.
func (s *Service) List(ctx context.Context, opts index.ListOptions) ([]index.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	opts.Limit = clampLimit(opts.Limit, s.listLimit)
	return s.idx.List(ctx, opts)
}

// Related returns the indexed relation edges that start or end at id.
func (s *Service) Related(ctx context.Context, id string) ([]models.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok, err := s.store.Exists(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("noteservice: related %s: %w", id, apperr.ErrNotFound)
	}
	return s.idx.Related(ctx, id)
}

// Reindex reconciles the index with the store. With force every file is
// reparsed, not only the changed ones.
func (s *Service) Reindex(ctx context.Context, force bool) (*index.SyncReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return index.Sync(ctx, s.idx, s.store, s.logger, index.SyncOptions{Force: force})
}

func clampLimit(n, def int) int {
	switch {
	case n <= 0:
		return def
	case n > MaxLimit:
		return MaxLimit
	default:
		return n
	}
}

// load reads and parses a note. Parse failures keep their apperr sentinel.
func load(store storage.Provider, id string) (*models.Note, []byte, error) {
	data, err := store.Read(id)
	if err != nil {
		return nil, nil, err
	}
	n, err := parser.Parse(data)
	if err != nil {
		return nil, data, fmt.Errorf("noteservice: parse %s: %w", id, err)
	}
	n.ID = id
	return n, data, nil
}

// save serializes n and writes it to the store.
func save(store storage.Provider, n *models.Note) ([]byte, error) {
	data, err := parser.Serialize(n)
	if err != nil {
		return nil, err
	}
	if err := store.Write(n.ID, data); err != nil {
		return nil, err
	}
	return data, nil
}

// reindex rebuilds the index entry of id from the bytes just written.
func reindex(ctx context.Context, idx index.NoteIndex, id string, data []byte) error {
	if err := index.IndexDocument(ctx, idx, id, data); err != nil {
		return fmt.Errorf("noteservice: reindex %s: %w", id, err)
	}
	return nil
}

// persist is save followed by reindex.
func persist(ctx context.Context, store storage.Provider, idx index.NoteIndex, n *models.Note) error {
	data, err := save(store, n)
	if err != nil {
		return err
	}
	return reindex(ctx, idx, n.ID, data)
}
