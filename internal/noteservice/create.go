package noteservice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/mnemo/internal/apperr"
	"github.com/starford/mnemo/internal/models"
	"github.com/starford/mnemo/internal/noteid"
	"github.com/starford/mnemo/internal/parser"
)

// CreateParams describes a new note.
type CreateParams struct {
	Title   string
	Content string // Markdown body; an observation section in it is parsed
	Type    models.NoteType
	Tags    []string
	// Observations are appended after any found in Content. Each may carry
	// a "[method] " prefix.
	Observations []string
}

// Create writes a new note and indexes it, returning its id.
func (s *Service) Create(ctx context.Context, p CreateParams) (string, error) {
	p.Title = strings.TrimSpace(p.Title)
	if err := p.Validate(); err != nil {
		return "", invalid("create", err)
	}
	base := noteid.Derive(p.Title)
	if base == "" {
		return "", fmt.Errorf("noteservice: create: title %q has no letters or digits: %w", p.Title, apperr.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.freeID(base)
	if err != nil {
		return "", err
	}

	body, observations, trailer := parser.ParseBody(p.Content)
	for _, o := range p.Observations {
		if text := foldLines(o); text != "" {
			observations = append(observations, parser.ParseObservation(text))
		}
	}

	now := s.now().UTC()
	n := &models.Note{
		ID: id,
		Header: models.Header{
			Title:     p.Title,
			Created:   now,
			Modified:  now,
			Type:      p.Type,
			Tags:      p.Tags,
			Relations: models.Relations{},
		},
		Body:         body,
		Observations: observations,
		Trailer:      trailer,
	}
	if err := persist(ctx, s.store, s.idx, n); err != nil {
		return "", err
	}
	s.logger.Debug("note created", slog.String("id", id), slog.Int("observations", len(observations)))
	return id, nil
}

// freeID applies the collision policy to a derived id.
func (s *Service) freeID(base string) (string, error) {
	taken, err := s.store.Exists(base)
	if err != nil {
		return "", err
	}
	if !taken {
		return base, nil
	}
	if s.onCollision != CollisionSuffix {
		return "", fmt.Errorf("noteservice: create: note %q already exists: %w", base, apperr.ErrIDCollision)
	}
	for n := 2; ; n++ {
		id := noteid.WithSuffix(base, n)
		taken, err := s.store.Exists(id)
		if err != nil {
			return "", err
		}
		if !taken {
			s.logger.Debug("id collision resolved", slog.String("derived", base), slog.String("id", id))
			return id, nil
		}
	}
}

// foldLines collapses every whitespace run in s, newlines included, into one
// space.
func foldLines(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
