package noteservice

import (
	"context"
	"log/slog"
	"strings"

	"github.com/starford/mnemo/internal/models"
)

// AppendObservation adds an observation to the end of a note's log and bumps
// its modification time. Whitespace runs in text, newlines included, are
// folded to single spaces. method is optional and may not contain brackets
// or line breaks.
func (s *Service) AppendObservation(ctx context.Context, id, text, method string) error {
	p := observeParams{ID: id, Text: foldLines(text), Method: strings.TrimSpace(method)}
	if err := p.Validate(); err != nil {
		return invalid("append observation", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n, _, err := load(s.store, id)
	if err != nil {
		return err
	}
	n.Observations = append(n.Observations, models.Observation{Method: p.Method, Text: p.Text})
	n.Header.Touch(s.now().UTC())

	if err := persist(ctx, s.store, s.idx, n); err != nil {
		return err
	}
	s.logger.Debug("observation added", slog.String("id", id), slog.Int("count", len(n.Observations)))
	return nil
}
