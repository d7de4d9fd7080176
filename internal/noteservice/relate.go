package noteservice

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/mnemo/internal/apperr"
	"github.com/starford/mnemo/internal/index"
	"github.com/starford/mnemo/internal/models"
	"github.com/starford/mnemo/internal/storage"
)

// RelationManager maintains the bidirectional relation graph. It is not safe
// for concurrent use; Service serializes calls to it.
type RelationManager struct {
	store  storage.Provider
	idx    index.NoteIndex
	logger *slog.Logger
	now    func() time.Time
}

// NewRelationManager creates a relation manager.
func NewRelationManager(store storage.Provider, idx index.NoteIndex, logger *slog.Logger, now func() time.Time) *RelationManager {
	return &RelationManager{store: store, idx: idx, logger: logger, now: now}
}

// Relate records to under relType in from's header and from under
// relType+"-reverse" in to's header, rewriting and reindexing each note.
//
// Both notes are read and parsed before anything is written, so a missing or
// malformed endpoint leaves both files untouched. Edges already present are
// not rewritten, which makes the call idempotent and lets a second call
// complete an asymmetric pair. If the reverse write fails after the forward
// write, the forward note is restored and a *apperr.PartialRelationError is
// returned. Both files always end up carrying their edge, or neither does,
// unless that rollback itself fails.
func (m *RelationManager) Relate(ctx context.Context, from, to, relType string) error {
	p := relateParams{From: strings.TrimSpace(from), To: strings.TrimSpace(to), Type: strings.TrimSpace(relType)}
	if err := p.Validate(); err != nil {
		return invalid("relate", err)
	}
	from, to, relType = p.From, p.To, p.Type
	reverse := relType + models.ReverseSuffix

	fromNote, fromData, err := load(m.store, from)
	if err != nil {
		return err
	}
	toNote, _, err := load(m.store, to)
	if err != nil {
		return err
	}
	now := m.now().UTC()

	if from == to {
		added := fromNote.Header.Relations.Add(relType, to)
		added = fromNote.Header.Relations.Add(reverse, from) || added
		if !added {
			return nil
		}
		fromNote.Header.Touch(now)
		return persist(ctx, m.store, m.idx, fromNote)
	}

	// Index failures are reported only after the reverse edge is on disk.
	var indexErr error
	forward := fromNote.Header.Relations.Add(relType, to)
	if forward {
		fromNote.Header.Touch(now)
		data, err := save(m.store, fromNote)
		if err != nil {
			return err
		}
		indexErr = reindex(ctx, m.idx, from, data)
	}

	if !toNote.Header.Relations.Add(reverse, from) {
		return m.done(from, to, relType, indexErr)
	}
	toNote.Header.Touch(now)
	data, err := save(m.store, toNote)
	if err != nil {
		if !forward {
			return err
		}
		perr := &apperr.PartialRelationError{From: from, To: to, Type: relType, Err: err}
		perr.RolledBack = m.restore(ctx, from, fromData)
		m.logger.Warn("relation: reverse edge failed",
			slog.String("from", from), slog.String("to", to), slog.String("type", relType),
			slog.Bool("rolled_back", perr.RolledBack), slog.String("error", err.Error()))
		return perr
	}
	return m.done(from, to, relType, errors.Join(indexErr, reindex(ctx, m.idx, to, data)))
}

// done finishes a relation whose edges are both on disk. indexErr reports
// index rows left stale; the next sync repairs them.
func (m *RelationManager) done(from, to, relType string, indexErr error) error {
	if indexErr != nil {
		m.logger.Warn("relation: index stale", slog.String("from", from), slog.String("to", to),
			slog.String("error", indexErr.Error()))
		return indexErr
	}
	m.logger.Debug("relation created", slog.String("from", from), slog.String("to", to), slog.String("type", relType))
	return nil
}

// restore writes back a note's previous bytes and reindexes them.
func (m *RelationManager) restore(ctx context.Context, id string, data []byte) bool {
	if err := m.store.Write(id, data); err != nil {
		m.logger.Error("relation: rollback write failed", slog.String("id", id), slog.String("error", err.Error()))
		return false
	}
	if err := reindex(ctx, m.idx, id, data); err != nil {
		m.logger.Error("relation: rollback reindex failed", slog.String("id", id), slog.String("error", err.Error()))
		return false
	}
	return true
}
