package index

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/starford/mnemo/internal/checksum"
	"github.com/starford/mnemo/internal/storage"
)

// SyncOptions controls a reconciliation pass.
type SyncOptions struct {
	// Force re-indexes files whose checksum matches the index.
	Force bool
}

// SyncReport summarizes a reconciliation pass. Ids are listed in store order.
type SyncReport struct {
	Indexed   []string          `json:"indexed"`
	New       []string          `json:"new,omitempty"` // subset of Indexed absent from the index before
	Unchanged int               `json:"unchanged"`
	Removed   []string          `json:"removed"`
	Failed    map[string]string `json:"failed,omitempty"` // id -> reason
}

// Sync walks the store and brings the index up to date:
//   - new and changed files are parsed and upserted
//   - files that fail to parse keep their previous index entry and are
//     reported in Failed
//   - index rows whose file is gone are deleted
func Sync(ctx context.Context, idx NoteIndex, store storage.Provider, logger *slog.Logger, opts SyncOptions) (*SyncReport, error) {
	metas, err := store.List()
	if err != nil {
		return nil, fmt.Errorf("index: sync: %w", err)
	}
	checksums, err := idx.AllChecksums(ctx)
	if err != nil {
		return nil, fmt.Errorf("index: sync: %w", err)
	}

	report := &SyncReport{Indexed: []string{}, Removed: []string{}, Failed: map[string]string{}}
	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		disk[m.ID] = struct{}{}

		if !opts.Force && checksums[m.ID] == m.Checksum {
			report.Unchanged++
			continue
		}

		data, err := store.Read(m.ID)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("id", m.ID), slog.String("error", err.Error()))
			report.Failed[m.ID] = err.Error()
			continue
		}
		if err := IndexDocument(ctx, idx, m.ID, data); err != nil {
			logger.Warn("sync: index failed", slog.String("id", m.ID), slog.String("error", err.Error()))
			report.Failed[m.ID] = err.Error()
			continue
		}
		logger.Debug("sync: indexed", slog.String("id", m.ID), slog.String("checksum", checksum.Short(m.Checksum)))
		report.Indexed = append(report.Indexed, m.ID)
		if _, ok := checksums[m.ID]; !ok {
			report.New = append(report.New, m.ID)
		}
	}

	for id := range checksums {
		if _, ok := disk[id]; ok {
			continue
		}
		if err := idx.DeleteNote(ctx, id); err != nil {
			logger.Warn("sync: delete failed", slog.String("id", id), slog.String("error", err.Error()))
			report.Failed[id] = err.Error()
			continue
		}
		logger.Debug("sync: removed stale", slog.String("id", id))
		report.Removed = append(report.Removed, id)
	}
	slices.Sort(report.Removed)

	logger.Info("sync: done",
		slog.Int("indexed", len(report.Indexed)),
		slog.Int("unchanged", report.Unchanged),
		slog.Int("removed", len(report.Removed)),
		slog.Int("failed", len(report.Failed)))
	return report, nil
}
