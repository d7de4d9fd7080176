package index

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/mnemo/internal/apperr"
	"github.com/starford/mnemo/internal/storage"
)

// Indexer applies the file changes Watch observes. Implementations must
// serialize these calls with any other writes they make to the index.
type Indexer interface {
	// Refresh reads the note file and indexes it. A missing file wraps
	// apperr.ErrNotFound.
	Refresh(ctx context.Context, id string) error
	// Forget drops a note whose file was removed.
	Forget(ctx context.Context, id string) error
	// Reconcile runs a Sync pass.
	Reconcile(ctx context.Context) (*SyncReport, error)
}

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, id string)

// reconcileDelay debounces reconciliation after renames.
const reconcileDelay = 200 * time.Millisecond

// Watch starts an fsnotify watcher on root and hands note file changes to
// target until ctx is cancelled. It calls cb (if non-nil) after each index
// mutation.
//
// Rename events trigger a debounced reconciliation pass that removes index
// rows whose files no longer exist and indexes files that appeared.
func Watch(ctx context.Context, target Indexer, root string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(root); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", root))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time
	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(ctx, target, logger, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			id, isNote := storage.IDFromPath(root, ev.Name)
			if !isNote {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				if err := target.Refresh(ctx, id); err != nil {
					if errors.Is(err, apperr.ErrNotFound) {
						// Atomic replaces can race a create with a rename.
						scheduleReconcile()
						continue
					}
					logger.Warn("watcher: index failed", slog.String("id", id), slog.String("error", err.Error()))
					continue
				}
				kind := "updated"
				if ev.Op&fsnotify.Create != 0 {
					kind = "created"
				}
				logger.Debug("watcher: indexed", slog.String("id", id), slog.String("op", kind))
				if cb != nil {
					cb(kind, id)
				}

			case ev.Op&fsnotify.Remove != 0:
				if delErr := target.Forget(ctx, id); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("id", id), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: deleted", slog.String("id", id))
				if cb != nil {
					cb("deleted", id)
				}

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify reports Rename on the old path only; the new
				// path arrives as Create if it stays in the directory.
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile runs a Sync pass through target and reports its changes
// through cb.
func reconcile(ctx context.Context, target Indexer, logger *slog.Logger, cb EventCallback) {
	report, err := target.Reconcile(ctx)
	if err != nil {
		logger.Warn("reconcile: sync failed", slog.String("error", err.Error()))
		return
	}
	if cb == nil {
		return
	}
	for _, id := range report.Indexed {
		if slices.Contains(report.New, id) {
			cb("created", id)
		} else {
			cb("updated", id)
		}
	}
	for _, id := range report.Removed {
		cb("deleted", id)
	}
}
