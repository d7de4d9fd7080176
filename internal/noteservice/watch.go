package noteservice

import (
	"context"
	"fmt"

	"github.com/starford/mnemo/internal/index"
)

var _ index.Indexer = (*Service)(nil)

// Refresh indexes a note file changed outside the service. The read and the
// index write happen under the service lock, so an edit made through the
// service cannot be overwritten with older bytes.
func (s *Service) Refresh(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.store.Read(id)
	if err != nil {
		return err
	}
	return reindex(ctx, s.idx, id, data)
}

// Forget drops a removed note from the index. A file that reappeared
// before the lock was taken is reindexed instead.
func (s *Service) Forget(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok, err := s.store.Exists(id)
	if err != nil {
		return err
	}
	if ok {
		data, err := s.store.Read(id)
		if err != nil {
			return err
		}
		return reindex(ctx, s.idx, id, data)
	}
	if err := s.idx.DeleteNote(ctx, id); err != nil {
		return fmt.Errorf("noteservice: forget %s: %w", id, err)
	}
	return nil
}

// Reconcile is an unforced Reindex.
func (s *Service) Reconcile(ctx context.Context) (*index.SyncReport, error) {
	return s.Reindex(ctx, false)
}
