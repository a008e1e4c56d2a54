// Package activity is the append-only Activity Log.
package activity

import (
	"context"
	"time"

	"github.com/docuindex/engine/internal/app/domain"
	apperrors "github.com/docuindex/engine/internal/app/errors"
	"github.com/docuindex/engine/internal/app/storage"
)

// Service is the Activity Log.
type Service struct {
	store storage.ActivityStore
	now   func() time.Time
}

func New(store storage.ActivityStore) *Service {
	return &Service{store: store, now: time.Now}
}

// RecordParams carries the fields of one append-only entry.
type RecordParams struct {
	Action        string
	ClientID      *string
	UserID        *string
	Details       map[string]interface{}
	ExecutorScope *domain.ExecutionScope
	ExecutorID    *string
	RootID        *string
	RunID         *string
}

// Record appends one activity entry.
func (s *Service) Record(ctx context.Context, p RecordParams) (domain.ActivityLogEntry, error) {
	entry := domain.ActivityLogEntry{
		Timestamp:     s.now().UTC(),
		Action:        p.Action,
		ClientID:      p.ClientID,
		UserID:        p.UserID,
		Details:       p.Details,
		ExecutorScope: p.ExecutorScope,
		ExecutorID:    p.ExecutorID,
		RootID:        p.RootID,
		RunID:         p.RunID,
	}
	inserted, err := s.store.Insert(ctx, entry)
	if err != nil {
		return domain.ActivityLogEntry{}, apperrors.Wrap(apperrors.DatabaseQueryError, "record activity", err)
	}
	return inserted, nil
}

// List returns entries most-recent-first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]domain.ActivityLogEntry, error) {
	return s.store.List(ctx, limit, offset)
}

// ApplyRetention hard-deletes entries older than retentionDays.
func (s *Service) ApplyRetention(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := s.now().UTC().AddDate(0, 0, -retentionDays)
	return s.store.DeleteOlderThan(ctx, cutoff)
}
