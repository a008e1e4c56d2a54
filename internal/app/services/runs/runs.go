// Package runs is the Run Recorder: durable per-scan audit records.
package runs

import (
	"context"
	"time"

	"github.com/docuindex/engine/internal/app/domain"
	apperrors "github.com/docuindex/engine/internal/app/errors"
	"github.com/docuindex/engine/internal/app/storage"
)

// Service is the Run Recorder.
type Service struct {
	store storage.RunStore
	now   func() time.Time
}

func New(store storage.RunStore) *Service {
	return &Service{store: store, now: time.Now}
}

// StartRun inserts a row with status=running and returns it.
func (s *Service) StartRun(ctx context.Context, trigger domain.RunTrigger, sourceURI *string, metadata map[string]interface{}, clientID *string) (domain.IndexingRun, error) {
	run := domain.IndexingRun{
		Trigger:   trigger,
		SourceURI: sourceURI,
		StartedAt: s.now().UTC(),
		Status:    domain.RunRunning,
		Metadata:  metadata,
		ClientID:  clientID,
	}
	inserted, err := s.store.Insert(ctx, run)
	if err != nil {
		return domain.IndexingRun{}, apperrors.Wrap(apperrors.DatabaseQueryError, "start run", err)
	}
	return inserted, nil
}

// CompleteRun updates a run with terminal state, counters, and errors.
func (s *Service) CompleteRun(ctx context.Context, runID string, status domain.RunStatus, filesScanned, filesAdded, filesUpdated, filesSkipped, filesFailed int, errs []domain.RunError) (domain.IndexingRun, error) {
	run, err := s.store.Get(ctx, runID)
	if err != nil {
		return domain.IndexingRun{}, apperrors.Wrap(apperrors.DatabaseQueryError, "get run", err)
	}
	now := s.now().UTC()
	run.Status = status
	run.CompletedAt = &now
	run.FilesScanned = filesScanned
	run.FilesAdded = filesAdded
	run.FilesUpdated = filesUpdated
	run.FilesSkipped = filesSkipped
	run.FilesFailed = filesFailed
	run.Errors = errs

	completed, err := s.store.Complete(ctx, run)
	if err != nil {
		return domain.IndexingRun{}, apperrors.Wrap(apperrors.DatabaseQueryError, "complete run", err)
	}
	return completed, nil
}

func (s *Service) GetRun(ctx context.Context, id string) (domain.IndexingRun, error) {
	run, err := s.store.Get(ctx, id)
	if err != nil {
		return domain.IndexingRun{}, apperrors.Wrap(apperrors.DatabaseQueryError, "get run", err)
	}
	return run, nil
}

// ListRuns returns runs ordered most-recent-first.
func (s *Service) ListRuns(ctx context.Context, limit, offset int) ([]domain.IndexingRun, error) {
	return s.store.List(ctx, limit, offset)
}

// Summary aggregates run history: counts by status, totals of files
// added/updated, and the most recent run time.
func (s *Service) Summary(ctx context.Context) (domain.RunSummary, error) {
	return s.store.Summary(ctx)
}

// ApplyRetention deletes terminal-state runs older than cutoff. Running
// rows are never eligible.
func (s *Service) ApplyRetention(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := s.now().UTC().AddDate(0, 0, -retentionDays)
	return s.store.DeleteTerminalOlderThan(ctx, cutoff)
}

// ReapStaleRunning marks runs stuck in "running" past staleTimeout as
// failed, keeping the terminal-state predicate meaningful.
func (s *Service) ReapStaleRunning(ctx context.Context, staleTimeout time.Duration) (int64, error) {
	cutoff := s.now().UTC().Add(-staleTimeout)
	return s.store.ReapStaleRunning(ctx, cutoff)
}
