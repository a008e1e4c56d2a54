// Package quarantine soft-deletes chunks whose source files have
// disappeared, restores them if they reappear, and hard-purges after a
// retention window.
package quarantine

import (
	"context"
	"os"
	"time"

	apperrors "github.com/docuindex/engine/internal/app/errors"
	"github.com/docuindex/engine/infrastructure/logging"
	"github.com/docuindex/engine/internal/app/storage"
)

const defaultRetentionDays = 30

// Service is the Quarantine Engine.
type Service struct {
	chunks storage.ChunkStore
	logger *logging.Logger
	now    func() time.Time
}

func New(chunks storage.ChunkStore, logger *logging.Logger) *Service {
	return &Service{chunks: chunks, logger: logger, now: time.Now}
}

// QuarantineChunks sets quarantined_at/quarantine_reason for all
// not-yet-quarantined chunks of a source URI. Returns rows affected.
func (s *Service) QuarantineChunks(ctx context.Context, sourceURI, reason string) (int64, error) {
	n, err := s.chunks.QuarantineBySourceURI(ctx, sourceURI, reason)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.DatabaseQueryError, "quarantine chunks", err)
	}
	s.logger.LogQuarantineEvent(ctx, "quarantine", sourceURI, int(n))
	return n, nil
}

// RestoreChunks clears quarantine state for a source URI. Returns rows
// affected.
func (s *Service) RestoreChunks(ctx context.Context, sourceURI string) (int64, error) {
	n, err := s.chunks.RestoreBySourceURI(ctx, sourceURI)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.DatabaseQueryError, "restore chunks", err)
	}
	s.logger.LogQuarantineEvent(ctx, "restore", sourceURI, int(n))
	return n, nil
}

// PurgeExpired hard-deletes chunks quarantined past the retention window.
func (s *Service) PurgeExpired(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		retentionDays = defaultRetentionDays
	}
	cutoff := s.now().UTC().AddDate(0, 0, -retentionDays)
	n, err := s.chunks.PurgeExpiredQuarantine(ctx, cutoff)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.DatabaseQueryError, "purge expired quarantine", err)
	}
	s.logger.LogQuarantineEvent(ctx, "purge", "", int(n))
	return n, nil
}

// QuarantineMissingSources is invoked at the tail of every non-dry-run
// scan. For each distinct source_uri under folderPath, it quarantines the
// ones missing from disk and restores the ones that reappeared.
func (s *Service) QuarantineMissingSources(ctx context.Context, folderPath string) error {
	sourceURIs, err := s.chunks.ListDistinctSourceURIs(ctx, folderPath)
	if err != nil {
		return apperrors.Wrap(apperrors.DatabaseQueryError, "list distinct source uris", err)
	}

	for _, uri := range sourceURIs {
		_, statErr := os.Stat(uri)
		missing := statErr != nil

		if missing {
			if _, err := s.chunks.QuarantineBySourceURI(ctx, uri, "source_file_missing"); err != nil {
				return apperrors.Wrap(apperrors.DatabaseQueryError, "quarantine missing source", err)
			}
		} else {
			if _, err := s.chunks.RestoreBySourceURI(ctx, uri); err != nil {
				return apperrors.Wrap(apperrors.DatabaseQueryError, "restore reappeared source", err)
			}
		}
	}
	return nil
}

func (s *Service) Stats(ctx context.Context) (storage.QuarantineStats, error) {
	return s.chunks.QuarantineStats(ctx)
}

func (s *Service) ListQuarantined(ctx context.Context, limit, offset int) ([]storage.QuarantinedSource, error) {
	return s.chunks.ListQuarantined(ctx, limit, offset)
}
