// Package scan is the Scan Engine: walks a watched root, decides which
// files need (re)indexing, invokes the Indexer Pipeline, and reconciles
// missing files into quarantine.
package scan

import (
	"context"
	"os"
	"path/filepath"

	"github.com/docuindex/engine/internal/app/domain"
	apperrors "github.com/docuindex/engine/internal/app/errors"
	"github.com/docuindex/engine/infrastructure/logging"
	"github.com/docuindex/engine/internal/app/services/activity"
	"github.com/docuindex/engine/internal/app/services/canonicalidentity"
	"github.com/docuindex/engine/internal/app/services/indexer"
	"github.com/docuindex/engine/internal/app/services/locks"
	"github.com/docuindex/engine/internal/app/services/quarantine"
	"github.com/docuindex/engine/internal/app/services/runs"
	"github.com/docuindex/engine/internal/app/storage"
)

// FilePolicy is the external collaborator that decides whether to attempt,
// skip, or OCR a given file extension.
type FilePolicy interface {
	// Decide returns one of "attempt", "skip", or "ocr" for the file at
	// path.
	Decide(path string) string
}

const (
	policyAttempt = "attempt"
	policySkip    = "skip"
	policyOCR     = "ocr"
)

// Service is the Scan Engine.
type Service struct {
	indexer     *indexer.Service
	locks       *locks.Service
	quarantine  *quarantine.Service
	canonical   *canonicalidentity.Service
	runs        *runs.Service
	activity    *activity.Service
	policy      FilePolicy
	logger      *logging.Logger
}

func New(
	idx *indexer.Service,
	lockSvc *locks.Service,
	quarantineSvc *quarantine.Service,
	canonicalSvc *canonicalidentity.Service,
	runsSvc *runs.Service,
	activitySvc *activity.Service,
	policy FilePolicy,
	logger *logging.Logger,
) *Service {
	return &Service{
		indexer:    idx,
		locks:      lockSvc,
		quarantine: quarantineSvc,
		canonical:  canonicalSvc,
		runs:       runsSvc,
		activity:   activitySvc,
		policy:     policy,
		logger:     logger,
	}
}

// Params carries the inputs to a scan.
type Params struct {
	FolderPath string
	ClientID   *string
	RootID     *string
	Scope      domain.ExecutionScope
	Identity   string
	Trigger    domain.RunTrigger
	DryRun     bool
}

// FileOutcome reports what was decided for one file during a dry run.
type FileOutcome struct {
	Path   string
	Action string
}

// DryRunResult is returned without mutating any state.
type DryRunResult struct {
	DryRun         bool
	Status         string
	TotalFiles     int
	WouldIndex     []FileOutcome
	WouldQuarantine []string
}

// Result is returned by a non-dry-run scan.
type Result struct {
	RunID        string
	Status       domain.RunStatus
	FilesScanned int
	FilesAdded   int
	FilesUpdated int
	FilesSkipped int
	FilesFailed  int
	Errors       []domain.RunError
}

// Scan implements §4.3.
func (s *Service) Scan(ctx context.Context, p Params) (Result, *DryRunResult, error) {
	run, err := s.runs.StartRun(ctx, p.Trigger, &p.FolderPath, nil, p.ClientID)
	if err != nil {
		return Result{}, nil, err
	}

	info, statErr := os.Stat(p.FolderPath)
	if statErr != nil || !info.IsDir() {
		errs := []domain.RunError{{SourceURI: p.FolderPath, Error: "directory does not exist"}}
		if _, cErr := s.runs.CompleteRun(ctx, run.ID, domain.RunFailed, 0, 0, 0, 0, 1, errs); cErr != nil {
			return Result{}, nil, cErr
		}
		s.recordScanActivity(ctx, p, run.ID, domain.RunFailed, 0, 0, 0, 0, 1)
		return Result{RunID: run.ID, Status: domain.RunFailed, FilesFailed: 1, Errors: errs}, nil, nil
	}

	files, err := walkSupportedFiles(p.FolderPath)
	if err != nil {
		errs := []domain.RunError{{SourceURI: p.FolderPath, Error: err.Error()}}
		if _, cErr := s.runs.CompleteRun(ctx, run.ID, domain.RunFailed, 0, 0, 0, 0, 1, errs); cErr != nil {
			return Result{}, nil, cErr
		}
		s.recordScanActivity(ctx, p, run.ID, domain.RunFailed, 0, 0, 0, 0, 1)
		return Result{RunID: run.ID, Status: domain.RunFailed, FilesFailed: 1, Errors: errs}, nil, nil
	}

	if p.DryRun {
		dryRun, err := s.dryRun(ctx, p, files)
		return Result{}, &dryRun, err
	}

	var added, updated, skipped, failed int
	var errs []domain.RunError

	for _, path := range files {
		action := s.policy.Decide(path)
		if action == policySkip {
			skipped++
			continue
		}

		relPath := canonicalidentity.ExtractRelativePath(p.FolderPath, path)
		var rootID, relativePath *string
		if p.RootID != nil {
			rootID = p.RootID
			relativePath = &relPath
		}

		clientID := ""
		if p.ClientID != nil {
			clientID = *p.ClientID
		}
		acquired, err := s.locks.AcquireLock(ctx, locks.AcquireParams{
			SourceURI:    path,
			ClientID:     clientID,
			RootID:       rootID,
			RelativePath: relativePath,
		})
		if err != nil {
			failed++
			errs = append(errs, domain.RunError{SourceURI: path, Error: err.Error()})
			continue
		}
		if !acquired.OK {
			failed++
			errs = append(errs, domain.RunError{SourceURI: path, Error: "document lock held by another client"})
			continue
		}

		ocrMode := ""
		if action == policyOCR {
			ocrMode = "ocr"
		}

		result, err := s.indexer.IndexDocument(ctx, indexer.IndexParams{
			SourceURI: path,
			OCRMode:   ocrMode,
		})
		releaseErr := s.locks.ReleaseLock(ctx, path, clientID, rootID, relativePath)
		if releaseErr != nil {
			s.logger.WithError(releaseErr).Warn("failed to release document lock after indexing")
		}

		if err != nil {
			failed++
			errs = append(errs, domain.RunError{SourceURI: path, Error: err.Error()})
			continue
		}

		if result.Status == indexer.StatusSkipped {
			skipped++
		} else {
			added++
		}
	}

	if err := s.quarantine.QuarantineMissingSources(ctx, p.FolderPath); err != nil {
		s.logger.WithError(err).Warn("quarantine reconciliation failed for scan")
	}

	if p.RootID != nil {
		if _, err := s.canonical.BulkSetCanonicalKeys(ctx, *p.RootID, p.FolderPath, p.Scope, p.Identity); err != nil {
			s.logger.WithError(err).Warn("canonical key backfill failed for scan")
		}
	}

	status := domain.RunSuccess
	if failed > 0 && (added > 0 || updated > 0 || skipped > 0) {
		status = domain.RunPartial
	} else if failed > 0 && added == 0 && updated == 0 && skipped == 0 {
		status = domain.RunFailed
	}

	completed, err := s.runs.CompleteRun(ctx, run.ID, status, len(files), added, updated, skipped, failed, errs)
	if err != nil {
		return Result{}, nil, err
	}

	s.logger.LogScanEvent(ctx, derefString(p.RootID), p.FolderPath, len(files), failed, nil)
	s.recordScanActivity(ctx, p, completed.ID, status, len(files), added, updated, skipped, failed)

	return Result{
		RunID:        completed.ID,
		Status:       completed.Status,
		FilesScanned: len(files),
		FilesAdded:   added,
		FilesUpdated: updated,
		FilesSkipped: skipped,
		FilesFailed:  failed,
		Errors:       errs,
	}, nil, nil
}

func (s *Service) dryRun(ctx context.Context, p Params, files []string) (DryRunResult, error) {
	var wouldIndex []FileOutcome
	for _, path := range files {
		action := s.policy.Decide(path)
		if action == policySkip {
			continue
		}
		wouldIndex = append(wouldIndex, FileOutcome{Path: path, Action: action})
	}

	indexed, err := s.indexer.ExportDocuments(ctx, storage.ChunkFilter{SourcePrefix: p.FolderPath})
	if err != nil {
		return DryRunResult{}, apperrors.Wrap(apperrors.DatabaseQueryError, "list indexed sources for dry run", err)
	}

	present := map[string]bool{}
	for _, path := range files {
		present[path] = true
	}

	seen := map[string]bool{}
	var wouldQuarantine []string
	for _, c := range indexed {
		if seen[c.SourceURI] {
			continue
		}
		seen[c.SourceURI] = true
		if !present[c.SourceURI] {
			wouldQuarantine = append(wouldQuarantine, c.SourceURI)
		}
	}

	return DryRunResult{
		DryRun:          true,
		Status:          "dry_run",
		TotalFiles:      len(files),
		WouldIndex:      wouldIndex,
		WouldQuarantine: wouldQuarantine,
	}, nil
}

func walkSupportedFiles(root string) ([]string, error) {
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// recordScanActivity appends the Activity Log entry that closes out the
// Scan Engine's leg of the §2 dataflow (Scan Engine → ... → Run Recorder
// + Activity Log). activity may be nil for callers that don't wire one in.
func (s *Service) recordScanActivity(ctx context.Context, p Params, runID string, status domain.RunStatus,
	scanned, added, updated, skipped, failed int) {
	if s.activity == nil {
		return
	}
	scope := p.Scope
	if _, err := s.activity.Record(ctx, activity.RecordParams{
		Action:   "scan_" + string(status),
		ClientID: p.ClientID,
		Details: map[string]interface{}{
			"folder_path":   p.FolderPath,
			"files_scanned": scanned,
			"files_added":   added,
			"files_updated": updated,
			"files_skipped": skipped,
			"files_failed":  failed,
		},
		ExecutorScope: &scope,
		RootID:        p.RootID,
		RunID:         &runID,
	}); err != nil {
		s.logger.WithError(err).Warn("failed to record scan activity entry")
	}
}
