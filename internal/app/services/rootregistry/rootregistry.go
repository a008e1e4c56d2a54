// Package rootregistry is the authoritative CRUD and scheduling-state
// store for watched roots.
package rootregistry

import (
	"context"
	"os"
	"time"

	apperrors "github.com/docuindex/engine/internal/app/errors"
	"github.com/docuindex/engine/internal/app/domain"
	"github.com/docuindex/engine/internal/app/services/canonicalidentity"
	"github.com/docuindex/engine/internal/app/storage"
	"github.com/google/uuid"
)

// Service is the Root Registry.
type Service struct {
	store storage.RootStore
}

func New(store storage.RootStore) *Service {
	return &Service{store: store}
}

// AddFolderParams carries the fields accepted by AddFolder.
type AddFolderParams struct {
	FolderPath     string                 `json:"folder_path"`
	ScheduleCron   string                 `json:"schedule_cron"`
	Scope          domain.ExecutionScope  `json:"scope"`
	ExecutorID     *string                `json:"executor_id"`
	Enabled        bool                   `json:"enabled"`
	Paused         bool                   `json:"paused"`
	MaxConcurrency int                    `json:"max_concurrency"`
	Metadata       map[string]interface{} `json:"metadata"`
}

// AddFolder validates scope invariants, normalizes the path, and upserts on
// normalized_folder_path within its scope.
func (s *Service) AddFolder(ctx context.Context, p AddFolderParams) (domain.WatchedRoot, error) {
	if p.MaxConcurrency < 1 {
		p.MaxConcurrency = 1
	}

	root := domain.WatchedRoot{
		FolderPath:           p.FolderPath,
		NormalizedFolderPath: canonicalidentity.NormalizePath(p.FolderPath),
		ExecutionScope:       p.Scope,
		ExecutorID:           p.ExecutorID,
		RootID:               uuid.NewString(),
		ScheduleCron:         p.ScheduleCron,
		Enabled:              p.Enabled,
		Paused:               p.Paused,
		MaxConcurrency:       p.MaxConcurrency,
		Metadata:             p.Metadata,
	}

	if p.Scope == domain.ScopeServer {
		root.ExecutorID = nil
	}

	if !root.ScopeInvariantSatisfied() {
		return domain.WatchedRoot{}, apperrors.New(apperrors.InvalidScope,
			"execution_scope and executor_id are inconsistent")
	}

	if p.Scope == domain.ScopeServer {
		if err := requireExistingDirectory(p.FolderPath); err != nil {
			return domain.WatchedRoot{}, err
		}
	}

	existing, found, err := s.store.FindByNormalizedPath(ctx, root.ExecutionScope, root.ExecutorID, root.NormalizedFolderPath)
	if err != nil {
		return domain.WatchedRoot{}, apperrors.Wrap(apperrors.DatabaseQueryError, "lookup watched root", err)
	}
	if found {
		existing.ScheduleCron = root.ScheduleCron
		existing.Enabled = root.Enabled
		existing.Paused = root.Paused
		existing.MaxConcurrency = root.MaxConcurrency
		existing.Metadata = root.Metadata
		updated, err := s.store.Update(ctx, existing)
		if err != nil {
			return domain.WatchedRoot{}, apperrors.Wrap(apperrors.DatabaseQueryError, "update watched root", err)
		}
		return updated, nil
	}

	inserted, err := s.store.Insert(ctx, root)
	if err != nil {
		return domain.WatchedRoot{}, apperrors.Wrap(apperrors.DatabaseQueryError, "insert watched root", err)
	}
	return inserted, nil
}

// UpdateFolderParams carries the mutable fields of UpdateFolder. A nil
// pointer leaves the field unchanged.
type UpdateFolderParams struct {
	FolderPath     *string                `json:"folder_path"`
	ScheduleCron   *string                `json:"schedule_cron"`
	Enabled        *bool                  `json:"enabled"`
	Paused         *bool                  `json:"paused"`
	MaxConcurrency *int                   `json:"max_concurrency"`
	Metadata       map[string]interface{} `json:"metadata"`
}

// UpdateFolder applies a partial update. Scope changes must go through
// TransitionScope.
func (s *Service) UpdateFolder(ctx context.Context, id string, p UpdateFolderParams) (domain.WatchedRoot, error) {
	root, err := s.store.Get(ctx, id)
	if err != nil {
		return domain.WatchedRoot{}, apperrors.Wrap(apperrors.DatabaseQueryError, "get watched root", err)
	}

	if p.FolderPath != nil {
		root.FolderPath = *p.FolderPath
		root.NormalizedFolderPath = canonicalidentity.NormalizePath(*p.FolderPath)
	}
	if p.ScheduleCron != nil {
		root.ScheduleCron = *p.ScheduleCron
	}
	if p.Enabled != nil {
		root.Enabled = *p.Enabled
	}
	if p.Paused != nil {
		root.Paused = *p.Paused
	}
	if p.MaxConcurrency != nil {
		root.MaxConcurrency = *p.MaxConcurrency
	}
	if p.Metadata != nil {
		root.Metadata = p.Metadata
	}

	updated, err := s.store.Update(ctx, root)
	if err != nil {
		return domain.WatchedRoot{}, apperrors.Wrap(apperrors.DatabaseQueryError, "update watched root", err)
	}
	return updated, nil
}

// TransitionScope moves a root between client and server scope. Moving to
// client requires executorID; moving to server nullifies executorID and
// verifies the directory exists on this host. The target scope's path
// uniqueness is checked and a Conflict is returned on collision.
func (s *Service) TransitionScope(ctx context.Context, id string, target domain.ExecutionScope, executorID *string) (domain.WatchedRoot, error) {
	root, err := s.store.Get(ctx, id)
	if err != nil {
		return domain.WatchedRoot{}, apperrors.Wrap(apperrors.DatabaseQueryError, "get watched root", err)
	}

	if target == domain.ScopeClient {
		if executorID == nil || *executorID == "" {
			return domain.WatchedRoot{}, apperrors.New(apperrors.InvalidScope, "executor_id is required to transition to client scope")
		}
		root.ExecutorID = executorID
	} else {
		root.ExecutorID = nil
		if err := requireExistingDirectory(root.FolderPath); err != nil {
			return domain.WatchedRoot{}, err
		}
	}
	root.ExecutionScope = target

	if !root.ScopeInvariantSatisfied() {
		return domain.WatchedRoot{}, apperrors.New(apperrors.InvalidScope, "execution_scope and executor_id are inconsistent")
	}

	_, conflicting, err := s.store.FindByNormalizedPath(ctx, target, root.ExecutorID, root.NormalizedFolderPath)
	if err != nil {
		return domain.WatchedRoot{}, apperrors.Wrap(apperrors.DatabaseQueryError, "check scope conflict", err)
	}
	if conflicting {
		return domain.WatchedRoot{}, apperrors.New(apperrors.Conflict, "a watched root already occupies this path in the target scope")
	}

	updated, err := s.store.Update(ctx, root)
	if err != nil {
		return domain.WatchedRoot{}, apperrors.Wrap(apperrors.DatabaseQueryError, "update watched root", err)
	}
	return updated, nil
}

// MarkScanned sets last_scanned_at=now and last_run_id.
func (s *Service) MarkScanned(ctx context.Context, id string, runID *string) error {
	root, err := s.store.Get(ctx, id)
	if err != nil {
		return apperrors.Wrap(apperrors.DatabaseQueryError, "get watched root", err)
	}
	now := time.Now().UTC()
	root.LastScannedAt = &now
	root.LastRunID = runID
	_, err = s.store.Update(ctx, root)
	return err
}

// WatermarkUpdate describes one atomic watermark transition.
type WatermarkUpdate struct {
	Started       bool
	Completed     bool
	Success       bool
	Error         bool
	ResetFailures bool
}

// UpdateScanWatermarks applies the atomic watermark transitions described
// in §4.1.
func (s *Service) UpdateScanWatermarks(ctx context.Context, id string, u WatermarkUpdate) error {
	root, err := s.store.Get(ctx, id)
	if err != nil {
		return apperrors.Wrap(apperrors.DatabaseQueryError, "get watched root", err)
	}

	now := time.Now().UTC()
	if u.Started {
		root.LastScanStartedAt = &now
	}
	if u.Completed {
		root.LastScanCompletedAt = &now
		if u.Success {
			root.LastSuccessfulScanAt = &now
			root.ConsecutiveFailures = 0
		}
		if u.Error {
			root.LastErrorAt = &now
			root.ConsecutiveFailures++
		}
	}
	if u.ResetFailures {
		root.ConsecutiveFailures = 0
	}

	_, err = s.store.Update(ctx, root)
	return err
}

func (s *Service) ListFolders(ctx context.Context, enabledOnly bool, scope *domain.ExecutionScope, executorID *string) ([]domain.WatchedRoot, error) {
	return s.store.List(ctx, enabledOnly, scope, executorID)
}

func (s *Service) GetFolder(ctx context.Context, id string) (domain.WatchedRoot, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) GetFolderByRootID(ctx context.Context, rootID string) (domain.WatchedRoot, error) {
	return s.store.GetByRootID(ctx, rootID)
}

func (s *Service) RemoveFolder(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

func requireExistingDirectory(path string) error {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return apperrors.Newf(apperrors.PathValidationFailed, "%s is not an existing directory", path)
	}
	return nil
}
