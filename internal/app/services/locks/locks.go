// Package locks implements short-TTL mutual exclusion on documents keyed
// by either a bare source URI or a (root_id, relative_path) pair.
package locks

import (
	"context"
	"time"

	"github.com/docuindex/engine/internal/app/domain"
	apperrors "github.com/docuindex/engine/internal/app/errors"
	"github.com/docuindex/engine/infrastructure/logging"
	"github.com/docuindex/engine/internal/app/services/activity"
	"github.com/docuindex/engine/internal/app/storage"
)

const defaultTTL = 10 * time.Minute

// Service is the Document Locks subsystem.
type Service struct {
	store    storage.LockStore
	logger   *logging.Logger
	activity *activity.Service
	now      func() time.Time
}

// New builds the Document Locks service. activitySvc may be nil, in which
// case lock events are logged but not appended to the Activity Log (used
// by tests that construct a Service without a backing activity store).
func New(store storage.LockStore, logger *logging.Logger, activitySvc *activity.Service) *Service {
	return &Service{store: store, logger: logger, activity: activitySvc, now: time.Now}
}

// recordActivity appends an entry to the Activity Log when one is wired,
// swallowing (but logging) any failure so an audit-trail hiccup never
// fails the lock operation it's describing.
func (s *Service) recordActivity(ctx context.Context, action, clientID string, rootID *string) {
	if s.activity == nil {
		return
	}
	if _, err := s.activity.Record(ctx, activity.RecordParams{
		Action:   action,
		ClientID: strPtr(clientID),
		RootID:   rootID,
	}); err != nil {
		s.logger.WithError(err).Warn("failed to record lock activity entry")
	}
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// AcquireResult is the outcome of AcquireLock.
type AcquireResult struct {
	OK       bool
	Lock     domain.DocumentLock
	Extended bool
	Holder   *domain.DocumentLock
}

// AcquireParams carries the fields accepted by AcquireLock.
type AcquireParams struct {
	SourceURI    string
	ClientID     string
	TTL          time.Duration
	LockReason   string
	RootID       *string
	RelativePath *string
}

// AcquireLock implements the acquire contract of §4.6: delete any expired
// lock for the identity, read any active lock, extend if held by the same
// client, reject if held by another, else insert a new lock.
func (s *Service) AcquireLock(ctx context.Context, p AcquireParams) (AcquireResult, error) {
	if p.TTL <= 0 {
		p.TTL = defaultTTL
	}
	if p.LockReason == "" {
		p.LockReason = "indexing"
	}

	now := s.now().UTC()

	if err := s.store.DeleteExpiredForIdentity(ctx, p.SourceURI, p.RootID, p.RelativePath, now); err != nil {
		return AcquireResult{}, apperrors.Wrap(apperrors.DatabaseQueryError, "delete expired lock", err)
	}

	active, held, err := s.store.GetActiveForIdentity(ctx, p.SourceURI, p.RootID, p.RelativePath, now)
	if err != nil {
		return AcquireResult{}, apperrors.Wrap(apperrors.DatabaseQueryError, "read active lock", err)
	}

	if held {
		if active.ClientID == p.ClientID {
			extended, err := s.store.ExtendTTL(ctx, active.ID, now.Add(p.TTL), p.LockReason)
			if err != nil {
				return AcquireResult{}, apperrors.Wrap(apperrors.DatabaseQueryError, "extend lock", err)
			}
			s.logger.LogLockEvent(ctx, p.SourceURI, p.ClientID, "extended")
			return AcquireResult{OK: true, Lock: extended, Extended: true}, nil
		}
		s.logger.LogLockEvent(ctx, p.SourceURI, p.ClientID, "held_by_other")
		s.recordActivity(ctx, "lock_contended", p.ClientID, p.RootID)
		holder := active
		return AcquireResult{OK: false, Holder: &holder}, nil
	}

	lock := domain.DocumentLock{
		SourceURI:    p.SourceURI,
		ClientID:     p.ClientID,
		LockedAt:     now,
		ExpiresAt:    now.Add(p.TTL),
		LockReason:   p.LockReason,
		RootID:       p.RootID,
		RelativePath: p.RelativePath,
	}
	inserted, err := s.store.Insert(ctx, lock)
	if err != nil {
		return AcquireResult{}, apperrors.Wrap(apperrors.DatabaseQueryError, "insert lock", err)
	}
	s.logger.LogLockEvent(ctx, p.SourceURI, p.ClientID, "acquired")
	return AcquireResult{OK: true, Lock: inserted}, nil
}

// ReleaseLock removes a lock that matches identity and holder.
func (s *Service) ReleaseLock(ctx context.Context, sourceURI, clientID string, rootID, relativePath *string) error {
	now := s.now().UTC()
	active, held, err := s.store.GetActiveForIdentity(ctx, sourceURI, rootID, relativePath, now)
	if err != nil {
		return apperrors.Wrap(apperrors.DatabaseQueryError, "read active lock", err)
	}
	if !held {
		return apperrors.New(apperrors.LockNotFound, "no active lock for this document")
	}
	if active.ClientID != clientID {
		return apperrors.New(apperrors.LockHeld, "lock is held by a different client").
			WithDetails(map[string]interface{}{"holder": active.ClientID})
	}
	if err := s.store.DeleteByID(ctx, active.ID); err != nil {
		return apperrors.Wrap(apperrors.DatabaseQueryError, "delete lock", err)
	}
	s.logger.LogLockEvent(ctx, sourceURI, clientID, "released")
	return nil
}

// ForceReleaseLock removes a lock regardless of holder (admin operation).
func (s *Service) ForceReleaseLock(ctx context.Context, sourceURI string, rootID, relativePath *string) error {
	now := s.now().UTC()
	active, held, err := s.store.GetActiveForIdentity(ctx, sourceURI, rootID, relativePath, now)
	if err != nil {
		return apperrors.Wrap(apperrors.DatabaseQueryError, "read active lock", err)
	}
	if !held {
		return apperrors.New(apperrors.LockNotFound, "no active lock for this document")
	}
	if err := s.store.DeleteByID(ctx, active.ID); err != nil {
		return apperrors.Wrap(apperrors.DatabaseQueryError, "delete lock", err)
	}
	s.logger.LogLockEvent(ctx, sourceURI, active.ClientID, "force_released")
	s.recordActivity(ctx, "lock_force_released", active.ClientID, rootID)
	return nil
}

// CheckLock returns the active lock for an identity, or (zero, false) if
// none.
func (s *Service) CheckLock(ctx context.Context, sourceURI string, rootID, relativePath *string) (domain.DocumentLock, bool, error) {
	now := s.now().UTC()
	active, held, err := s.store.GetActiveForIdentity(ctx, sourceURI, rootID, relativePath, now)
	if err != nil {
		return domain.DocumentLock{}, false, apperrors.Wrap(apperrors.DatabaseQueryError, "read active lock", err)
	}
	return active, held, nil
}

// CleanupExpiredLocks deletes every expired lock and returns the count
// removed.
func (s *Service) CleanupExpiredLocks(ctx context.Context) (int64, error) {
	now := s.now().UTC()
	n, err := s.store.DeleteExpired(ctx, now)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.DatabaseQueryError, "cleanup expired locks", err)
	}
	return n, nil
}
