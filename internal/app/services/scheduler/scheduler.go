// Package scheduler is the Server Scheduler: a singleton background loop,
// guarded by a process-wide Postgres advisory lock, that drives periodic
// scans of server-scope watched roots off the request path.
package scheduler

import (
	"context"
	"database/sql"
	"hash/crc32"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/docuindex/engine/infrastructure/logging"
	"github.com/docuindex/engine/internal/app/domain"
	apperrors "github.com/docuindex/engine/internal/app/errors"
	"github.com/docuindex/engine/internal/app/services/quarantine"
	"github.com/docuindex/engine/internal/app/services/rootregistry"
	"github.com/docuindex/engine/internal/app/services/scan"
	"github.com/docuindex/engine/internal/app/system"
)

var _ system.Service = (*Scheduler)(nil)

// LockID is the advisory lock identifying the singleton scheduler across
// replicas. It is a fixed literal; it is not the crc32 of
// "pgvector_server_scheduler" (that value is 683078531).
const LockID int64 = 2050923308

// FailureBackoffThreshold is the consecutive-failure count at or above
// which a root is skipped until the failure backoff window given to New
// has elapsed since the last error.
const FailureBackoffThreshold = 5

const pollInterval = 60 * time.Second

// Scheduler polls server-scope watched roots and runs the Scan Engine
// against the ones that are due.
type Scheduler struct {
	db         *sql.DB
	roots      *rootregistry.Service
	scan       *scan.Service
	quarantine *quarantine.Service
	logger     *logging.Logger

	failureBackoff     time.Duration
	quarantinePurgeEvery time.Duration
	ready              func() bool

	mu             sync.Mutex
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	running        bool
	leaseHeld      bool
	leaseConn      *sql.Conn
	lastPollAt     time.Time
	activeScans    int
	lastPurgeAt    time.Time
	pausedOverride map[string]bool
}

// New builds a Server Scheduler. ready, if non-nil, gates the polling loop
// until it returns true (DB manager / embedding model readiness).
func New(db *sql.DB, roots *rootregistry.Service, scanSvc *scan.Service, quarantineSvc *quarantine.Service,
	failureBackoffSeconds, quarantinePurgeIntervalSeconds int, ready func() bool, logger *logging.Logger) *Scheduler {
	if failureBackoffSeconds <= 0 {
		failureBackoffSeconds = 3600
	}
	if quarantinePurgeIntervalSeconds <= 0 {
		quarantinePurgeIntervalSeconds = 86400
	}
	return &Scheduler{
		db:                   db,
		roots:                roots,
		scan:                 scanSvc,
		quarantine:           quarantineSvc,
		logger:               logger,
		failureBackoff:       time.Duration(failureBackoffSeconds) * time.Second,
		quarantinePurgeEvery: time.Duration(quarantinePurgeIntervalSeconds) * time.Second,
		ready:                ready,
		pausedOverride:       map[string]bool{},
	}
}

func (s *Scheduler) Name() string { return "server-scheduler" }

// Start begins the polling loop. It returns immediately; lease acquisition
// and scanning happen asynchronously.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				s.tick(runCtx)
			}
		}
	}()

	s.logger.LogSchedulerEvent(ctx, "started", false, 0)
	return nil
}

// Stop halts the polling loop and releases the advisory lock by closing
// the dedicated connection that holds it.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.releaseLease()
	s.logger.LogSchedulerEvent(ctx, "stopped", false, 0)
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	if s.ready != nil && !s.ready() {
		return
	}

	if !s.ensureLease(ctx) {
		return
	}

	s.mu.Lock()
	s.lastPollAt = time.Now().UTC()
	s.mu.Unlock()

	scopeServer := domain.ScopeServer
	allRoots, err := s.roots.ListFolders(ctx, true, &scopeServer, nil)
	if err != nil {
		s.logger.WithError(err).Warn("server scheduler failed to list roots")
		return
	}

	now := time.Now().UTC()
	for _, root := range allRoots {
		if !s.rootIsDue(root, now) {
			continue
		}
		s.runScan(ctx, root)
	}

	s.maybePurgeQuarantine(ctx, now)
}

// rootIsDue implements the per-root scheduling decision.
func (s *Scheduler) rootIsDue(root domain.WatchedRoot, now time.Time) bool {
	if root.Paused {
		return false
	}
	if root.ConsecutiveFailures >= FailureBackoffThreshold && root.LastErrorAt != nil &&
		now.Sub(*root.LastErrorAt) < s.failureBackoff {
		return false
	}

	if root.LastScannedAt == nil {
		return true
	}
	schedule := parseCronSchedule(root.ScheduleCron)
	return !schedule.Next(*root.LastScannedAt).After(now)
}

// cronParser accepts standard 5-field cron expressions (minute hour dom
// month dow), matching what the Root Registry stores in ScheduleCron.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// defaultSchedule is used when a root's ScheduleCron doesn't parse, so a
// malformed value degrades to a conservative fixed interval instead of
// blocking the root from ever being scanned.
var defaultSchedule = cron.ConstantDelaySchedule{Delay: 6 * time.Hour}

func parseCronSchedule(cronExpr string) cron.Schedule {
	if schedule, err := cronParser.Parse(cronExpr); err == nil {
		return schedule
	}
	return defaultSchedule
}

func (s *Scheduler) runScan(ctx context.Context, root domain.WatchedRoot) {
	s.mu.Lock()
	s.activeScans++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.activeScans--
		s.mu.Unlock()
	}()

	if err := s.roots.UpdateScanWatermarks(ctx, root.ID, rootregistry.WatermarkUpdate{Started: true}); err != nil {
		s.logger.WithError(err).Warn("failed to set scan-started watermark")
	}

	rootID := root.RootID
	result, _, err := s.scan.Scan(ctx, scan.Params{
		FolderPath: root.FolderPath,
		RootID:     &rootID,
		Scope:      domain.ScopeServer,
		Identity:   root.RootID,
		Trigger:    domain.TriggerScheduled,
	})

	update := rootregistry.WatermarkUpdate{Completed: true}
	if err != nil || (result.Status == domain.RunFailed) {
		update.Error = true
	} else {
		update.Success = true
	}
	if wErr := s.roots.UpdateScanWatermarks(ctx, root.ID, update); wErr != nil {
		s.logger.WithError(wErr).Warn("failed to set scan-completed watermark")
	}

	runID := result.RunID
	if markErr := s.roots.MarkScanned(ctx, root.ID, &runID); markErr != nil {
		s.logger.WithError(markErr).Warn("failed to mark root scanned")
	}

	if err != nil {
		s.logger.LogScanEvent(ctx, root.RootID, root.FolderPath, 0, 1, err)
	}
}

func (s *Scheduler) maybePurgeQuarantine(ctx context.Context, now time.Time) {
	s.mu.Lock()
	due := s.lastPurgeAt.IsZero() || now.Sub(s.lastPurgeAt) >= s.quarantinePurgeEvery
	if due {
		s.lastPurgeAt = now
	}
	s.mu.Unlock()
	if !due {
		return
	}

	go func() {
		purged, err := s.quarantine.PurgeExpired(ctx, 0)
		if err != nil {
			s.logger.WithError(err).Warn("scheduler quarantine purge housekeeping failed")
			return
		}
		s.logger.LogQuarantineEvent(ctx, "purge", "", int(purged))
	}()
}

// ensureLease attempts (non-blocking) to become the active scheduler by
// holding the advisory lock on a dedicated connection. Session loss (crash,
// connection drop) releases it implicitly.
func (s *Scheduler) ensureLease(ctx context.Context) bool {
	s.mu.Lock()
	if s.leaseHeld {
		s.mu.Unlock()
		return true
	}
	s.mu.Unlock()

	conn, err := s.db.Conn(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("scheduler failed to obtain dedicated connection for lease attempt")
		return false
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, LockID).Scan(&acquired); err != nil {
		s.logger.WithError(err).Warn("scheduler advisory lock attempt failed")
		_ = conn.Close()
		return false
	}
	if !acquired {
		_ = conn.Close()
		return false
	}

	s.mu.Lock()
	s.leaseHeld = true
	s.leaseConn = conn
	s.mu.Unlock()
	s.logger.LogSchedulerEvent(ctx, "lease_acquired", true, 0)
	return true
}

func (s *Scheduler) releaseLease() {
	s.mu.Lock()
	conn := s.leaseConn
	s.leaseConn = nil
	s.leaseHeld = false
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

// Status reports the scheduler's current state for the admin surface.
type Status struct {
	Enabled            bool
	Running            bool
	LeaseHeld          bool
	LastPollAt         *time.Time
	ActiveScans        int
	PollIntervalSeconds int
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	var lastPoll *time.Time
	if !s.lastPollAt.IsZero() {
		t := s.lastPollAt
		lastPoll = &t
	}
	return Status{
		Enabled:             true,
		Running:             s.running,
		LeaseHeld:           s.leaseHeld,
		LastPollAt:          lastPoll,
		ActiveScans:         s.activeScans,
		PollIntervalSeconds: int(pollInterval.Seconds()),
	}
}

// Pause marks a root paused via the Root Registry.
func (s *Scheduler) Pause(ctx context.Context, rootID string) error {
	root, err := s.roots.GetFolderByRootID(ctx, rootID)
	if err != nil {
		return err
	}
	paused := true
	_, err = s.roots.UpdateFolder(ctx, root.ID, rootregistry.UpdateFolderParams{Paused: &paused})
	return err
}

// Resume unpauses a root and resets its failure streak.
func (s *Scheduler) Resume(ctx context.Context, rootID string) error {
	root, err := s.roots.GetFolderByRootID(ctx, rootID)
	if err != nil {
		return err
	}
	paused := false
	if _, err := s.roots.UpdateFolder(ctx, root.ID, rootregistry.UpdateFolderParams{Paused: &paused}); err != nil {
		return err
	}
	return s.roots.UpdateScanWatermarks(ctx, root.ID, rootregistry.WatermarkUpdate{ResetFailures: true})
}

// ScanNow runs an immediate scan for a server-scope root, bypassing the
// schedule check. Client-scope roots are rejected.
func (s *Scheduler) ScanNow(ctx context.Context, rootID string) (scan.Result, error) {
	root, err := s.roots.GetFolderByRootID(ctx, rootID)
	if err != nil {
		return scan.Result{}, err
	}
	if root.ExecutionScope != domain.ScopeServer {
		return scan.Result{}, apperrors.New(apperrors.NotServerScope, "root is not server-scope")
	}

	s.mu.Lock()
	s.activeScans++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.activeScans--
		s.mu.Unlock()
	}()

	if err := s.roots.UpdateScanWatermarks(ctx, root.ID, rootregistry.WatermarkUpdate{Started: true}); err != nil {
		s.logger.WithError(err).Warn("failed to set scan-started watermark")
	}

	rootIDVal := root.RootID
	result, _, scanErr := s.scan.Scan(ctx, scan.Params{
		FolderPath: root.FolderPath,
		RootID:     &rootIDVal,
		Scope:      domain.ScopeServer,
		Identity:   root.RootID,
		Trigger:    domain.TriggerManual,
	})

	update := rootregistry.WatermarkUpdate{Completed: true}
	if scanErr != nil || result.Status == domain.RunFailed {
		update.Error = true
	} else {
		update.Success = true
	}
	if wErr := s.roots.UpdateScanWatermarks(ctx, root.ID, update); wErr != nil {
		s.logger.WithError(wErr).Warn("failed to set scan-completed watermark")
	}
	runID := result.RunID
	if markErr := s.roots.MarkScanned(ctx, root.ID, &runID); markErr != nil {
		s.logger.WithError(markErr).Warn("failed to mark root scanned")
	}

	return result, scanErr
}

// lockIDFromSeed returns the IEEE crc32 of seed as an int64. For
// "pgvector_server_scheduler" this is 683078531, which differs from LockID.
func lockIDFromSeed(seed string) int64 {
	return int64(crc32.ChecksumIEEE([]byte(seed)))
}
