// Package retention is the Retention Orchestrator: an independent
// background loop that sweeps the activity log, expired quarantine,
// terminal-state indexing runs, and expired SAML sessions, and reaps
// indexing runs stuck in "running" past a stale-run timeout.
package retention

import (
	"context"
	"sync"
	"time"

	"github.com/docuindex/engine/infrastructure/logging"
	"github.com/docuindex/engine/internal/app/services/activity"
	"github.com/docuindex/engine/internal/app/services/quarantine"
	"github.com/docuindex/engine/internal/app/services/runs"
	"github.com/docuindex/engine/internal/app/storage"
	"github.com/docuindex/engine/internal/app/system"
)

var _ system.Service = (*Orchestrator)(nil)

// Defaults mirror the spec's code-level fallback constants, surfaced by
// PolicyDefaults when an env override is absent.
const (
	DefaultActivityRetentionDays     = 2555
	DefaultQuarantineRetentionDays   = 30
	DefaultIndexingRunsRetentionDays = 10950
	DefaultStaleRunTimeoutSeconds    = 21600
)

// Policy carries the effective retention windows for one apply_retention
// pass.
type Policy struct {
	ActivityRetentionDays     int
	QuarantineRetentionDays   int
	IndexingRunsRetentionDays int
	CleanupSAMLSessions       bool
	StaleRunTimeout           time.Duration
}

// CategoryResult reports one retention category's outcome. Err is non-nil
// on failure; Deleted is only meaningful when Err is nil.
type CategoryResult struct {
	Deleted int64
	Err     error
}

// Result is the outcome of one apply_retention pass across all categories,
// in the order they ran: activity, quarantine, indexing runs, SAML
// sessions. A subsystem failure does not abort remaining categories.
type Result struct {
	Activity      CategoryResult
	Quarantine    CategoryResult
	IndexingRuns  CategoryResult
	SAMLSessions  CategoryResult
	StaleRunsReaped CategoryResult
}

// Orchestrator runs apply_retention on a fixed interval, independent of
// the Server Scheduler.
type Orchestrator struct {
	activity    *activity.Service
	quarantine  *quarantine.Service
	runs        *runs.Service
	samlStore   storage.SAMLSessionStore
	policy      Policy
	interval    time.Duration
	logger      *logging.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	now     func() time.Time
}

// New builds a Retention Orchestrator. intervalSeconds is the poll cadence
// (default 24h per the spec); policy carries the effective retention
// windows, computed once from config at construction (env-first, code
// constant fallback).
func New(
	activitySvc *activity.Service,
	quarantineSvc *quarantine.Service,
	runsSvc *runs.Service,
	samlStore storage.SAMLSessionStore,
	policy Policy,
	intervalSeconds int,
	logger *logging.Logger,
) *Orchestrator {
	if intervalSeconds <= 0 {
		intervalSeconds = 86400
	}
	return &Orchestrator{
		activity:   activitySvc,
		quarantine: quarantineSvc,
		runs:       runsSvc,
		samlStore:  samlStore,
		policy:     policy,
		interval:   time.Duration(intervalSeconds) * time.Second,
		logger:     logger,
		now:        time.Now,
	}
}

func (o *Orchestrator) Name() string { return "retention-orchestrator" }

func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.running = true
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(o.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				o.ApplyRetention(runCtx)
			}
		}
	}()

	return nil
}

func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return nil
	}
	cancel := o.cancel
	o.running = false
	o.cancel = nil
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		o.wg.Wait()
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ApplyRetention runs one full sweep across all four categories plus the
// stale-running-run reaper, continuing past a subsystem failure rather
// than aborting the remaining categories.
func (o *Orchestrator) ApplyRetention(ctx context.Context) Result {
	var result Result

	result.Activity.Deleted, result.Activity.Err = o.activity.ApplyRetention(ctx, o.policy.ActivityRetentionDays)
	o.logger.LogRetentionEvent(ctx, "activity", int(result.Activity.Deleted), result.Activity.Err)

	result.Quarantine.Deleted, result.Quarantine.Err = o.quarantine.PurgeExpired(ctx, o.policy.QuarantineRetentionDays)
	o.logger.LogRetentionEvent(ctx, "quarantine", int(result.Quarantine.Deleted), result.Quarantine.Err)

	result.IndexingRuns.Deleted, result.IndexingRuns.Err = o.runs.ApplyRetention(ctx, o.policy.IndexingRunsRetentionDays)
	o.logger.LogRetentionEvent(ctx, "indexing_runs", int(result.IndexingRuns.Deleted), result.IndexingRuns.Err)

	if o.policy.CleanupSAMLSessions {
		result.SAMLSessions.Deleted, result.SAMLSessions.Err = o.samlStore.DeleteExpiredOrInactive(ctx, o.now().UTC())
		o.logger.LogRetentionEvent(ctx, "saml_sessions", int(result.SAMLSessions.Deleted), result.SAMLSessions.Err)
	}

	staleTimeout := o.policy.StaleRunTimeout
	if staleTimeout <= 0 {
		staleTimeout = DefaultStaleRunTimeoutSeconds * time.Second
	}
	result.StaleRunsReaped.Deleted, result.StaleRunsReaped.Err = o.runs.ReapStaleRunning(ctx, staleTimeout)
	o.logger.LogRetentionEvent(ctx, "stale_runs", int(result.StaleRunsReaped.Deleted), result.StaleRunsReaped.Err)

	return result
}

// PolicyDefaults surfaces the effective defaults this orchestrator was
// constructed with.
func (o *Orchestrator) PolicyDefaults() Policy {
	return o.policy
}
