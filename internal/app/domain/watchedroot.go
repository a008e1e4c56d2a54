package domain

import "time"

// ExecutionScope names who owns scanning duty for a watched root.
type ExecutionScope string

const (
	ScopeClient ExecutionScope = "client"
	ScopeServer ExecutionScope = "server"
)

// WatchedRoot is a directory the service keeps indexed on a schedule.
type WatchedRoot struct {
	ID                     string
	FolderPath             string
	NormalizedFolderPath   string
	ExecutionScope         ExecutionScope
	ExecutorID             *string
	RootID                 string
	ScheduleCron           string
	Enabled                bool
	Paused                 bool
	MaxConcurrency         int
	ConsecutiveFailures    int
	LastScanStartedAt      *time.Time
	LastScanCompletedAt    *time.Time
	LastSuccessfulScanAt   *time.Time
	LastErrorAt            *time.Time
	LastScannedAt          *time.Time
	LastRunID              *string
	Metadata               map[string]interface{}
}

// ScopeInvariantSatisfied checks the scope/executor invariant from §3:
// client-scope rows require a non-null executor, server-scope rows forbid
// one.
func (w *WatchedRoot) ScopeInvariantSatisfied() bool {
	switch w.ExecutionScope {
	case ScopeClient:
		return w.ExecutorID != nil && *w.ExecutorID != ""
	case ScopeServer:
		return w.ExecutorID == nil
	default:
		return false
	}
}
