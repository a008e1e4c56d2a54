package domain

import "time"

// ActivityLogEntry is an append-only audit event.
type ActivityLogEntry struct {
	ID             string
	Timestamp      time.Time
	Action         string
	ClientID       *string
	UserID         *string
	Details        map[string]interface{}
	ExecutorScope  *ExecutionScope
	ExecutorID     *string
	RootID         *string
	RunID          *string
}

// VirtualRoot maps a friendly name to a client's local absolute path, used
// to resolve cross-host URIs.
type VirtualRoot struct {
	ID        string
	Name      string
	ClientID  string
	LocalPath string
}
