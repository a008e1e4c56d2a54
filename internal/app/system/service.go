// Package system provides the lifecycle contract and ordered start/stop
// manager shared by every long-running component of the indexing service.
package system

import "context"

// Service is implemented by any component with an explicit start/stop
// lifecycle: the HTTP server, the server scheduler, the retention
// orchestrator.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
