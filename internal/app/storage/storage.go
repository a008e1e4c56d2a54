// Package storage declares the persistence interfaces consumed by the
// service layer. Concrete implementations live in storage/postgres.
package storage

import (
	"context"
	"time"

	"github.com/docuindex/engine/internal/app/domain"
)

// ChunkFilter narrows a chunk query. Zero values are treated as "no filter".
type ChunkFilter struct {
	DocumentID      string
	SourcePrefix    string
	MetadataEquals  map[string]interface{}
	IncludeQuarantined bool
	OnlyQuarantined bool
	UserID          string
	IsAdmin         bool
	Limit           int
	Offset          int
	SortBy          string
	SortDir         string
}

// ChunkStore persists document chunks: the atomic unit of the index.
type ChunkStore interface {
	InsertChunks(ctx context.Context, chunks []domain.Chunk) error
	DeleteDocument(ctx context.Context, documentID string) (int64, error)
	DocumentExists(ctx context.Context, documentID string) (bool, error)
	ListChunksByDocument(ctx context.Context, documentID string) ([]domain.Chunk, error)
	ListChunks(ctx context.Context, filter ChunkFilter) ([]domain.Chunk, int, error)
	ListDistinctSourceURIs(ctx context.Context, sourcePrefix string) ([]string, error)
	VectorSearch(ctx context.Context, queryEmbedding []float32, topK int, filter ChunkFilter) ([]domain.Chunk, []float64, error)
	UpdateVisibility(ctx context.Context, documentID string, ownerID string, visibility domain.Visibility) (int64, error)
	BulkDelete(ctx context.Context, filter ChunkFilter) (int64, error)
	ExportChunks(ctx context.Context, filter ChunkFilter) ([]domain.Chunk, error)
	RestoreChunks(ctx context.Context, chunks []domain.Chunk) (int, error)

	QuarantineBySourceURI(ctx context.Context, sourceURI, reason string) (int64, error)
	RestoreBySourceURI(ctx context.Context, sourceURI string) (int64, error)
	PurgeExpiredQuarantine(ctx context.Context, olderThan time.Time) (int64, error)
	QuarantineStats(ctx context.Context) (QuarantineStats, error)
	ListQuarantined(ctx context.Context, limit, offset int) ([]QuarantinedSource, error)

	FindByCanonicalKey(ctx context.Context, key string) ([]domain.Chunk, error)
	BulkSetCanonicalKeys(ctx context.Context, sourcePrefix string, compute func(sourceURI string) (string, bool)) (int64, error)
}

// QuarantineStats summarizes the quarantine state of the index.
type QuarantineStats struct {
	TotalQuarantined   int64
	DistinctSources    int64
	OldestQuarantineAt *time.Time
}

// QuarantinedSource is one row in the paginated quarantine listing, grouped
// by source_uri.
type QuarantinedSource struct {
	SourceURI        string
	ChunkCount       int64
	QuarantinedAt    time.Time
	QuarantineReason string
}

// RootStore persists watched roots: the Root Registry's backing store.
type RootStore interface {
	Insert(ctx context.Context, root domain.WatchedRoot) (domain.WatchedRoot, error)
	Update(ctx context.Context, root domain.WatchedRoot) (domain.WatchedRoot, error)
	Get(ctx context.Context, id string) (domain.WatchedRoot, error)
	GetByRootID(ctx context.Context, rootID string) (domain.WatchedRoot, error)
	FindByNormalizedPath(ctx context.Context, scope domain.ExecutionScope, executorID *string, normalizedPath string) (domain.WatchedRoot, bool, error)
	List(ctx context.Context, enabledOnly bool, scope *domain.ExecutionScope, executorID *string) ([]domain.WatchedRoot, error)
	Delete(ctx context.Context, id string) error
}

// LockStore persists document locks.
type LockStore interface {
	DeleteExpiredForIdentity(ctx context.Context, sourceURI string, rootID, relativePath *string, now time.Time) error
	GetActiveForIdentity(ctx context.Context, sourceURI string, rootID, relativePath *string, now time.Time) (domain.DocumentLock, bool, error)
	Insert(ctx context.Context, lock domain.DocumentLock) (domain.DocumentLock, error)
	ExtendTTL(ctx context.Context, id string, expiresAt time.Time, reason string) (domain.DocumentLock, error)
	DeleteByID(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// RunStore persists indexing run audit records.
type RunStore interface {
	Insert(ctx context.Context, run domain.IndexingRun) (domain.IndexingRun, error)
	Complete(ctx context.Context, run domain.IndexingRun) (domain.IndexingRun, error)
	Get(ctx context.Context, id string) (domain.IndexingRun, error)
	List(ctx context.Context, limit, offset int) ([]domain.IndexingRun, error)
	Summary(ctx context.Context) (domain.RunSummary, error)
	DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	ReapStaleRunning(ctx context.Context, cutoff time.Time) (int64, error)
}

// ActivityStore persists the append-only activity log.
type ActivityStore interface {
	Insert(ctx context.Context, entry domain.ActivityLogEntry) (domain.ActivityLogEntry, error)
	List(ctx context.Context, limit, offset int) ([]domain.ActivityLogEntry, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// VirtualRootStore persists client-local name-to-path mappings.
type VirtualRootStore interface {
	Upsert(ctx context.Context, vr domain.VirtualRoot) (domain.VirtualRoot, error)
	ListForClient(ctx context.Context, clientID string) ([]domain.VirtualRoot, error)
	Resolve(ctx context.Context, name, clientID string) (domain.VirtualRoot, bool, error)
	Delete(ctx context.Context, id string) error
}

// SAMLSessionStore persists SAML session records for retention sweeping.
type SAMLSessionStore interface {
	Insert(ctx context.Context, session domain.SAMLSession) (domain.SAMLSession, error)
	Get(ctx context.Context, id string) (domain.SAMLSession, bool, error)
	Deactivate(ctx context.Context, id string) error
	DeleteExpiredOrInactive(ctx context.Context, now time.Time) (int64, error)
}

// APIKeyStore persists hashed API key credentials.
type APIKeyStore interface {
	Insert(ctx context.Context, key domain.APIKey) (domain.APIKey, error)
	GetByHash(ctx context.Context, hash string) (domain.APIKey, bool, error)
	Get(ctx context.Context, id string) (domain.APIKey, error)
	List(ctx context.Context) ([]domain.APIKey, error)
	Revoke(ctx context.Context, id string, revokedAt time.Time) error
	TouchLastUsed(ctx context.Context, id string, usedAt time.Time) error
	CountActive(ctx context.Context) (int, error)
}

// RoleStore persists database-backed role definitions.
type RoleStore interface {
	Get(ctx context.Context, name string) (domain.Role, bool, error)
	List(ctx context.Context) ([]domain.Role, error)
	Upsert(ctx context.Context, role domain.Role) (domain.Role, error)
}

// UserStore persists authenticated principals.
type UserStore interface {
	Insert(ctx context.Context, user domain.User) (domain.User, error)
	GetByID(ctx context.Context, id string) (domain.User, bool, error)
	GetByEmail(ctx context.Context, email string) (domain.User, bool, error)
	GetByAPIKeyID(ctx context.Context, apiKeyID string) (domain.User, bool, error)
	TouchLastLogin(ctx context.Context, id string, loginAt time.Time) error
	Count(ctx context.Context) (int, error)
}
