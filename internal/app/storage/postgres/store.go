// Package postgres implements the storage interfaces against PostgreSQL
// using the pgvector extension for embedding columns. Each domain gets its
// own thin repository type sharing the one connection pool, rather than a
// single type implementing every interface, so method names stay natural
// per domain (Get, Insert, List) without clashing across domains.
package postgres

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/docuindex/engine/internal/app/storage"
)

// ChunkStore persists document chunks against Postgres/pgvector.
type ChunkStore struct{ db *sql.DB }

func NewChunkStore(db *sql.DB) *ChunkStore { return &ChunkStore{db: db} }

// RootStore persists watched roots.
type RootStore struct{ db *sql.DB }

func NewRootStore(db *sql.DB) *RootStore { return &RootStore{db: db} }

// LockStore persists document locks.
type LockStore struct{ db *sql.DB }

func NewLockStore(db *sql.DB) *LockStore { return &LockStore{db: db} }

// RunStore persists indexing run audit records.
type RunStore struct{ db *sql.DB }

func NewRunStore(db *sql.DB) *RunStore { return &RunStore{db: db} }

// ActivityStore persists the append-only activity log.
type ActivityStore struct{ db *sql.DB }

func NewActivityStore(db *sql.DB) *ActivityStore { return &ActivityStore{db: db} }

// VirtualRootStore persists client-local name-to-path mappings.
type VirtualRootStore struct{ db *sql.DB }

func NewVirtualRootStore(db *sql.DB) *VirtualRootStore { return &VirtualRootStore{db: db} }

// SAMLSessionStore persists SAML session records.
type SAMLSessionStore struct{ db *sql.DB }

func NewSAMLSessionStore(db *sql.DB) *SAMLSessionStore { return &SAMLSessionStore{db: db} }

// APIKeyStore persists hashed API key credentials.
type APIKeyStore struct{ db *sql.DB }

func NewAPIKeyStore(db *sql.DB) *APIKeyStore { return &APIKeyStore{db: db} }

// RoleStore persists database-backed role definitions.
type RoleStore struct{ db *sql.DB }

func NewRoleStore(db *sql.DB) *RoleStore { return &RoleStore{db: db} }

// UserStore persists authenticated principals. It uses sqlx's struct
// scanning instead of positional Scan calls, since the user row has enough
// nullable columns that field-by-field scanning was getting error-prone.
type UserStore struct{ db *sqlx.DB }

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: sqlx.NewDb(db, "postgres")}
}

var (
	_ storage.ChunkStore       = (*ChunkStore)(nil)
	_ storage.RootStore        = (*RootStore)(nil)
	_ storage.LockStore        = (*LockStore)(nil)
	_ storage.RunStore         = (*RunStore)(nil)
	_ storage.ActivityStore    = (*ActivityStore)(nil)
	_ storage.VirtualRootStore = (*VirtualRootStore)(nil)
	_ storage.SAMLSessionStore = (*SAMLSessionStore)(nil)
	_ storage.APIKeyStore      = (*APIKeyStore)(nil)
	_ storage.RoleStore        = (*RoleStore)(nil)
	_ storage.UserStore        = (*UserStore)(nil)
)

// encodeVector renders a float32 slice as the textual pgvector literal, e.g.
// "[0.1,0.2,0.3]".
func encodeVector(v []float32) string {
	if len(v) == 0 {
		return "[]"
	}
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.FormatFloat(float64(f), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// decodeVector parses a pgvector textual literal back into a float32 slice.
func decodeVector(raw string) ([]float32, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "[")
	raw = strings.TrimSuffix(raw, "]")
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("decode vector component %q: %w", p, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}
