// Package domain holds the plain data structures shared across storage and
// service layers: chunks, watched roots, locks, runs, and the rest of the
// relational data model.
package domain

import "time"

// ReservedMetadataKeys are the chunk metadata keys the indexer always
// populates; caller-supplied metadata may not override them.
var ReservedMetadataKeys = map[string]bool{
	"document_id":        true,
	"source_uri":         true,
	"custom_source_uri":  true,
}

// Visibility controls who can see a chunk besides its owner.
type Visibility string

const (
	VisibilityShared  Visibility = "shared"
	VisibilityPrivate Visibility = "private"
)

// Chunk is the atomic unit of the index: one embedded slice of a document.
type Chunk struct {
	ID                 int64
	DocumentID         string
	ChunkIndex         int
	Text               string
	SourceURI          string
	Embedding          []float32
	Metadata           map[string]interface{}
	IndexedAt          time.Time
	UpdatedAt          time.Time
	CanonicalSourceKey *string
	OwnerID            *string
	Visibility         *Visibility
	QuarantinedAt      *time.Time
	QuarantineReason   *string
}

// IsQuarantined reports whether the chunk is currently soft-deleted.
func (c *Chunk) IsQuarantined() bool {
	return c.QuarantinedAt != nil
}

// EffectiveVisibility returns the chunk's visibility, defaulting to shared
// when unset (per the ownership rules in §3 of the data model).
func (c *Chunk) EffectiveVisibility() Visibility {
	if c.Visibility == nil {
		return VisibilityShared
	}
	return *c.Visibility
}

// VisibleTo reports whether a caller may see this chunk. Admins see
// everything; authenticated non-admins see shared chunks plus their own
// private ones; unauthenticated callers see only shared chunks.
func (c *Chunk) VisibleTo(userID string, isAdmin bool) bool {
	if isAdmin {
		return true
	}
	if c.EffectiveVisibility() == VisibilityShared {
		return true
	}
	return c.OwnerID != nil && userID != "" && *c.OwnerID == userID
}
