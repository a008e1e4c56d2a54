// Package canonicalidentity builds, parses, and backfills scope-qualified
// stable identifiers for chunks, and normalizes filesystem paths the same
// way whether the computation happens in Go or is pushed into SQL.
package canonicalidentity

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/docuindex/engine/internal/app/domain"
	"github.com/docuindex/engine/internal/app/storage"
)

// NormalizePath replaces backslashes with forward slashes, collapses
// repeated slashes, and strips a trailing slash (preserving a bare "/").
// On Windows it additionally lowercases the result. This must stay in sync
// with the normalize_source_uri SQL function used for source_prefix
// filtering.
func NormalizePath(raw string) string {
	replacer := strings.NewReplacer("\\", "/", "\t", "/", "\r", "/", "\n", "/")
	s := replacer.Replace(raw)

	var b strings.Builder
	b.Grow(len(s))
	prevSlash := false
	for _, r := range s {
		if r == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteRune(r)
	}
	s = b.String()

	if len(s) > 1 && strings.HasSuffix(s, "/") {
		s = strings.TrimSuffix(s, "/")
	}

	if runtime.GOOS == "windows" {
		s = strings.ToLower(s)
	}
	return s
}

// Resolved is the parsed form of a canonical source key.
type Resolved struct {
	Scope        domain.ExecutionScope
	Identity     string
	RelativePath string
}

// BuildCanonicalKey assembles "<scope>:<identity>:<relative_path>".
func BuildCanonicalKey(scope domain.ExecutionScope, identity, relativePath string) string {
	return fmt.Sprintf("%s:%s:%s", scope, identity, NormalizePath(relativePath))
}

// ResolveCanonicalKey splits a canonical key back into its parts. It
// returns false if the key has fewer than two colon separators or names an
// unknown scope; colons after the second stay in the relative path.
func ResolveCanonicalKey(key string) (Resolved, bool) {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) != 3 {
		return Resolved{}, false
	}
	scope := domain.ExecutionScope(parts[0])
	if scope != domain.ScopeClient && scope != domain.ScopeServer {
		return Resolved{}, false
	}
	return Resolved{Scope: scope, Identity: parts[1], RelativePath: parts[2]}, true
}

// ExtractRelativePath computes the path of absolutePath relative to root,
// after normalizing both. Returns "/" if they are equal, and the
// normalized absolute path unchanged if it is not under root.
func ExtractRelativePath(root, absolutePath string) string {
	normRoot := NormalizePath(root)
	normPath := NormalizePath(absolutePath)

	if normPath == normRoot {
		return "/"
	}

	prefix := normRoot
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	if strings.HasPrefix(normPath, prefix) {
		return "/" + strings.TrimPrefix(normPath, prefix)
	}
	return normPath
}

// Service backfills canonical_source_key on chunks and resolves them back
// to their document set.
type Service struct {
	chunks storage.ChunkStore
}

func New(chunks storage.ChunkStore) *Service {
	return &Service{chunks: chunks}
}

// BulkSetCanonicalKeys computes and persists canonical_source_key for every
// chunk whose source_uri begins with the normalized root prefix and whose
// canonical_source_key is still null. It returns the number of rows
// updated.
func (s *Service) BulkSetCanonicalKeys(ctx context.Context, rootID, folderPath string, scope domain.ExecutionScope, identity string) (int64, error) {
	normRoot := NormalizePath(folderPath)
	compute := func(sourceURI string) (string, bool) {
		normURI := NormalizePath(sourceURI)
		prefix := normRoot
		if !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		if normURI != normRoot && !strings.HasPrefix(normURI, prefix) {
			return "", false
		}
		rel := ExtractRelativePath(folderPath, sourceURI)
		return BuildCanonicalKey(scope, identity, rel), true
	}
	return s.chunks.BulkSetCanonicalKeys(ctx, normRoot, compute)
}

// FindByCanonicalKey returns the chunks sharing a canonical key, ordered by
// chunk index (the store guarantees this ordering).
func (s *Service) FindByCanonicalKey(ctx context.Context, key string) ([]domain.Chunk, error) {
	return s.chunks.FindByCanonicalKey(ctx, key)
}
