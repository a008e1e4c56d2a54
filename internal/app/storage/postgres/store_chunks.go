package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/docuindex/engine/internal/app/domain"
	"github.com/docuindex/engine/internal/app/storage"
)

// InsertChunks bulk-inserts a document's chunks in a single transaction. Any
// failure leaves no partial document behind.
func (s *ChunkStore) InsertChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert chunks: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO document_chunks
			(document_id, chunk_index, text, source_uri, embedding, metadata, owner_id, visibility)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert chunks: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		metaJSON, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshal chunk metadata: %w", err)
		}
		var visibility *string
		if c.Visibility != nil {
			v := string(*c.Visibility)
			visibility = &v
		}
		if _, err := stmt.ExecContext(ctx, c.DocumentID, c.ChunkIndex, c.Text, c.SourceURI,
			encodeVector(c.Embedding), metaJSON, c.OwnerID, visibility); err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.ChunkIndex, err)
		}
	}

	return tx.Commit()
}

// DeleteDocument removes all chunks for a document id.
func (s *ChunkStore) DeleteDocument(ctx context.Context, documentID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DocumentExists reports whether any chunk for this document id exists.
func (s *ChunkStore) DocumentExists(ctx context.Context, documentID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM document_chunks WHERE document_id = $1)`, documentID,
	).Scan(&exists)
	return exists, err
}

func (s *ChunkStore) ListChunksByDocument(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, chunkSelectColumns+` FROM document_chunks WHERE document_id = $1 ORDER BY chunk_index ASC`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunks(rows)
}

const chunkSelectColumns = `
	SELECT id, document_id, chunk_index, text, source_uri, embedding, metadata,
	       indexed_at, updated_at, canonical_source_key, owner_id, visibility,
	       quarantined_at, quarantine_reason`

// ListChunks applies a filter (source prefix, metadata equality, visibility,
// quarantine state, sorting, pagination) and returns the matched rows plus
// the total count ignoring pagination.
func (s *ChunkStore) ListChunks(ctx context.Context, filter storage.ChunkFilter) ([]domain.Chunk, int, error) {
	where, args := buildChunkWhere(filter)

	var total int
	countQuery := `SELECT COUNT(*) FROM document_chunks` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count chunks: %w", err)
	}

	sortCol := sanitizeSortColumn(filter.SortBy)
	sortDir := "ASC"
	if strings.EqualFold(filter.SortDir, "desc") {
		sortDir = "DESC"
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(chunkSelectColumns+` FROM document_chunks%s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		where, sortCol, sortDir, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()

	chunks, err := scanChunks(rows)
	if err != nil {
		return nil, 0, err
	}
	return chunks, total, nil
}

// sanitizeSortColumn maps an API-facing sort key to its column name,
// defaulting to indexed_at to avoid SQL injection via arbitrary input.
func sanitizeSortColumn(sortBy string) string {
	switch sortBy {
	case "last_updated":
		return "updated_at"
	case "source_uri":
		return "source_uri"
	case "document_type":
		return "metadata->>'file_type'"
	case "chunk_count":
		return "chunk_index"
	case "document_id":
		return "document_id"
	default:
		return "indexed_at"
	}
}

func buildChunkWhere(filter storage.ChunkFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	add := func(clause string, value interface{}) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if filter.DocumentID != "" {
		add("document_id = $%d", filter.DocumentID)
	}
	if filter.SourcePrefix != "" {
		add("normalize_source_uri(source_uri) LIKE normalize_source_uri($%d) || '%%'", filter.SourcePrefix)
	}
	for key, value := range filter.MetadataEquals {
		args = append(args, key)
		keyIdx := len(args)
		args = append(args, fmt.Sprintf("%v", value))
		valIdx := len(args)
		clauses = append(clauses, fmt.Sprintf("metadata->>$%d = $%d", keyIdx, valIdx))
	}

	switch {
	case filter.OnlyQuarantined:
		clauses = append(clauses, "quarantined_at IS NOT NULL")
	case !filter.IncludeQuarantined:
		clauses = append(clauses, "quarantined_at IS NULL")
	}

	if !filter.IsAdmin {
		if filter.UserID != "" {
			args = append(args, filter.UserID)
			clauses = append(clauses, fmt.Sprintf("(visibility IS DISTINCT FROM 'private' OR owner_id = $%d)", len(args)))
		} else {
			clauses = append(clauses, "visibility IS DISTINCT FROM 'private'")
		}
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// ListDistinctSourceURIs returns every distinct source_uri under a prefix,
// including quarantined chunks, for quarantine reconciliation.
func (s *ChunkStore) ListDistinctSourceURIs(ctx context.Context, sourcePrefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT source_uri FROM document_chunks WHERE source_uri LIKE $1 || '%'`, sourcePrefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var uri string
		if err := rows.Scan(&uri); err != nil {
			return nil, err
		}
		out = append(out, uri)
	}
	return out, rows.Err()
}

// VectorSearch runs a cosine-distance nearest-neighbor query against the
// HNSW index, applying the same filter predicates as ListChunks, and returns
// chunks alongside their similarity scores (1 - cosine distance).
func (s *ChunkStore) VectorSearch(ctx context.Context, queryEmbedding []float32, topK int, filter storage.ChunkFilter) ([]domain.Chunk, []float64, error) {
	where, args := buildChunkWhere(filter)
	args = append(args, encodeVector(queryEmbedding))
	embedIdx := len(args)
	if topK <= 0 {
		topK = 10
	}
	args = append(args, topK)

	query := fmt.Sprintf(chunkSelectColumns+`, 1 - (embedding <=> $%d) AS score
		FROM document_chunks%s ORDER BY embedding <=> $%d ASC LIMIT $%d`,
		embedIdx, where, embedIdx, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	var scores []float64
	for rows.Next() {
		c, score, err := scanChunkWithScore(rows)
		if err != nil {
			return nil, nil, err
		}
		chunks = append(chunks, c)
		scores = append(scores, score)
	}
	return chunks, scores, rows.Err()
}

// UpdateVisibility reassigns ownership and visibility for every chunk of a
// document.
func (s *ChunkStore) UpdateVisibility(ctx context.Context, documentID, ownerID string, visibility domain.Visibility) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE document_chunks SET owner_id = $2, visibility = $3, updated_at = now() WHERE document_id = $1`,
		documentID, nullIfEmpty(ownerID), string(visibility))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// BulkDelete deletes every chunk matching the given filter.
func (s *ChunkStore) BulkDelete(ctx context.Context, filter storage.ChunkFilter) (int64, error) {
	where, args := buildChunkWhere(filter)
	if where == "" {
		return 0, errors.New("bulk delete requires at least one filter")
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM document_chunks`+where, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ExportChunks returns full chunk rows (including embeddings) matching a
// filter, for the backup/export round trip.
func (s *ChunkStore) ExportChunks(ctx context.Context, filter storage.ChunkFilter) ([]domain.Chunk, error) {
	where, args := buildChunkWhere(filter)
	rows, err := s.db.QueryContext(ctx, chunkSelectColumns+` FROM document_chunks`+where+` ORDER BY document_id, chunk_index`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunks(rows)
}

// RestoreChunks re-inserts exported chunks, skipping any row that collides
// with an existing (document_id, chunk_index) pair.
func (s *ChunkStore) RestoreChunks(ctx context.Context, chunks []domain.Chunk) (int, error) {
	restored := 0
	for _, c := range chunks {
		metaJSON, err := json.Marshal(c.Metadata)
		if err != nil {
			return restored, err
		}
		var visibility *string
		if c.Visibility != nil {
			v := string(*c.Visibility)
			visibility = &v
		}
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO document_chunks
				(document_id, chunk_index, text, source_uri, embedding, metadata, owner_id, visibility, canonical_source_key)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (document_id, chunk_index) DO NOTHING
		`, c.DocumentID, c.ChunkIndex, c.Text, c.SourceURI, encodeVector(c.Embedding), metaJSON,
			c.OwnerID, visibility, c.CanonicalSourceKey)
		if err != nil {
			return restored, err
		}
		if affected, _ := res.RowsAffected(); affected > 0 {
			restored++
		}
	}
	return restored, nil
}

// QuarantineBySourceURI soft-deletes every non-quarantined chunk of a
// source.
func (s *ChunkStore) QuarantineBySourceURI(ctx context.Context, sourceURI, reason string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE document_chunks
		SET quarantined_at = now(), quarantine_reason = $2, updated_at = now()
		WHERE source_uri = $1 AND quarantined_at IS NULL
	`, sourceURI, reason)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RestoreBySourceURI clears quarantine state for a source whose file has
// reappeared.
func (s *ChunkStore) RestoreBySourceURI(ctx context.Context, sourceURI string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE document_chunks
		SET quarantined_at = NULL, quarantine_reason = NULL, updated_at = now()
		WHERE source_uri = $1 AND quarantined_at IS NOT NULL
	`, sourceURI)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PurgeExpiredQuarantine hard-deletes chunks quarantined before the cutoff.
func (s *ChunkStore) PurgeExpiredQuarantine(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM document_chunks WHERE quarantined_at IS NOT NULL AND quarantined_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *ChunkStore) QuarantineStats(ctx context.Context) (storage.QuarantineStats, error) {
	var stats storage.QuarantineStats
	var oldest sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT source_uri), MIN(quarantined_at)
		FROM document_chunks WHERE quarantined_at IS NOT NULL
	`).Scan(&stats.TotalQuarantined, &stats.DistinctSources, &oldest)
	if err != nil {
		return storage.QuarantineStats{}, err
	}
	if oldest.Valid {
		stats.OldestQuarantineAt = &oldest.Time
	}
	return stats, nil
}

func (s *ChunkStore) ListQuarantined(ctx context.Context, limit, offset int) ([]storage.QuarantinedSource, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_uri, COUNT(*), MAX(quarantined_at), MAX(quarantine_reason)
		FROM document_chunks
		WHERE quarantined_at IS NOT NULL
		GROUP BY source_uri
		ORDER BY MAX(quarantined_at) DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.QuarantinedSource
	for rows.Next() {
		var q storage.QuarantinedSource
		if err := rows.Scan(&q.SourceURI, &q.ChunkCount, &q.QuarantinedAt, &q.QuarantineReason); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *ChunkStore) FindByCanonicalKey(ctx context.Context, key string) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		chunkSelectColumns+` FROM document_chunks WHERE canonical_source_key = $1 ORDER BY chunk_index ASC`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunks(rows)
}

// BulkSetCanonicalKeys computes and persists a canonical key for every chunk
// under sourcePrefix that doesn't have one yet. compute receives a chunk's
// source_uri and returns the key to set (or false to skip the row).
func (s *ChunkStore) BulkSetCanonicalKeys(ctx context.Context, sourcePrefix string, compute func(sourceURI string) (string, bool)) (int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_uri FROM document_chunks
		WHERE source_uri LIKE $1 || '%' AND canonical_source_key IS NULL
	`, sourcePrefix)
	if err != nil {
		return 0, err
	}

	type pending struct {
		id  int64
		key string
	}
	var toUpdate []pending
	for rows.Next() {
		var id int64
		var sourceURI string
		if err := rows.Scan(&id, &sourceURI); err != nil {
			rows.Close()
			return 0, err
		}
		if key, ok := compute(sourceURI); ok {
			toUpdate = append(toUpdate, pending{id: id, key: key})
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	var updated int64
	for _, p := range toUpdate {
		res, err := s.db.ExecContext(ctx,
			`UPDATE document_chunks SET canonical_source_key = $2, updated_at = now() WHERE id = $1`, p.id, p.key)
		if err != nil {
			return updated, err
		}
		if affected, _ := res.RowsAffected(); affected > 0 {
			updated++
		}
	}
	return updated, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanChunks(rows *sql.Rows) ([]domain.Chunk, error) {
	var out []domain.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanChunk(row rowScanner) (domain.Chunk, error) {
	var c domain.Chunk
	var embeddingRaw string
	var metaRaw []byte
	var visibility sql.NullString
	var ownerID, canonicalKey, quarantineReason sql.NullString
	var quarantinedAt sql.NullTime

	err := row.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Text, &c.SourceURI, &embeddingRaw, &metaRaw,
		&c.IndexedAt, &c.UpdatedAt, &canonicalKey, &ownerID, &visibility, &quarantinedAt, &quarantineReason)
	if err != nil {
		return domain.Chunk{}, err
	}

	if c.Embedding, err = decodeVector(embeddingRaw); err != nil {
		return domain.Chunk{}, err
	}
	if len(metaRaw) > 0 {
		if err := json.Unmarshal(metaRaw, &c.Metadata); err != nil {
			return domain.Chunk{}, fmt.Errorf("unmarshal chunk metadata: %w", err)
		}
	}
	if canonicalKey.Valid {
		c.CanonicalSourceKey = &canonicalKey.String
	}
	if ownerID.Valid {
		c.OwnerID = &ownerID.String
	}
	if visibility.Valid {
		v := domain.Visibility(visibility.String)
		c.Visibility = &v
	}
	if quarantinedAt.Valid {
		c.QuarantinedAt = &quarantinedAt.Time
	}
	if quarantineReason.Valid {
		c.QuarantineReason = &quarantineReason.String
	}
	return c, nil
}

func scanChunkWithScore(rows *sql.Rows) (domain.Chunk, float64, error) {
	var c domain.Chunk
	var embeddingRaw string
	var metaRaw []byte
	var visibility sql.NullString
	var ownerID, canonicalKey, quarantineReason sql.NullString
	var quarantinedAt sql.NullTime
	var score float64

	err := rows.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Text, &c.SourceURI, &embeddingRaw, &metaRaw,
		&c.IndexedAt, &c.UpdatedAt, &canonicalKey, &ownerID, &visibility, &quarantinedAt, &quarantineReason, &score)
	if err != nil {
		return domain.Chunk{}, 0, err
	}
	if c.Embedding, err = decodeVector(embeddingRaw); err != nil {
		return domain.Chunk{}, 0, err
	}
	if len(metaRaw) > 0 {
		if err := json.Unmarshal(metaRaw, &c.Metadata); err != nil {
			return domain.Chunk{}, 0, err
		}
	}
	if canonicalKey.Valid {
		c.CanonicalSourceKey = &canonicalKey.String
	}
	if ownerID.Valid {
		c.OwnerID = &ownerID.String
	}
	if visibility.Valid {
		v := domain.Visibility(visibility.String)
		c.Visibility = &v
	}
	if quarantinedAt.Valid {
		c.QuarantinedAt = &quarantinedAt.Time
	}
	if quarantineReason.Valid {
		c.QuarantineReason = &quarantineReason.String
	}
	return c, score, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
