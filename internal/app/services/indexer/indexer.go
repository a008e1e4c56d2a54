// Package indexer is the Indexer Pipeline: hashes, chunks, embeds, and
// bulk-inserts documents, enforcing dedup and force-reindex semantics.
package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/docuindex/engine/internal/app/domain"
	apperrors "github.com/docuindex/engine/internal/app/errors"
	"github.com/docuindex/engine/infrastructure/logging"
	"github.com/docuindex/engine/internal/app/storage"
)

// ProcessedDocument is what the Processor collaborator hands back: the
// ordered chunk texts for one source, plus any tags it wants folded into
// chunk metadata (file_type and similar). Document identity is computed by
// this package, not the processor (see the URI-hash decision below).
type ProcessedDocument struct {
	ChunkTexts []string
	Metadata   map[string]interface{}
}

// Processor turns raw bytes at a source URI into chunk texts. It is the
// external collaborator for format parsing (PDF/DOCX/etc.), deliberately
// out of scope for this package.
type Processor interface {
	Process(ctx context.Context, sourceURI string, ocrMode string) (ProcessedDocument, error)
}

// Embedder produces equal-dimension vectors for a batch of texts.
type Embedder interface {
	EncodeBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Status values returned by IndexDocument.
type Status string

const (
	StatusSuccess Status = "success"
	StatusSkipped Status = "skipped"
)

// Result is the outcome of IndexDocument.
type Result struct {
	Status        Status
	DocumentID    string
	SourceURI     string
	ChunksIndexed int
}

// Service is the Indexer Pipeline.
type Service struct {
	chunks    storage.ChunkStore
	processor Processor
	embedder  Embedder
	logger    *logging.Logger

	encryptedPDFs *ring
}

// New builds the Indexer Pipeline with a bounded in-memory ring
// buffer (cleared on restart) that records encrypted-PDF sightings for the
// /documents/encrypted query.
func New(chunks storage.ChunkStore, processor Processor, embedder Embedder, logger *logging.Logger, ringSize int) *Service {
	return &Service{
		chunks:        chunks,
		processor:     processor,
		embedder:      embedder,
		logger:        logger,
		encryptedPDFs: newRing(ringSize),
	}
}

// DocumentID computes the URI-hash document identity used uniformly by
// both the upload path and the filesystem-walk path (see the open
// question decision: one strategy per deployment, committed here).
func DocumentID(sourceURI string) string {
	sum := sha256.Sum256([]byte(sourceURI))
	return hex.EncodeToString(sum[:])[:16]
}

// IndexParams carries the fields accepted by IndexDocument.
type IndexParams struct {
	SourceURI      string
	ForceReindex   bool
	CustomMetadata map[string]interface{}
	OCRMode        string

	// DisplayName, when set (upload path), is hashed instead of SourceURI
	// so document identity survives the use of a temp file path.
	DisplayName string

	// CustomSourceURI, when set (upload path), is recorded verbatim as the
	// custom_source_uri metadata hint alongside the computed document_id
	// and source_uri.
	CustomSourceURI string

	// ContentPath, when set, is read by the Processor instead of
	// SourceURI. The upload path sets this to the temp file location
	// while SourceURI/DisplayName carry the logical identity.
	ContentPath string
}

// IndexDocument implements §4.5: process, dedup, embed, bulk insert.
func (s *Service) IndexDocument(ctx context.Context, p IndexParams) (Result, error) {
	identitySource := p.SourceURI
	if p.DisplayName != "" {
		identitySource = p.DisplayName
	}
	documentID := DocumentID(identitySource)

	exists, err := s.chunks.DocumentExists(ctx, documentID)
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.DatabaseQueryError, "check document existence", err)
	}
	if exists {
		if !p.ForceReindex {
			return Result{Status: StatusSkipped, DocumentID: documentID, SourceURI: p.SourceURI, ChunksIndexed: 0}, nil
		}
		if _, err := s.chunks.DeleteDocument(ctx, documentID); err != nil {
			return Result{}, apperrors.Wrap(apperrors.DatabaseQueryError, "delete existing chunks", err)
		}
	}

	contentPath := p.ContentPath
	if contentPath == "" {
		contentPath = p.SourceURI
	}
	processed, err := s.processor.Process(ctx, contentPath, p.OCRMode)
	if err != nil {
		if apperrors.IsKind(err, apperrors.EncryptedPDF) {
			s.encryptedPDFs.add(p.SourceURI)
		}
		return Result{}, err
	}

	if len(processed.ChunkTexts) == 0 {
		return Result{Status: StatusSuccess, DocumentID: documentID, SourceURI: p.SourceURI, ChunksIndexed: 0}, nil
	}

	embeddings, err := s.embedder.EncodeBatch(ctx, processed.ChunkTexts)
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.DocumentProcessingFailed, "encode chunk batch", err)
	}

	metadata := mergeMetadata(processed.Metadata, p.CustomMetadata, documentID, p.SourceURI, p.CustomSourceURI)

	chunks := make([]domain.Chunk, len(processed.ChunkTexts))
	for i, text := range processed.ChunkTexts {
		var embedding []float32
		if i < len(embeddings) {
			embedding = embeddings[i]
		}
		chunks[i] = domain.Chunk{
			DocumentID: documentID,
			ChunkIndex: i,
			Text:       text,
			SourceURI:  p.SourceURI,
			Embedding:  embedding,
			Metadata:   metadata,
		}
	}

	if err := s.chunks.InsertChunks(ctx, chunks); err != nil {
		return Result{}, apperrors.Wrap(apperrors.DatabaseQueryError, "insert chunks", err)
	}

	return Result{Status: StatusSuccess, DocumentID: documentID, SourceURI: p.SourceURI, ChunksIndexed: len(chunks)}, nil
}

// DeleteDocument removes all chunks for a document id.
func (s *Service) DeleteDocument(ctx context.Context, documentID string) (int64, error) {
	n, err := s.chunks.DeleteDocument(ctx, documentID)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.DatabaseQueryError, "delete document", err)
	}
	return n, nil
}

// BulkDeleteParams mirrors the bulk-delete/preview request shape.
type BulkDeleteParams struct {
	Filter  storage.ChunkFilter
	Preview bool
}

// BulkDeletePreview is returned when Preview is requested.
type BulkDeletePreview struct {
	DocumentCount   int
	SampleDocuments []string
}

// BulkDelete deletes chunks matching an arbitrary filter, or (preview=true)
// reports what would be deleted without mutating anything.
func (s *Service) BulkDelete(ctx context.Context, p BulkDeleteParams) (int64, *BulkDeletePreview, error) {
	if p.Preview {
		matched, err := s.chunks.ExportChunks(ctx, p.Filter)
		if err != nil {
			return 0, nil, apperrors.Wrap(apperrors.DatabaseQueryError, "preview bulk delete", err)
		}
		seen := map[string]bool{}
		var sample []string
		for _, c := range matched {
			if !seen[c.DocumentID] {
				seen[c.DocumentID] = true
				if len(sample) < 20 {
					sample = append(sample, c.DocumentID)
				}
			}
		}
		return 0, &BulkDeletePreview{DocumentCount: len(seen), SampleDocuments: sample}, nil
	}

	n, err := s.chunks.BulkDelete(ctx, p.Filter)
	if err != nil {
		return 0, nil, apperrors.Wrap(apperrors.DatabaseQueryError, "bulk delete", err)
	}
	return n, nil, nil
}

// ExportDocuments returns full chunk rows (including embeddings) matching
// filters, for backup purposes.
func (s *Service) ExportDocuments(ctx context.Context, filter storage.ChunkFilter) ([]domain.Chunk, error) {
	return s.chunks.ExportChunks(ctx, filter)
}

// RestoreDocuments inserts previously exported chunk rows, skipping any
// that already exist.
func (s *Service) RestoreDocuments(ctx context.Context, chunks []domain.Chunk) (int, error) {
	n, err := s.chunks.RestoreChunks(ctx, chunks)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.DatabaseQueryError, "restore documents", err)
	}
	return n, nil
}

// EncryptedPDFs returns the current contents of the encrypted-PDF sighting
// ring buffer.
func (s *Service) EncryptedPDFs() []string {
	return s.encryptedPDFs.snapshot()
}

// ListDocuments returns a page of chunks matching filter plus the total
// match count, for the paginated documents listing.
func (s *Service) ListDocuments(ctx context.Context, filter storage.ChunkFilter) ([]domain.Chunk, int, error) {
	chunks, total, err := s.chunks.ListChunks(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.Wrap(apperrors.DatabaseQueryError, "list documents", err)
	}
	return chunks, total, nil
}

func mergeMetadata(processed, custom map[string]interface{}, documentID, sourceURI, customSourceURI string) map[string]interface{} {
	out := map[string]interface{}{}
	for k, v := range processed {
		out[k] = v
	}
	for k, v := range custom {
		if domain.ReservedMetadataKeys[k] {
			continue
		}
		out[k] = v
	}
	out["document_id"] = documentID
	out["source_uri"] = sourceURI
	if customSourceURI != "" {
		out["custom_source_uri"] = customSourceURI
	}
	return out
}
