package indexer

import (
	"context"
	"io"
	"os"

	apperrors "github.com/docuindex/engine/internal/app/errors"
)

// UploadParams carries the fields accepted by the upload-and-index path.
type UploadParams struct {
	Reader          io.Reader
	CustomSourceURI string
	OriginalName    string
	ForceReindex    bool
	CustomMetadata  map[string]interface{}
	OCRMode         string
}

// UploadAndIndex streams the uploaded bytes to a temp file, indexes it,
// and always removes the temp file afterward regardless of outcome.
// Document identity is computed from the display name (custom_source_uri
// or the original filename), never from the temp path.
func (s *Service) UploadAndIndex(ctx context.Context, p UploadParams) (Result, error) {
	displayName := p.CustomSourceURI
	if displayName == "" {
		displayName = p.OriginalName
	}
	if displayName == "" {
		return Result{}, apperrors.New(apperrors.DocumentProcessingFailed, "upload requires a custom_source_uri or original filename")
	}

	tmp, err := os.CreateTemp("", "docuindex-upload-*")
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.InternalServerError, "create temp file", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, p.Reader); err != nil {
		tmp.Close()
		return Result{}, apperrors.Wrap(apperrors.DocumentProcessingFailed, "write upload to temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return Result{}, apperrors.Wrap(apperrors.InternalServerError, "close temp file", err)
	}

	result, err := s.IndexDocument(ctx, IndexParams{
		SourceURI:       displayName,
		ForceReindex:    p.ForceReindex,
		CustomMetadata:  p.CustomMetadata,
		OCRMode:         p.OCRMode,
		DisplayName:     displayName,
		CustomSourceURI: p.CustomSourceURI,
		ContentPath:     tmpPath,
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}
